package main

import "github.com/Bookworm370/interpunctbot/cmd"

func main() {
	cmd.Execute()
}
