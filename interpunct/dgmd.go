package interpunct

import (
	"fmt"
	"html"
	"path"
	"strings"
)

// DGMD is the line-based markup the documentation content files are
// written in. Each line starts with a directive ("## ", ": ",
// "Command: ", ...) and text may contain inline {{Function|arg}}
// calls. Every document renders twice, once as an HTML fragment and
// once as Discord markdown.

const (
	dgmdFileExtension   = ".dg"
	docsSiteBaseURL     = "https://interpunct.info"
	docsBotAvatarURL    = "https://cdn.discordapp.com/embed/avatars/0.png"
	docsMissingEmojiTag = "err_no_emoji"
)

// DocEmoji describes one custom emoji available to {{Emoji|name}}.
type DocEmoji struct {
	// Discord is the full <:name:id> mention used in markdown output
	Discord string `json:"discord"`

	// URL is the emoji image, used in HTML output
	URL string `json:"url"`

	// Name is the display name, used for alt text
	Name string `json:"name"`
}

// DGMDContext carries the shared lookups a document render needs.
type DGMDContext struct {
	// Emoji maps emoji keys to their renderings
	Emoji map[string]DocEmoji

	// Prefix is the bot command prefix shown in examples
	Prefix string
}

func (c *DGMDContext) emoji(key string) DocEmoji {
	if e, ok := c.Emoji[key]; ok {
		return e
	}
	return DocEmoji{
		Discord: ":" + docsMissingEmojiTag + ":",
		Name:    docsMissingEmojiTag,
	}
}

// renderInline expands {{Function|arg}} calls in s. Text outside calls
// goes through clean, each call through call. Unterminated calls are
// left as literal text.
func renderInline(
	s string,
	clean func(string) string,
	call func(name string, arg string) string,
) string {
	var b strings.Builder
	for {
		open := strings.Index(s, "{{")
		if open < 0 {
			b.WriteString(clean(s))
			return b.String()
		}
		rest := s[open+2:]
		closing := strings.Index(rest, "}}")
		if closing < 0 {
			b.WriteString(clean(s))
			return b.String()
		}
		b.WriteString(clean(s[:open]))
		name, arg, _ := strings.Cut(rest[:closing], "|")
		b.WriteString(call(name, arg))
		s = rest[closing+2:]
	}
}

func (c *DGMDContext) htmlInline(s string) string {
	return renderInline(s, html.EscapeString, c.htmlCall)
}

func (c *DGMDContext) discordInline(s string) string {
	return renderInline(
		s, func(v string) string { return v }, c.discordCall,
	)
}

func (c *DGMDContext) htmlCall(name string, arg string) string {
	esc := html.EscapeString
	switch name {
	case "Channel":
		return fmt.Sprintf(`<a class="tag">%s</a>`, esc(arg))
	case "Link":
		return fmt.Sprintf(`<a href="%s">%s</a>`, esc(arg), esc(arg))
	case "Command":
		return fmt.Sprintf(
			`<code class="inline">%s%s</code>`, esc(c.Prefix), esc(arg),
		)
	case "Bold":
		return fmt.Sprintf(`<b>%s</b>`, esc(arg))
	case "Argument":
		return esc(arg)
	case "Srclink":
		return `<sup><a href="" title="view source">src</a></sup>`
	case "Newline":
		return `<br />`
	case "Blockquote":
		return fmt.Sprintf(
			`<div class="blockquote-container"><div class="blockquote-divider"></div><blockquote>%s</blockquote></div>`,
			esc(arg),
		)
	case "Emoji":
		e := c.emoji(arg)
		return fmt.Sprintf(
			`<img class="emoji" src="%s" title="%s" alt="%s" draggable="false" />`,
			esc(e.URL), esc(e.Name), esc(e.Name),
		)
	case "Image":
		return fmt.Sprintf(`<img src="%s" class="sizimg" />`, esc(arg))
	case "Interpunct":
		return c.htmlCall("Atmention", "inter·punct")
	case "Atmention":
		return fmt.Sprintf(`<a class="tag">@%s</a>`, esc(arg))
	case "Computed":
		if arg == "prefix" {
			return esc(c.Prefix)
		}
		return esc(arg)
	default:
		return fmt.Sprintf(
			`<span class="callerr">%s|%s</span>`, esc(name), esc(arg),
		)
	}
}

func (c *DGMDContext) discordCall(name string, arg string) string {
	switch name {
	case "Channel":
		return "#" + arg
	case "Link":
		return "<" + arg + ">"
	case "Command":
		return c.Prefix + arg
	case "Bold":
		return "**" + arg + "**"
	case "Argument":
		return arg
	case "Srclink":
		return ""
	case "Newline":
		return "\n"
	case "Blockquote":
		lines := strings.Split(arg, "\n")
		for i, l := range lines {
			lines[i] = "> " + l
		}
		return strings.Join(lines, "\n")
	case "Emoji":
		return c.emoji(arg).Discord
	case "Interpunct":
		return "@inter·punct"
	case "Atmention":
		return "@" + arg
	case "Computed":
		if arg == "prefix" {
			return c.Prefix
		}
		return arg
	default:
		return fmt.Sprintf("`{{%s|%s}}`", name, arg)
	}
}

// RenderedDoc is the output of rendering one .dg file.
type RenderedDoc struct {
	HTML    string
	Discord string
}

// RenderDGMD renders one document. docPath is the slash-separated
// location of the document under the content root, without the file
// name, and seeds relative *link* targets.
func RenderDGMD(docPath string, text string, ctx *DGMDContext) RenderedDoc {
	var htmlOut, discordOut []string
	pathParts := splitDocPath(docPath)

	for _, line := range strings.Split(
		strings.ReplaceAll(text, "\r\n", "\n"), "\n",
	) {
		switch {
		case strings.HasPrefix(line, "## "):
			v := line[len("## "):]
			htmlOut = append(
				htmlOut, fmt.Sprintf("<h2>%s</h2>", ctx.htmlInline(v)),
			)
			discordOut = append(
				discordOut, fmt.Sprintf("**%s**", ctx.discordInline(v)),
			)
		case strings.HasPrefix(line, "*text*: "):
			v := line[len("*text*: "):]
			htmlOut = append(
				htmlOut, fmt.Sprintf("<p>%s</p>", ctx.htmlInline(v)),
			)
			discordOut = append(discordOut, ctx.discordInline(v))
		case strings.HasPrefix(line, ": "):
			v := line[len(": "):]
			htmlOut = append(
				htmlOut, fmt.Sprintf("<p>%s</p>", ctx.htmlInline(v)),
			)
			discordOut = append(discordOut, ctx.discordInline(v))
		case strings.HasPrefix(line, "Command: "):
			v := line[len("Command: "):]
			htmlOut = append(htmlOut, docChatMessage(
				"you", false,
				html.EscapeString(ctx.Prefix)+ctx.htmlInline(v),
			))
		case strings.HasPrefix(line, "Output: "):
			v := line[len("Output: "):]
			htmlOut = append(
				htmlOut, docChatMessage("inter·punct", true, ctx.htmlInline(v)),
			)
		case strings.HasPrefix(line, "*link*: "):
			target := docLinkTarget(line[len("*link*: "):], pathParts)
			htmlOut = append(htmlOut, fmt.Sprintf(
				`<p><a href="/%s">%s</a></p>`,
				html.EscapeString(strings.Join(target, "/")),
				html.EscapeString(target[len(target)-1]),
			))
			discordOut = append(discordOut, fmt.Sprintf(
				"`%s%s`", ctx.Prefix, strings.Join(target, " "),
			))
		case strings.HasPrefix(line, "*when discord*: "):
			discordOut = append(discordOut, line[len("*when discord*: "):])
		case strings.HasPrefix(line, "//"):
		case strings.HasPrefix(line, "---"):
			v := strings.TrimSpace(line[len("---"):])
			htmlOut = append(htmlOut, fmt.Sprintf(
				`<span class="divider">%s</span>`, ctx.htmlInline(v),
			))
			discordOut = append(discordOut, line)
		case strings.TrimSpace(line) == "":
		default:
			htmlOut = append(htmlOut, fmt.Sprintf(
				"<p>unrecognized:::%s</p>",
				html.EscapeString(line),
			))
			discordOut = append(discordOut, "unrecognized:::"+line)
		}
	}

	discordOut = append(
		discordOut,
		"",
		fmt.Sprintf("> <%s/%s>", docsSiteBaseURL, strings.Join(pathParts, "/")),
	)
	return RenderedDoc{
		HTML:    strings.Join(htmlOut, "\n"),
		Discord: strings.Join(discordOut, "\n"),
	}
}

func docChatMessage(author string, bot bool, content string) string {
	authorClass, botTag := "you", ""
	if bot {
		authorClass = "bot"
		botTag = `<span class="bottag">BOT</span>`
	}
	return fmt.Sprintf(
		`<div class="message"><img class="profile" src="%s" /><div class="author %s">%s%s</div><div class="msgcontent">%s</div></div>`,
		docsBotAvatarURL, authorClass, html.EscapeString(author), botTag,
		content,
	)
}

// docLinkTarget resolves a *link* value. Targets starting with "/" are
// absolute, everything else is relative to the document's directory.
// The value may be wrapped in braces.
func docLinkTarget(v string, pathParts []string) []string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "{")
	v = strings.TrimSuffix(v, "}")
	var target []string
	if !strings.HasPrefix(v, "/") {
		target = append(target, pathParts...)
	}
	for _, part := range strings.Split(v, "/") {
		if strings.TrimSpace(part) != "" {
			target = append(target, part)
		}
	}
	if len(target) == 0 {
		target = []string{""}
	}
	return target
}

func splitDocPath(docPath string) []string {
	docPath = path.Clean("/" + docPath)
	var parts []string
	for _, p := range strings.Split(docPath, "/") {
		if p != "" && p != "." {
			parts = append(parts, p)
		}
	}
	return parts
}
