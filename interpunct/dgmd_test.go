package interpunct

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDGMDContext() *DGMDContext {
	return &DGMDContext{
		Prefix: "ip!",
		Emoji: map[string]DocEmoji{
			"success": {
				Discord: "<:success:508840840416854026>",
				URL:     "https://cdn.discordapp.com/emojis/508840840416854026.png",
				Name:    "success",
			},
		},
	}
}

func TestRenderDGMD_Headings(t *testing.T) {
	t.Parallel()
	doc := RenderDGMD("help", "## Getting Started", testDGMDContext())
	assert.Contains(t, doc.HTML, "<h2>Getting Started</h2>")
	assert.Contains(t, doc.Discord, "**Getting Started**")
}

func TestRenderDGMD_Text(t *testing.T) {
	t.Parallel()
	ctx := testDGMDContext()

	doc := RenderDGMD("help", ": plain paragraph", ctx)
	assert.Contains(t, doc.HTML, "<p>plain paragraph</p>")
	assert.Contains(t, doc.Discord, "plain paragraph")

	doc = RenderDGMD("help", "*text*: also a paragraph", ctx)
	assert.Contains(t, doc.HTML, "<p>also a paragraph</p>")
}

func TestRenderDGMD_CommandAndOutput(t *testing.T) {
	t.Parallel()
	text := "Command: ping\nOutput: pong"
	doc := RenderDGMD("help", text, testDGMDContext())

	// command lines render as a fake chat message from "you", with the
	// prefix prepended
	assert.Contains(t, doc.HTML, "ip!ping")
	assert.Contains(t, doc.HTML, `class="author you"`)

	// output lines come from the bot
	assert.Contains(t, doc.HTML, "pong")
	assert.Contains(t, doc.HTML, `class="author bot"`)
	assert.Contains(t, doc.HTML, `<span class="bottag">BOT</span>`)

	// neither appears in the discord rendering
	assert.NotContains(t, doc.Discord, "pong")
}

func TestRenderDGMD_Comments(t *testing.T) {
	t.Parallel()
	doc := RenderDGMD("help", "// internal note\n: visible", testDGMDContext())
	assert.NotContains(t, doc.HTML, "internal note")
	assert.NotContains(t, doc.Discord, "internal note")
	assert.Contains(t, doc.HTML, "visible")
}

func TestRenderDGMD_Divider(t *testing.T) {
	t.Parallel()
	doc := RenderDGMD("help", "--- Commands", testDGMDContext())
	assert.Contains(t, doc.HTML, `<span class="divider">Commands</span>`)
	assert.Contains(t, doc.Discord, "--- Commands")
}

func TestRenderDGMD_WhenDiscord(t *testing.T) {
	t.Parallel()
	doc := RenderDGMD(
		"help", "*when discord*: markdown only line", testDGMDContext(),
	)
	assert.NotContains(t, doc.HTML, "markdown only line")
	assert.Contains(t, doc.Discord, "markdown only line")
}

func TestRenderDGMD_UnrecognizedLine(t *testing.T) {
	t.Parallel()
	doc := RenderDGMD("help", "mystery directive", testDGMDContext())
	assert.Contains(t, doc.HTML, "unrecognized:::mystery directive")
	assert.Contains(t, doc.Discord, "unrecognized:::mystery directive")
}

func TestRenderDGMD_DiscordFooter(t *testing.T) {
	t.Parallel()
	doc := RenderDGMD("fun/quote", ": hi", testDGMDContext())
	assert.True(
		t,
		strings.HasSuffix(doc.Discord, "> <https://interpunct.info/fun/quote>"),
		"got: %q", doc.Discord,
	)
}

func TestRenderDGMD_Links(t *testing.T) {
	t.Parallel()
	ctx := testDGMDContext()

	// relative links resolve against the document's directory
	doc := RenderDGMD("fun", "*link*: quote", ctx)
	assert.Contains(t, doc.HTML, `<a href="/fun/quote">quote</a>`)
	assert.Contains(t, doc.Discord, "`ip!fun quote`")

	// absolute links replace the path, and braces are tolerated
	doc = RenderDGMD("fun", "*link*: {/settings/prefix}", ctx)
	assert.Contains(t, doc.HTML, `<a href="/settings/prefix">prefix</a>`)
	assert.Contains(t, doc.Discord, "`ip!settings prefix`")
}

func TestRenderInline_Calls(t *testing.T) {
	t.Parallel()
	ctx := testDGMDContext()

	for _, tc := range []struct {
		in          string
		wantHTML    string
		wantDiscord string
	}{
		{
			in:          "see {{Channel|general}}",
			wantHTML:    `see <a class="tag">general</a>`,
			wantDiscord: "see #general",
		},
		{
			in:          "{{Link|https://interpunct.info}}",
			wantHTML:    `<a href="https://interpunct.info">https://interpunct.info</a>`,
			wantDiscord: "<https://interpunct.info>",
		},
		{
			in:          "run {{Command|quote}}",
			wantHTML:    `run <code class="inline">ip!quote</code>`,
			wantDiscord: "run ip!quote",
		},
		{
			in:          "{{Bold|important}}",
			wantHTML:    "<b>important</b>",
			wantDiscord: "**important**",
		},
		{
			in:          "{{Emoji|success}}",
			wantHTML:    `src="https://cdn.discordapp.com/emojis/508840840416854026.png"`,
			wantDiscord: "<:success:508840840416854026>",
		},
		{
			in:          "by {{Interpunct|}}",
			wantHTML:    `by <a class="tag">@inter·punct</a>`,
			wantDiscord: "by @inter·punct",
		},
		{
			in:          "prefix is {{Computed|prefix}}",
			wantHTML:    "prefix is ip!",
			wantDiscord: "prefix is ip!",
		},
		{
			in:          "{{Atmention|somebody}}",
			wantHTML:    `<a class="tag">@somebody</a>`,
			wantDiscord: "@somebody",
		},
	} {
		assert.Contains(t, ctx.htmlInline(tc.in), tc.wantHTML, "input %q", tc.in)
		assert.Equal(t, tc.wantDiscord, ctx.discordInline(tc.in), "input %q", tc.in)
	}
}

func TestRenderInline_UnknownCall(t *testing.T) {
	t.Parallel()
	ctx := testDGMDContext()
	assert.Contains(
		t,
		ctx.htmlInline("{{Mystery|arg}}"),
		`<span class="callerr">Mystery|arg</span>`,
	)
	assert.Equal(t, "`{{Mystery|arg}}`", ctx.discordInline("{{Mystery|arg}}"))
}

func TestRenderInline_UnterminatedCall(t *testing.T) {
	t.Parallel()
	ctx := testDGMDContext()
	assert.Equal(t, "open {{Bold|x", ctx.discordInline("open {{Bold|x"))
}

func TestRenderInline_EscapesHTML(t *testing.T) {
	t.Parallel()
	ctx := testDGMDContext()
	got := ctx.htmlInline(`<script> & {{Bold|<b>}}`)
	assert.NotContains(t, got, "<script>")
	assert.Contains(t, got, "&lt;script&gt;")
	assert.Contains(t, got, "<b>&lt;b&gt;</b>")
}

func TestDGMDContext_MissingEmoji(t *testing.T) {
	t.Parallel()
	ctx := &DGMDContext{Prefix: "ip!"}
	assert.Equal(t, ":err_no_emoji:", ctx.discordInline("{{Emoji|unknown}}"))
	assert.Contains(t, ctx.htmlInline("{{Emoji|unknown}}"), "err_no_emoji")
}

func TestSplitDocPath(t *testing.T) {
	t.Parallel()
	assert.Empty(t, splitDocPath(""))
	assert.Equal(t, []string{"help"}, splitDocPath("help"))
	assert.Equal(t, []string{"fun", "quote"}, splitDocPath("fun/quote"))
	assert.Equal(t, []string{"fun", "quote"}, splitDocPath("/fun//quote/"))
}

func TestDocLinkTarget(t *testing.T) {
	t.Parallel()
	require.Equal(
		t,
		[]string{"fun", "quote"},
		docLinkTarget("quote", []string{"fun"}),
	)
	require.Equal(
		t,
		[]string{"settings"},
		docLinkTarget("/settings", []string{"fun"}),
	)
	require.Equal(t, []string{""}, docLinkTarget("", nil))
}
