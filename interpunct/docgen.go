package interpunct

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const (
	docsWebDirName     = "web"
	docsDiscordDirName = "discord"
	docsEmojiFileName  = "emoji.json"
	docsSidebarFile    = "sidebar.json"

	docsTemplateContentSlot = "{{html|content}}"
	docsTemplateSidebarSlot = "{{html|sidebar}}"
)

// docsDefaultTemplate is used when no template file is configured.
const docsDefaultTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width, initial-scale=1" />
<title>inter·punct bot</title>
<link rel="stylesheet" href="/style.css" />
</head>
<body>
<nav class="sidebar">{{html|sidebar}}</nav>
<main class="content">{{html|content}}</main>
</body>
</html>
`

// DocsGenerator renders a tree of .dg content files into an HTML site
// and a parallel tree of Discord markdown, ready to be sent as help
// messages.
type DocsGenerator struct {
	config *DocsConfig
	logger *slog.Logger
}

func NewDocsGenerator(cfg *DocsConfig, logger *slog.Logger) *DocsGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocsGenerator{config: cfg, logger: logger}
}

type docsSidebarEntry struct {
	Type string
	Link string
	Name string
}

// UnmarshalJSON accepts the [type, link, name?] tuple form the sidebar
// file uses.
func (e *docsSidebarEntry) UnmarshalJSON(data []byte) error {
	var tuple []string
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if len(tuple) < 2 {
		return fmt.Errorf("sidebar entry needs at least [type, link]: %q", data)
	}
	e.Type = tuple[0]
	e.Link = tuple[1]
	if len(tuple) > 2 && tuple[2] != "" {
		e.Name = tuple[2]
	} else {
		e.Name = path.Base(tuple[1])
	}
	return nil
}

// Generate walks the content directory and writes the rendered site to
// the output directory, under web/ and discord/ subtrees.
func (g *DocsGenerator) Generate() error {
	cfg := g.config
	if cfg.ContentDir == "" {
		return errors.New("docs content directory not set")
	}
	if cfg.OutputDir == "" {
		return errors.New("docs output directory not set")
	}

	tmpl := docsDefaultTemplate
	if cfg.TemplateFile != "" {
		data, err := os.ReadFile(cfg.TemplateFile)
		if err != nil {
			return fmt.Errorf("reading template: %w", err)
		}
		tmpl = string(data)
	}

	ctx := &DGMDContext{Prefix: DefaultGuildPrefix}
	if err := g.loadEmoji(ctx); err != nil {
		return err
	}
	sidebar, err := g.loadSidebar()
	if err != nil {
		return err
	}

	webDir := filepath.Join(cfg.OutputDir, docsWebDirName)
	discordDir := filepath.Join(cfg.OutputDir, docsDiscordDirName)

	count := 0
	err = filepath.WalkDir(
		cfg.ContentDir,
		func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(p, dgmdFileExtension) {
				return nil
			}
			rel, err := filepath.Rel(cfg.ContentDir, p)
			if err != nil {
				return err
			}
			if err := g.generateFile(
				rel, p, tmpl, ctx, sidebar, webDir, discordDir,
			); err != nil {
				return fmt.Errorf("rendering %s: %w", rel, err)
			}
			count++
			return nil
		},
	)
	if err != nil {
		return err
	}
	g.logger.Info(
		"generated documentation",
		"files", count,
		"output_dir", cfg.OutputDir,
	)
	return nil
}

func (g *DocsGenerator) generateFile(
	rel string,
	fullPath string,
	tmpl string,
	ctx *DGMDContext,
	sidebar []docsSidebarEntry,
	webDir string,
	discordDir string,
) error {
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return err
	}
	docPath := filepath.ToSlash(filepath.Dir(rel))
	if docPath == "." {
		docPath = ""
	}
	doc := RenderDGMD(docPath, string(data), ctx)

	base := strings.TrimSuffix(rel, dgmdFileExtension)
	webFile := filepath.Join(webDir, base+".html")
	discordFile := filepath.Join(discordDir, base+".md")

	page := strings.Replace(tmpl, docsTemplateContentSlot, doc.HTML, 1)
	page = strings.Replace(
		page, docsTemplateSidebarSlot, renderSidebar("/"+docPath, sidebar), 1,
	)

	for _, out := range []struct {
		file    string
		content string
	}{
		{webFile, page},
		{discordFile, doc.Discord},
	} {
		if err := os.MkdirAll(filepath.Dir(out.file), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(out.file, []byte(out.content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (g *DocsGenerator) loadEmoji(ctx *DGMDContext) error {
	data, err := os.ReadFile(
		filepath.Join(g.config.ContentDir, docsEmojiFileName),
	)
	if errors.Is(err, fs.ErrNotExist) {
		g.logger.Warn("no emoji file found, {{Emoji}} calls will render as missing")
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading emoji file: %w", err)
	}
	ctx.Emoji = map[string]DocEmoji{}
	if err := json.Unmarshal(data, &ctx.Emoji); err != nil {
		return fmt.Errorf("parsing emoji file: %w", err)
	}
	return nil
}

func (g *DocsGenerator) loadSidebar() ([]docsSidebarEntry, error) {
	data, err := os.ReadFile(
		filepath.Join(g.config.ContentDir, docsSidebarFile),
	)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading sidebar file: %w", err)
	}
	var entries []docsSidebarEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing sidebar file: %w", err)
	}
	return entries, nil
}

func renderSidebar(currentURL string, entries []docsSidebarEntry) string {
	var b strings.Builder
	for _, e := range entries {
		active := ""
		if e.Link == currentURL {
			active = " active"
		}
		switch e.Type {
		case "category":
			fmt.Fprintf(
				&b,
				`<a class="category%s" href="%s"><header class="category-name">%s</header></a>`,
				active, html.EscapeString(e.Link), html.EscapeString(e.Name),
			)
		case "channel":
			fmt.Fprintf(
				&b,
				`<a class="channel%s" href="%s"><div class="channel-name">%s</div></a>`,
				active, html.EscapeString(e.Link),
				html.EscapeString(strings.ToLower(e.Name)),
			)
		}
		b.WriteString("\n")
	}
	return b.String()
}
