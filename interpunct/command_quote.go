package interpunct

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"golang.org/x/time/rate"
)

const (
	quotePastebinURLFormat = "https://pastebin.com/raw/%s"
	quoteCacheTTL          = 5 * time.Minute
	quoteMaxResponseBytes  = 1 << 20
)

type quoteCacheEntry struct {
	quotes  []string
	fetched time.Time
}

// QuoteFetcher retrieves quote lists from pastebin. Fetches are rate
// limited globally and cached briefly per paste, so a busy guild does
// not hammer pastebin on every /quote.
type QuoteFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	timeout time.Duration
	logger  *slog.Logger

	mu    sync.Mutex
	cache map[string]quoteCacheEntry
}

func NewQuoteFetcher(
	cfg *QuoteConfig,
	client *http.Client,
	logger *slog.Logger,
) *QuoteFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &QuoteFetcher{
		client: client,
		limiter: rate.NewLimiter(
			rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)),
			cfg.Burst,
		),
		timeout: cfg.Timeout,
		logger:  logger,
		cache:   map[string]quoteCacheEntry{},
	}
}

// Fetch returns the quotes in the given paste. Pastes are parsed as
// blank-line separated blocks, so a single quote can span lines.
func (q *QuoteFetcher) Fetch(ctx context.Context, pasteID string) ([]string, error) {
	q.mu.Lock()
	entry, ok := q.cache[pasteID]
	q.mu.Unlock()
	if ok && time.Since(entry.fetched) < quoteCacheTTL {
		return entry.quotes, nil
	}

	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	if err := q.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u := fmt.Sprintf(quotePastebinURLFormat, pasteID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	rv, err := q.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pastebin request: %w", err)
	}
	defer func() {
		_ = rv.Body.Close()
	}()
	if rv.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pastebin returned status %d", rv.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(rv.Body, quoteMaxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading pastebin response: %w", err)
	}

	quotes := parseQuotes(string(body))
	q.mu.Lock()
	q.cache[pasteID] = quoteCacheEntry{quotes: quotes, fetched: time.Now()}
	q.mu.Unlock()
	return quotes, nil
}

// parseQuotes splits paste text into quotes on blank lines.
func parseQuotes(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var quotes []string
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block != "" {
			quotes = append(quotes, block)
		}
	}
	return quotes
}

// filterQuotes returns the quotes containing the search term,
// case-insensitively.
func filterQuotes(quotes []string, search string) []string {
	if search == "" {
		return quotes
	}
	lower := strings.ToLower(search)
	var matches []string
	for _, quote := range quotes {
		if strings.Contains(strings.ToLower(quote), lower) {
			matches = append(matches, quote)
		}
	}
	return matches
}

// boldSearchTerm wraps each occurrence of the search term in bold
// markers, preserving the original casing of the match.
func boldSearchTerm(quote string, search string) string {
	if search == "" {
		return quote
	}
	lowerQuote := strings.ToLower(quote)
	lowerSearch := strings.ToLower(search)
	var b strings.Builder
	i := 0
	for {
		j := strings.Index(lowerQuote[i:], lowerSearch)
		if j < 0 {
			b.WriteString(quote[i:])
			return b.String()
		}
		j += i
		b.WriteString(quote[i:j])
		b.WriteString("**")
		b.WriteString(quote[j : j+len(search)])
		b.WriteString("**")
		i = j + len(search)
	}
}

func (ip *Interpunct) handleCommandQuote(
	ctx context.Context,
	handler InteractionHandler,
) {
	i := handler.GetInteraction()
	logger := handler.Logger()

	replyHidden := func(content string) {
		err := handler.Respond(
			ctx, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseChannelMessageWithSource,
				Data: ephemeralMessage(content),
			},
		)
		if err != nil {
			logger.ErrorContext(ctx, "error responding", tint.Err(err))
		}
	}

	if i.GuildID == "" {
		replyHidden(ip.messages.Get(msgGuildOnly))
		return
	}
	settings, err := ip.guilds.Get(ctx, i.GuildID)
	if err != nil {
		logger.ErrorContext(ctx, "error loading settings", tint.Err(err))
		replyHidden("Something went wrong loading this server's settings.")
		return
	}
	if !settings.FunEnabled {
		replyHidden(ip.messages.Get(msgFunDisabled, "prefix", settings.Prefix))
		return
	}
	if settings.QuotePastebin == "" {
		replyHidden(ip.messages.Get(msgQuoteNotConfigured))
		return
	}

	search := ""
	if opt, ok := discordInteractionOptions(i)[quoteCommandSearchOption]; ok {
		search = strings.TrimSpace(opt.StringValue())
	}

	// The pastebin fetch can take longer than Discord's initial
	// response window, so defer first and edit in the result.
	err = handler.Respond(
		ctx, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		},
	)
	if err != nil {
		logger.ErrorContext(ctx, "error deferring response", tint.Err(err))
		return
	}
	edit := func(content string) {
		if _, e := handler.Edit(
			ctx, &discordgo.WebhookEdit{Content: &content},
		); e != nil {
			logger.ErrorContext(ctx, "error editing response", tint.Err(e))
		}
	}

	quotes, err := ip.quotes.Fetch(ctx, settings.QuotePastebin)
	if err != nil {
		logger.ErrorContext(ctx, "error fetching quotes", tint.Err(err))
		edit("Something went wrong fetching quotes. Try again in a minute.")
		return
	}
	matches := filterQuotes(quotes, search)
	if len(matches) == 0 {
		if search == "" {
			edit("The configured pastebin has no quotes in it.")
			return
		}
		edit(ip.messages.Get(msgQuoteNoMatches, "search", search))
		return
	}
	quote := matches[rand.Intn(len(matches))]
	quote = boldSearchTerm(quote, search)
	edit(truncate(quote, maxPanelContentLength))
}
