package interpunct

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"golang.org/x/time/rate"
)

const (
	triviaAPIURL           = "https://opentdb.com/api.php?amount=1"
	triviaMaxResponseBytes = 1 << 20
	triviaGameIDLength     = 8
	triviaCustomIDPrefix   = "TRIVIA"
	triviaFallbackEmoji    = "*️⃣"
)

// triviaQuestion is a single question from the Open Trivia DB API.
// Text fields arrive HTML-entity encoded and are decoded by
// decodeEntities before use.
type triviaQuestion struct {
	Category         string   `json:"category"`
	Type             string   `json:"type"`
	Difficulty       string   `json:"difficulty"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

func (q *triviaQuestion) decodeEntities() {
	q.Category = html.UnescapeString(q.Category)
	q.Difficulty = html.UnescapeString(q.Difficulty)
	q.Question = html.UnescapeString(q.Question)
	q.CorrectAnswer = html.UnescapeString(q.CorrectAnswer)
	for i, a := range q.IncorrectAnswers {
		q.IncorrectAnswers[i] = html.UnescapeString(a)
	}
}

type triviaAPIResponse struct {
	ResponseCode int              `json:"response_code"`
	Results      []triviaQuestion `json:"results"`
}

// TriviaFetcher retrieves questions from the Open Trivia DB. Fetches
// are rate limited globally, the same way /quote throttles pastebin.
type TriviaFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	timeout time.Duration
	logger  *slog.Logger
}

func NewTriviaFetcher(
	cfg *TriviaConfig,
	client *http.Client,
	logger *slog.Logger,
) *TriviaFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &TriviaFetcher{
		client: client,
		limiter: rate.NewLimiter(
			rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)),
			cfg.Burst,
		),
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// Fetch returns a single random question with its text fields decoded.
func (t *TriviaFetcher) Fetch(ctx context.Context) (*triviaQuestion, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, triviaAPIURL, nil)
	if err != nil {
		return nil, err
	}
	rv, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trivia request: %w", err)
	}
	defer func() {
		_ = rv.Body.Close()
	}()
	if rv.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trivia API returned status %d", rv.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(rv.Body, triviaMaxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading trivia response: %w", err)
	}

	var decoded triviaAPIResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("parsing trivia response: %w", err)
	}
	if decoded.ResponseCode != 0 {
		return nil, fmt.Errorf(
			"trivia API returned response code %d", decoded.ResponseCode,
		)
	}
	if len(decoded.Results) == 0 {
		return nil, errors.New("trivia API returned no questions")
	}

	q := decoded.Results[0]
	q.decodeEntities()
	return &q, nil
}

// choiceEmoji returns the letter or digit emoji matching the first
// character of a choice, or a wildcard for anything else.
func choiceEmoji(choice string) string {
	if choice == "" {
		return triviaFallbackEmoji
	}
	c := []rune(strings.ToLower(choice))[0]
	switch {
	case c >= 'a' && c <= 'z':
		return string(0x1F1E6 + c - 'a')
	case c >= '0' && c <= '9':
		return string(c) + "️⃣"
	}
	return triviaFallbackEmoji
}

// assignChoiceEmojis pairs each choice with the emoji of its first
// character. If two choices would collide, every choice falls back to
// positional letter emojis instead.
func assignChoiceEmojis(choices []string) []string {
	emojis := make([]string, len(choices))
	seen := map[string]bool{}
	unique := true
	for i, choice := range choices {
		e := choiceEmoji(choice)
		if seen[e] {
			unique = false
		}
		seen[e] = true
		emojis[i] = e
	}
	if unique {
		return emojis
	}
	for i := range emojis {
		emojis[i] = string(rune(0x1F1E6 + i))
	}
	return emojis
}

type triviaAnswer struct {
	choice int
	at     time.Time
}

// TriviaGame is one running round: a question, its shuffled choices,
// and the answers players have locked in so far.
type TriviaGame struct {
	id        string
	channelID string
	messageID string
	question  *triviaQuestion
	choices   []string
	emojis    []string
	correct   int
	deadline  time.Time

	mu      sync.Mutex
	over    bool
	answers map[string]triviaAnswer
}

func newTriviaGame(id string, q *triviaQuestion, deadline time.Time) *TriviaGame {
	choices := append([]string{q.CorrectAnswer}, q.IncorrectAnswers...)
	sort.Strings(choices)
	correct := 0
	for i, c := range choices {
		if c == q.CorrectAnswer {
			correct = i
			break
		}
	}
	return &TriviaGame{
		id:       id,
		question: q,
		choices:  choices,
		emojis:   assignChoiceEmojis(choices),
		correct:  correct,
		deadline: deadline,
		answers:  map[string]triviaAnswer{},
	}
}

// recordAnswer locks in (or replaces) a player's choice. Returns false
// once the round is over or for an out-of-range choice.
func (g *TriviaGame) recordAnswer(userID string, choice int) bool {
	if choice < 0 || choice >= len(g.choices) {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.over {
		return false
	}
	g.answers[userID] = triviaAnswer{choice: choice, at: time.Now()}
	return true
}

// end closes the round and returns the winning user IDs, fastest first.
func (g *TriviaGame) end() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.over = true

	type win struct {
		userID string
		at     time.Time
	}
	var wins []win
	for userID, a := range g.answers {
		if a.choice == g.correct {
			wins = append(wins, win{userID: userID, at: a.at})
		}
	}
	sort.Slice(
		wins, func(i, j int) bool {
			return wins[i].at.Before(wins[j].at)
		},
	)
	winners := make([]string, 0, len(wins))
	for _, w := range wins {
		winners = append(winners, w.userID)
	}
	return winners
}

func (g *TriviaGame) header() string {
	return fmt.Sprintf(
		"Trivia questions from <https://opentdb.com/>\n**Category**: %s\n**Difficulty**: %s",
		g.question.Category, g.question.Difficulty,
	)
}

func (g *TriviaGame) answerLines() string {
	var b strings.Builder
	for i, choice := range g.choices {
		fmt.Fprintf(&b, "> %s - %s\n", g.emojis[i], choice)
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderRunning renders the question message while answers are open.
func (g *TriviaGame) renderRunning(now time.Time) string {
	remaining := g.deadline.Sub(now).Round(time.Second)
	if remaining < 0 {
		remaining = 0
	}
	return fmt.Sprintf(
		"%s\n**Question**: %s\n**Answers**:\n%s\n**Time Left**: %ds",
		g.header(),
		g.question.Question,
		g.answerLines(),
		int(remaining.Seconds()),
	)
}

// renderFinal renders the question message after the round is over.
func (g *TriviaGame) renderFinal(winners []string) string {
	mentions := make([]string, 0, len(winners))
	for _, w := range winners {
		mentions = append(mentions, fmt.Sprintf("<@%s>", w))
	}
	winnerText := andList(mentions)
	if winnerText == "" {
		winnerText = "nobody"
	}
	return fmt.Sprintf(
		"%s\n**Question**: %s\n**Answers**:\n%s\n**Correct Answer**: %s - %s\n**Winners**: %s",
		g.header(),
		g.question.Question,
		g.answerLines(),
		g.emojis[g.correct],
		g.choices[g.correct],
		winnerText,
	)
}

// components renders one answer button per choice, chunked into rows.
func (g *TriviaGame) components() []discordgo.MessageComponent {
	buttons := make([]discordgo.MessageComponent, 0, len(g.choices))
	for i, choice := range g.choices {
		buttons = append(
			buttons, discordgo.Button{
				Label:    truncate(choice, maxButtonLabelLength),
				Style:    discordgo.SecondaryButton,
				Emoji:    &discordgo.ComponentEmoji{Name: g.emojis[i]},
				CustomID: triviaCustomID(g.id, i),
			},
		)
	}
	rows := make([]discordgo.MessageComponent, 0, 1)
	for _, chunk := range chunkItems(maxPanelButtonsPerRow, buttons...) {
		rows = append(rows, discordgo.ActionsRow{Components: chunk})
	}
	return rows
}

func triviaCustomID(gameID string, choice int) string {
	return fmt.Sprintf("%s|%s|%d", triviaCustomIDPrefix, gameID, choice)
}

func parseTriviaCustomID(customID string) (gameID string, choice int, ok bool) {
	parts := strings.Split(customID, "|")
	if len(parts) != 3 || parts[0] != triviaCustomIDPrefix || parts[1] == "" {
		return "", 0, false
	}
	choice, err := strconv.Atoi(parts[2])
	if err != nil {
		return "", 0, false
	}
	return parts[1], choice, true
}

// TriviaManager owns the live trivia rounds. Rounds only exist in
// memory; a restart simply ends them without a winner.
type TriviaManager struct {
	fetcher *TriviaFetcher
	session DiscordSessionHandler
	logger  *slog.Logger

	answerWindow time.Duration
	editInterval time.Duration

	mu    sync.Mutex
	games map[string]*TriviaGame
}

func NewTriviaManager(
	cfg *TriviaConfig,
	client *http.Client,
	logger *slog.Logger,
) *TriviaManager {
	return &TriviaManager{
		fetcher:      NewTriviaFetcher(cfg, client, logger),
		logger:       logger,
		answerWindow: cfg.AnswerWindow,
		editInterval: cfg.EditInterval,
		games:        map[string]*TriviaGame{},
	}
}

func (m *TriviaManager) register(game *TriviaGame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[game.id] = game
}

func (m *TriviaManager) unregister(gameID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.games, gameID)
}

func (m *TriviaManager) game(gameID string) (*TriviaGame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	game, ok := m.games[gameID]
	return game, ok
}

func (m *TriviaManager) editGameMessage(game *TriviaGame, content string) {
	components := game.components()
	_, err := m.session.ChannelMessageEditComplex(
		&discordgo.MessageEdit{
			ID:         game.messageID,
			Channel:    game.channelID,
			Content:    &content,
			Components: &components,
		},
	)
	if err != nil {
		m.logger.Error(
			"error editing trivia message",
			tint.Err(err),
			"game_id", game.id,
		)
	}
}

// run refreshes the countdown until the deadline, then finishes the
// round.
func (m *TriviaManager) run(game *TriviaGame) {
	ticker := time.NewTicker(m.editInterval)
	defer ticker.Stop()
	timer := time.NewTimer(time.Until(game.deadline))
	defer timer.Stop()
	for {
		select {
		case <-ticker.C:
			m.editGameMessage(game, game.renderRunning(time.Now()))
		case <-timer.C:
			m.finish(game)
			return
		}
	}
}

// finish closes the round, reveals the answer and the winners, and
// removes the answer buttons.
func (m *TriviaManager) finish(game *TriviaGame) {
	winners := game.end()
	m.unregister(game.id)

	content := game.renderFinal(winners)
	components := []discordgo.MessageComponent{}
	_, err := m.session.ChannelMessageEditComplex(
		&discordgo.MessageEdit{
			ID:         game.messageID,
			Channel:    game.channelID,
			Content:    &content,
			Components: &components,
		},
	)
	if err != nil {
		m.logger.Error(
			"error finishing trivia round",
			tint.Err(err),
			"game_id", game.id,
		)
	}
}

// HandleAnswer records a button click on a trivia question.
func (m *TriviaManager) HandleAnswer(
	ctx context.Context,
	handler InteractionHandler,
	gameID string,
	choice int,
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
			logger.ErrorContext(ctx, "error responding to answer", tint.Err(err))
		}
	}

	game, ok := m.game(gameID)
	if !ok {
		replyHidden("This trivia round is already over.")
		return
	}

	var userID string
	if i.Member != nil && i.Member.User != nil {
		userID = i.Member.User.ID
	} else if i.User != nil {
		userID = i.User.ID
	}
	if userID == "" || !game.recordAnswer(userID, choice) {
		replyHidden("This trivia round is already over.")
		return
	}
	replyHidden("✓ Answer locked in. You can change it until time runs out.")
}

func (ip *Interpunct) handleCommandTrivia(
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

	// the question fetch can outlast Discord's initial response window
	err = handler.Respond(
		ctx, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		},
	)
	if err != nil {
		logger.ErrorContext(ctx, "error deferring response", tint.Err(err))
		return
	}

	question, err := ip.trivia.fetcher.Fetch(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "error fetching trivia question", tint.Err(err))
		content := "Something went wrong fetching a trivia question. Try again in a minute."
		if _, e := handler.Edit(
			ctx, &discordgo.WebhookEdit{Content: &content},
		); e != nil {
			logger.ErrorContext(ctx, "error editing response", tint.Err(e))
		}
		return
	}

	gameID, err := generateRandomHexString(triviaGameIDLength)
	if err != nil {
		logger.ErrorContext(ctx, "error generating game ID", tint.Err(err))
		return
	}
	game := newTriviaGame(
		gameID, question, time.Now().Add(ip.trivia.answerWindow),
	)

	content := game.renderRunning(time.Now())
	components := game.components()
	if _, err = handler.Edit(
		ctx, &discordgo.WebhookEdit{
			Content:    &content,
			Components: &components,
		},
	); err != nil {
		logger.ErrorContext(ctx, "error posting trivia question", tint.Err(err))
		return
	}

	// the countdown edits happen outside the interaction, so the round
	// needs the concrete message
	msg, err := handler.GetResponse(ctx)
	if err != nil || msg == nil {
		logger.ErrorContext(ctx, "error loading trivia message", tint.Err(err))
		return
	}
	game.messageID = msg.ID
	game.channelID = msg.ChannelID
	if game.channelID == "" {
		game.channelID = i.ChannelID
	}

	ip.trivia.register(game)
	go ip.trivia.run(game)
}
