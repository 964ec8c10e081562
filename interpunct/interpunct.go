package interpunct

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

var (
	// When building, set these like:
	// -ldflags "-X github.com/Bookworm370/interpunctbot/interpunct.Version=$$(date +'%Y%m%d')"

	Version   = "dev"
	CommitSHA = "unknown"
	BuildTime = "unknown"
)

var (
	defaultLogWriter io.Writer = os.Stdout
)

// Interpunct is the top-level bot. It owns the Discord session, the
// database, the guild settings cache, the panel stores and the panel
// editor, and routes gateway events to them.
type Interpunct struct {
	config *Config

	db      DBI
	writeDB DBI

	dbNotifier DBNotifier

	discord  *Discord
	guilds   *GuildStore
	panels   *PanelStore
	editor   *PanelEditor
	inputs   *InputRequests
	quotes   *QuoteFetcher
	trivia   *TriviaManager
	messages *Messages

	logger     *slog.Logger
	logHandler slog.Handler

	startedAt time.Time

	runMu sync.Mutex

	// signalStop triggers a graceful shutdown
	signalStop chan struct{}

	// signalReady is signaled once Run finishes starting up
	signalReady chan struct{}

	// eventShutdown is signaled when Run has finished shutting down
	eventShutdown chan struct{}

	// triggerGuildRefreshCh carries guild IDs whose cached settings
	// should be dropped. An empty string drops the entire cache.
	triggerGuildRefreshCh chan string

	getInteractionHandlerFunc func(
		ctx context.Context,
		i *discordgo.InteractionCreate,
	) InteractionHandler
}

// New creates a new Interpunct bot with the given configuration.
// The database isn't opened and the gateway isn't connected until
// [Interpunct.Run] is called.
func New(config *Config) (*Interpunct, error) {
	var errs []error

	switch config.DatabaseType {
	case dbTypeSQLite, dbTypePostgres:
		//
	default:
		errs = append(
			errs,
			errors.New("invalid database type (must be 'sqlite' or 'postgres')"),
		)
	}

	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}

	ip := &Interpunct{
		config:                config,
		signalReady:           make(chan struct{}, 1),
		eventShutdown:         make(chan struct{}, 1),
		triggerGuildRefreshCh: make(chan string, 1),
	}

	logWriter := newLogWriter(config.LogFile)
	ip.logHandler = tint.NewHandler(
		logWriter, &tint.Options{
			Level:     ip.config.LogLevel,
			AddSource: true,
		},
	)
	ip.logger = slog.New(ip.logHandler)
	slog.SetDefault(ip.logger)

	ip.config.Discord.httpClient = ip.config.HTTPClient

	disc, err := newDiscord(ip.config.Discord)
	if err != nil {
		errs = append(errs, err)
	}

	discordgo.Logger = discordgoLoggerFunc(
		context.Background(),
		tint.NewHandler(
			logWriter, &tint.Options{
				Level:     ip.config.Discord.DiscordGoLogLevel,
				AddSource: true,
			},
		).WithAttrs([]slog.Attr{slog.String(loggerNameKey, "discordgo")}),
	)

	disc.logger = slog.New(
		tint.NewHandler(
			logWriter, &tint.Options{
				Level:     ip.config.Discord.LogLevel,
				AddSource: true,
			},
		),
	).With(loggerNameKey, "discord")

	ip.discord = disc
	disc.ip = ip

	ip.messages = NewMessages()
	ip.inputs = NewInputRequests()
	ip.quotes = NewQuoteFetcher(
		ip.config.Quotes,
		ip.config.HTTPClient,
		ip.logger.With(loggerNameKey, "quotes"),
	)
	ip.trivia = NewTriviaManager(
		ip.config.Trivia,
		ip.config.HTTPClient,
		ip.logger.With(loggerNameKey, "trivia"),
	)

	return ip, errors.Join(errs...)
}

func (ip *Interpunct) ValidateConfig() error {
	return structValidator.Struct(ip.config)
}

// RegisterSlashCommands registers the bot's slash commands with Discord,
// overwriting any previously registered set.
func (ip *Interpunct) RegisterSlashCommands(options ...discordgo.RequestOption) (
	[]*discordgo.ApplicationCommand,
	error,
) {
	return ip.discord.registerCommands(options...)
}

func (ip *Interpunct) getLogger(ctx context.Context) (
	context.Context,
	*slog.Logger,
) {
	logger, ok := ContextLogger(ctx)
	if logger == nil || !ok {
		logger = ip.logger
		if logger == nil {
			logger = slog.Default()
		}
		ctx = WithLogger(ctx, logger)
	}
	return ctx, logger
}

// Run starts the bot and blocks until the context is canceled or a
// stop signal arrives, then shuts down gracefully.
func (ip *Interpunct) Run(ctx context.Context) error {
	// prevents concurrent runs
	ip.runMu.Lock()
	defer ip.runMu.Unlock()

	ip.signalStop = make(chan struct{}, 1)
	ip.startedAt = time.Now()
	logger := ip.logger

	if err := ip.ValidateConfig(); err != nil {
		logger.Error("invalid config", tint.Err(err))
		return err
	}

	ctx = WithLogger(ctx, logger)
	runtimeWG := &sync.WaitGroup{}

	logger.LogAttrs(ctx, slog.LevelInfo, "starting", slog.Any("config", ip.config))
	if ip.signalReady == nil {
		ip.signalReady = make(chan struct{}, 1)
	}

	// the 'runtime' context - canceling it triggers a graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-ip.signalStop:
			ip.logger.Warn("got stop signal, canceling")
			cancel()
		case <-ctx.Done():
			ip.logger.Warn("context canceled, sending stop signal")
			ip.signalStop <- struct{}{}
			return
		}
	}()

	startCtx, startCancel := context.WithTimeout(ctx, ip.config.StartupTimeout)
	defer startCancel()

	initErr := make(chan error, 1)
	go func() {
		logger.Debug("initializing run...")
		initErr <- ip.initRun(startCtx, ctx)
	}()

	select {
	case <-startCtx.Done():
		return fmt.Errorf("startup cancelled or timed out")
	case err := <-initErr:
		if err != nil {
			logger.ErrorContext(ctx, "init error", tint.Err(err))
			return err
		}
		logger.InfoContext(ctx, "init complete")
	}

	if err := ip.initDiscordSession(ctx, runtimeWG); err != nil {
		logger.ErrorContext(ctx, "error creating discord session", tint.Err(err))
		return err
	}

	if err := ip.discord.session.Open(); err != nil {
		return fmt.Errorf("error opening discord connection: %w", err)
	}

	if _, err := ip.RegisterSlashCommands(); err != nil {
		logger.ErrorContext(ctx, "error registering slash commands", tint.Err(err))
		return err
	}

	if ip.config.Discord.CustomStatus != "" {
		if err := ip.discord.updateCustomStatus(
			ip.config.Discord.CustomStatus,
		); err != nil {
			logger.WarnContext(ctx, "error setting custom status", tint.Err(err))
		}
	}

	runtimeWG.Add(1)
	go func() {
		defer runtimeWG.Done()
		ip.guilds.refreshLoop(ctx, ip.triggerGuildRefreshCh)
	}()

	runtimeWG.Add(1)
	go func() {
		defer runtimeWG.Done()
		if e := ip.dbNotifier.Listen(
			ctx, ip.dbNotifier.GuildSettingsChannelName(),
		); e != nil {
			ip.logger.ErrorContext(
				ctx, "error listening to guild settings channel", tint.Err(e),
			)
		}
	}()

	runtimeWG.Add(1)
	go func() {
		defer runtimeWG.Done()
		if e := ip.dbNotifier.Listen(
			ctx, ip.dbNotifier.StopChannelName(),
		); e != nil {
			ip.logger.ErrorContext(
				ctx, "error listening to stop channel", tint.Err(e),
			)
		}
	}()

	ip.signalReady <- struct{}{}
	ip.logger.InfoContext(ctx, "sent ready signal")

	<-ctx.Done()

	return ip.shutdown(ctx, runtimeWG)
}

func (ip *Interpunct) initRun(startCtx context.Context, ctx context.Context) error {
	ip.logger.Debug("initializing DB...")
	if err := ip.initDB(startCtx); err != nil {
		return fmt.Errorf("error initializing database: %w", err)
	}
	ip.logger.Debug("finished initializing DB")

	notifier, err := newDBNotifier(ip)
	if err != nil {
		return fmt.Errorf("error creating db notifier: %w", err)
	}
	ip.dbNotifier = notifier

	ip.guilds = NewGuildStore(ip.db, ip.writeDB, ip.logger)
	ip.guilds.setNotifier(notifier)
	ip.panels = NewPanelStore(ip.db, ip.writeDB, ip.logger)
	ip.editor = NewPanelEditor(
		ip.db,
		ip.writeDB,
		ip.panels,
		ip.guilds,
		ip.inputs,
		nil,
		ip.logger,
	)

	cutoff := time.Now().Add(-ip.config.PanelSessionMaxAge).UnixMilli()
	if pruneErr := ip.editor.PruneSessions(startCtx, cutoff); pruneErr != nil {
		ip.logger.WarnContext(
			ctx, "error pruning stale editor sessions", tint.Err(pruneErr),
		)
	}

	return nil
}

func (ip *Interpunct) initDB(ctx context.Context) error {
	db, err := CreateDB(ctx, ip.config.DatabaseType, ip.config.Database)
	if err != nil {
		return err
	}
	dbLogger := slog.New(
		tint.NewHandler(
			defaultLogWriter, &tint.Options{
				Level:     ip.config.DatabaseLogLevel,
				AddSource: true,
			},
		),
	)
	db.Logger = newGORMLogger(ip.logHandler, ip.config.DatabaseSlowThreshold)

	concurrentWrites := ip.config.DatabaseType == dbTypePostgres
	ip.db = NewDatabase(db, dbLogger, concurrentWrites)
	ip.writeDB = NewDatabase(db, dbLogger, concurrentWrites)
	return nil
}

func (ip *Interpunct) initDiscordSession(
	ctx context.Context,
	runtimeWG *sync.WaitGroup,
) error {
	logger := ip.logger.With(loggerNameKey, "discord_session")

	if ip.discord.session == nil {
		disc, discErr := ip.discord.newSession()
		if discErr != nil {
			return fmt.Errorf("error creating discord session: %w", discErr)
		}
		ip.discord.session = disc
	}
	ip.editor.session = ip.discord.session
	ip.trivia.session = ip.discord.session

	ctx = WithLogger(ctx, logger)

	for _, h := range ip.discord.discordgoRemoveHandlerFuncs {
		h()
	}

	ip.discord.session.SetIdentify(
		discordgo.Identify{
			Intents: ip.config.Discord.GatewayIntents,
			Presence: discordgo.GatewayStatusUpdate{
				Status: ip.config.Discord.CustomStatus,
			},
		},
	)

	ip.discord.discordgoRemoveHandlerFuncs = []func(){
		ip.discord.session.AddHandler(ip.discord.handlerConnect()),
		ip.discord.session.AddHandler(ip.discord.handlerDisconnect()),
		ip.discord.session.AddHandler(ip.discord.handlerReady()),
		ip.discord.session.AddHandler(
			func(s *discordgo.Session, _ *discordgo.Ready) {
				if s.State != nil && s.State.User != nil {
					ip.editor.setBotUserID(s.State.User.ID)
				}
			},
		),
		ip.discord.session.AddHandler(
			func(
				_ *discordgo.Session,
				i *discordgo.InteractionCreate,
			) {
				handler := ip.getInteractionHandlerFunc(ctx, i)
				runtimeWG.Add(1)
				go func() {
					defer runtimeWG.Done()
					ip.handleInteraction(ctx, handler)
				}()
			},
		),
		ip.discord.session.AddHandler(
			func(
				_ *discordgo.Session,
				m *discordgo.MessageCreate,
			) {
				runtimeWG.Add(1)
				go func() {
					defer runtimeWG.Done()
					ip.handleDiscordMessage(ctx, m)
				}()
			},
		),
	}

	if ip.getInteractionHandlerFunc == nil {
		ip.getInteractionHandlerFunc = func(
			_ context.Context,
			i *discordgo.InteractionCreate,
		) InteractionHandler {
			return GatewayHandler{
				session:     ip.discord.session,
				interaction: i,
				logger: ip.logger.With(
					slog.Group(
						"interaction",
						interactionLogAttrs(*i)...,
					),
				),
			}
		}
	}
	return nil
}

func (ip *Interpunct) shutdown(
	ctx context.Context,
	runtimeWG *sync.WaitGroup,
) error {
	ip.logger.WarnContext(ctx, "shutting down")
	defer func() {
		if ip.eventShutdown != nil {
			go func() {
				ip.eventShutdown <- struct{}{}
			}()
		}
	}()

	shutdownStart := time.Now()
	closeCtx, closeCancel := context.WithTimeout(
		context.Background(),
		ip.config.ShutdownTimeout,
	)
	defer closeCancel()

	gracefulShutdownCh := make(chan struct{}, 1)
	go func() {
		runtimeWG.Wait()

		if ip.discord.session != nil {
			ip.logger.InfoContext(ctx, "closing discord session")
			if err := ip.discord.session.Close(); err != nil {
				ip.logger.ErrorContext(
					ctx, "error closing discord session", tint.Err(err),
				)
			}
			for _, h := range ip.discord.discordgoRemoveHandlerFuncs {
				h()
			}
		}
		gracefulShutdownCh <- struct{}{}
	}()

	select {
	case <-gracefulShutdownCh:
		ip.logger.InfoContext(
			ctx,
			"shutdown complete",
			"shutdown_duration", time.Since(shutdownStart),
		)
		return nil
	case <-closeCtx.Done():
		ip.logger.Warn("shutdown timed out, exiting anyway")
		return fmt.Errorf("shutdown timed out after %s", ip.config.ShutdownTimeout)
	}
}

// Stop signals a running bot to shut down.
func (ip *Interpunct) Stop() {
	select {
	case ip.signalStop <- struct{}{}:
	default:
	}
}

func (ip *Interpunct) handleInteraction(
	ctx context.Context,
	handler InteractionHandler,
) {
	defer func() {
		if rc := recover(); rc != nil {
			ip.logger.ErrorContext(
				ctx,
				"panic handling interaction",
				"recovered", rc,
				"stack", string(debug.Stack()),
			)
		}
	}()

	i := handler.GetInteraction()
	logger := handler.Logger()

	discordUser := getDiscordUser(i)
	if discordUser == nil {
		logger.ErrorContext(
			ctx,
			"no user found in interaction",
			"interaction", structToSlogValue(i),
		)
		return
	}

	logger = logger.With(slog.Group("interaction", interactionLogAttrs(*i)...))
	ctx = WithLogger(ctx, logger)
	logger.InfoContext(
		ctx, "received new interaction",
		"user", structToSlogValue(discordUser),
	)

	interactionLog, err := newInteractionLog(i, discordUser, handler)
	if err != nil {
		logger.ErrorContext(ctx, "error marshaling interaction", tint.Err(err))
	}

	wg := &sync.WaitGroup{}
	defer wg.Wait()

	if interactionLog != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, createErr := ip.writeDB.Create(ctx, interactionLog); createErr != nil {
				logger.ErrorContext(ctx, "error logging interaction", tint.Err(createErr))
			}
		}()
	}

	if discordUser.Bot {
		logger.WarnContext(ctx, "user is bot, ignoring", "user", discordUser)
		return
	}

	switch i.Type {
	case discordgo.InteractionPing:
		_ = handler.Respond(
			ctx, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponsePong,
			},
		)
	case discordgo.InteractionMessageComponent:
		ip.handleComponentInteraction(ctx, handler)
	case discordgo.InteractionApplicationCommand:
		switch i.ApplicationCommandData().Name {
		case DiscordSlashCommandPanel:
			ip.handleCommandPanel(ctx, handler)
		case DiscordSlashCommandSettings:
			ip.handleCommandSettings(ctx, handler)
		case DiscordSlashCommandQuote:
			ip.handleCommandQuote(ctx, handler)
		case DiscordSlashCommandAbout:
			ip.handleCommandAbout(ctx, handler)
		case DiscordSlashCommandTrivia:
			ip.handleCommandTrivia(ctx, handler)
		case DiscordSlashCommandEmoji:
			ip.handleCommandEmoji(ctx, handler)
		default:
			ip.handleUnknownCommand(ctx, handler)
		}
	default:
		logger.WarnContext(
			ctx, "ignoring unsupported interaction type",
			"type", i.Type.String(),
		)
	}
}

// handleComponentInteraction routes a component click: first to any
// live editor session, then to sent-panel buttons.
func (ip *Interpunct) handleComponentInteraction(
	ctx context.Context,
	handler InteractionHandler,
) {
	i := handler.GetInteraction()
	logger := handler.Logger()

	if ip.editor.HandleComponent(ctx, handler) {
		return
	}

	customID := i.MessageComponentData().CustomID
	if roleID, ok := parseGrantRoleCustomID(customID); ok {
		ip.editor.HandleGrantRole(ctx, handler, roleID)
		return
	}
	if gameID, choice, ok := parseTriviaCustomID(customID); ok {
		ip.trivia.HandleAnswer(ctx, handler, gameID, choice)
		return
	}

	switch {
	case strings.HasPrefix(customID, "NONE|"):
		// inert button on a sent panel
		if err := handler.Respond(
			ctx, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseDeferredMessageUpdate,
			},
		); err != nil {
			logger.ErrorContext(ctx, "error acknowledging click", tint.Err(err))
		}
	case strings.HasPrefix(customID, "UNSUPPORTED|"):
		if err := handler.Respond(
			ctx, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseChannelMessageWithSource,
				Data: ephemeralMessage("This button isn't supported yet."),
			},
		); err != nil {
			logger.ErrorContext(ctx, "error responding to click", tint.Err(err))
		}
	default:
		logger.WarnContext(ctx, "unrecognized component", "custom_id", customID)
		_ = handler.Respond(
			ctx, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseDeferredMessageUpdate,
			},
		)
	}
}

// handleUnknownCommand replies to a slash command the bot doesn't
// recognize, respecting the guild's unknown-command visibility setting.
func (ip *Interpunct) handleUnknownCommand(
	ctx context.Context,
	handler InteractionHandler,
) {
	i := handler.GetInteraction()
	logger := handler.Logger()
	commandName := i.ApplicationCommandData().Name
	logger.WarnContext(ctx, "unknown command", "command", commandName)

	visibility := UnknownCommandAlways
	var prefix = DefaultGuildPrefix
	if i.GuildID != "" {
		if settings, err := ip.guilds.Get(ctx, i.GuildID); err == nil {
			visibility = settings.UnknownCommandMessages
			prefix = settings.Prefix
		}
	}

	switch visibility {
	case UnknownCommandNever:
		return
	case UnknownCommandAdmins:
		if i.GuildID == "" ||
			!ip.editor.memberCanManageBot(ctx, i.GuildID, i.Member) {
			return
		}
	}

	_ = handler.Respond(
		ctx, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: ephemeralMessage(
				ip.messages.Get(
					msgUnknownCommand,
					"command", commandName,
					"prefix", prefix,
				),
			),
		},
	)
}

// handleDiscordMessage feeds channel messages into the editor's input
// side channel.
func (ip *Interpunct) handleDiscordMessage(
	ctx context.Context,
	m *discordgo.MessageCreate,
) {
	ctx, logger := ip.getLogger(ctx)

	if m.Author == nil || m.Author.Bot {
		return
	}
	if m.Author.ID == ip.config.Discord.ApplicationID {
		return
	}

	ectx := &EditorContext{
		Ctx:    ctx,
		Editor: ip.editor,
		Logger: logger.With(loggerNameKey, "panel_input"),
	}
	if ip.editor.HandleInputMessage(ectx, m) {
		logger.DebugContext(
			ctx, "consumed message as editor input",
			"message_id", m.ID,
		)
	}
}
