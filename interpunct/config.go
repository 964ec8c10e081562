//nolint:lll // struct tags can't be split
package interpunct

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-contrib/cors"
	"github.com/go-playground/validator/v10"
)

const (
	EnvvarSetEnvPrefix = "INTERPUNCT_ENV_PREFIX"
	DefaultEnvPrefix   = "IP"

	DefaultDatabaseType          = "sqlite"
	DefaultDatabase              = "interpunct.sqlite3"
	DefaultDatabaseSlowThreshold = 200 * time.Millisecond
	DefaultDatabaseLogLevel      = slog.LevelInfo

	DefaultLogLevel        = slog.LevelInfo
	DefaultStartupTimeout  = 30 * time.Second
	DefaultShutdownTimeout = 60 * time.Second

	DefaultDiscordLogLevel       = slog.LevelWarn
	DefaultDiscordgoLogLevel     = slog.LevelWarn
	DefaultDiscordStartupMessage = "I'm here!"
	DefaultDiscordCustomStatus   = "/panel new"
	DefaultDiscordGatewayIntent  = discordgo.IntentsAllWithoutPrivileged |
		discordgo.IntentMessageContent

	DiscordSlashCommandPanel    = "panel"
	DiscordSlashCommandSettings = "settings"
	DiscordSlashCommandQuote    = "quote"
	DiscordSlashCommandAbout    = "about"
	DiscordSlashCommandTrivia   = "trivia"
	DiscordSlashCommandEmoji    = "emoji"

	DefaultGuildPrefix = "ip!"

	// DefaultPanelSessionMaxAge is how long an idle panel editor session is
	// kept in the database before being pruned at startup.
	DefaultPanelSessionMaxAge = 7 * 24 * time.Hour

	DefaultQuoteRequestsPerMinute = 10
	DefaultQuoteBurst             = 2
	DefaultQuoteTimeout           = 10 * time.Second

	DefaultTriviaRequestsPerMinute = 6
	DefaultTriviaBurst             = 2
	DefaultTriviaTimeout           = 10 * time.Second
	DefaultTriviaAnswerWindow      = 20 * time.Second
	DefaultTriviaEditInterval      = 5 * time.Second

	DefaultDocsListen       = "127.0.0.1:8394"
	defaultListenNetwork    = "tcp"
	DefaultDocsReadTimeout  = 5 * time.Second
	DefaultDocsWriteTimeout = 10 * time.Second
	DefaultDocsIdleTimeout  = 30 * time.Second
	DefaultDocsCORSMaxAge   = 12 * time.Hour
	DefaultDocsContentDir   = "docs/content"
	DefaultDocsOutputDir    = "docs/dist"

	DefaultLogFileMaxSizeMB  = 50
	DefaultLogFileMaxBackups = 5
	DefaultLogFileMaxAgeDays = 28
)

var structValidator = validator.New()

type Config struct {
	// Database connection string
	Database string `yaml:"database" mapstructure:"database" json:"database"`

	// DatabaseType specifies the type of database, either 'sqlite' or 'postgres'
	DatabaseType string `yaml:"database_type" mapstructure:"database_type" json:"database_type" binding:"oneof=sqlite postgres"`

	// DatabaseLogLevel sets the log level for database operations
	DatabaseLogLevel *slog.LevelVar `yaml:"database_log_level" mapstructure:"database_log_level" json:"database_log_level"`

	// DatabaseSlowThreshold is the duration threshold for identifying slow database queries
	DatabaseSlowThreshold time.Duration `yaml:"database_slow_threshold" mapstructure:"database_slow_threshold" json:"database_slow_threshold"`

	// Discord configures aspects of the Discord bot itself
	Discord *DiscordConfig `yaml:"discord" mapstructure:"discord" json:"discord"`

	// Quotes configures the /quote pastebin fetcher
	Quotes *QuoteConfig `yaml:"quotes" mapstructure:"quotes" json:"quotes"`

	// Trivia configures the /trivia question fetcher and round timing
	Trivia *TriviaConfig `yaml:"trivia" mapstructure:"trivia" json:"trivia"`

	// Docs configures documentation generation and the `docs serve` server
	Docs *DocsConfig `yaml:"docs" mapstructure:"docs" json:"docs"`

	// LogLevel is the base log level, for the default logger
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// LogFile optionally adds a rotated file target for all log output
	LogFile LogFileConfig `yaml:"log_file" mapstructure:"log_file" json:"log_file"`

	// StartupTimeout sets a limit on the amount of time the bot has to
	// initialize. If this is passed, the bot will abort startup.
	StartupTimeout time.Duration `yaml:"startup_timeout" mapstructure:"startup_timeout" json:"startup_timeout"`

	// ShutdownTimeout is the time to allow for a graceful shutdown. After this
	// elapses, the bot will force close all connections and exit.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" json:"shutdown_timeout"`

	// PanelSessionMaxAge sets the idle age past which stored panel editor
	// sessions are removed on startup. 0 disables pruning.
	PanelSessionMaxAge time.Duration `yaml:"panel_session_max_age" mapstructure:"panel_session_max_age" json:"panel_session_max_age"`

	HTTPClient *http.Client `log:"[redacted]"`
}

func (c Config) LogValue() slog.Value {
	return structToSlogValue(c)
}

// DiscordConfig configures the discord bot itself.
//
//nolint:lll // can't break tags
type DiscordConfig struct {
	// Discord bot token (from the 'Bot' tab in the discord dev portal)
	Token string `yaml:"token" mapstructure:"token" json:"token" log:"[redacted]" binding:"required"`

	// Discord application ID (from the 'General Information' tab in the discord dev portal)
	ApplicationID string `yaml:"application_id" mapstructure:"application_id" json:"application_id" binding:"required"`

	// GuildID specifies the guild ID used when registering slash commands.
	// Leave empty for commands to be registered as global.
	GuildID string `yaml:"guild_id" mapstructure:"guild_id" json:"guild_id"`

	// Base discord logging level
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// Log level for the `discordgo` library's logger
	DiscordGoLogLevel *slog.LevelVar `yaml:"discordgo_log_level" mapstructure:"discordgo_log_level" json:"discordgo_log_level"`

	// If NotificationChannelID is set, the bot sends StartupMessage to that
	// channel whenever it connects to the discord gateway.
	StartupMessage string `yaml:"startup_message" mapstructure:"startup_message" json:"startup_message"`

	NotificationChannelID string `yaml:"notification_channel_id" mapstructure:"notification_channel_id" json:"notification_channel_id"`

	// Custom status shown under the bot user. Empty disables it.
	CustomStatus string `yaml:"custom_status" mapstructure:"custom_status" json:"custom_status"`

	// Discord gateway intents. See: https://discord.com/developers/docs/topics/gateway#gateway-intents
	GatewayIntents discordgo.Intent `yaml:"gateway_intents" mapstructure:"gateway_intents" json:"gateway_intents"`

	httpClient *http.Client
}

// QuoteConfig limits outbound pastebin requests made by /quote.
type QuoteConfig struct {
	// RequestsPerMinute caps pastebin fetches across all guilds
	RequestsPerMinute int `yaml:"requests_per_minute" mapstructure:"requests_per_minute" json:"requests_per_minute" binding:"min=1"`

	// Burst is the rate limiter burst size
	Burst int `yaml:"burst" mapstructure:"burst" json:"burst" binding:"min=1"`

	// Timeout applies to each pastebin HTTP request
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" json:"timeout"`
}

// TriviaConfig limits outbound Open Trivia DB requests made by /trivia
// and controls how long a round runs.
type TriviaConfig struct {
	// RequestsPerMinute caps question fetches across all guilds
	RequestsPerMinute int `yaml:"requests_per_minute" mapstructure:"requests_per_minute" json:"requests_per_minute" binding:"min=1"`

	// Burst is the rate limiter burst size
	Burst int `yaml:"burst" mapstructure:"burst" json:"burst" binding:"min=1"`

	// Timeout applies to each question HTTP request
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" json:"timeout"`

	// AnswerWindow is how long players have to lock in an answer
	AnswerWindow time.Duration `yaml:"answer_window" mapstructure:"answer_window" json:"answer_window"`

	// EditInterval is how often the countdown on the question message
	// is refreshed
	EditInterval time.Duration `yaml:"edit_interval" mapstructure:"edit_interval" json:"edit_interval"`
}

// DocsConfig configures the DGMD documentation generator and the static
// server used by `docs serve`.
type DocsConfig struct {
	// ContentDir is the directory containing .dg source files
	ContentDir string `yaml:"content_dir" mapstructure:"content_dir" json:"content_dir"`

	// OutputDir receives the generated HTML and Discord markdown trees
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir" json:"output_dir"`

	// TemplateFile is the HTML page template. Empty uses a built-in template.
	TemplateFile string `yaml:"template_file" mapstructure:"template_file" json:"template_file"`

	// The address and port on which `docs serve` should listen
	Listen string `yaml:"listen" mapstructure:"listen" json:"listen"`

	// The network type for listening (e.g., "tcp", "tcp4", "tcp6", "unix").
	ListenNetwork string `yaml:"listen_network" mapstructure:"listen_network" json:"listen_network" binding:"omitempty,oneof=tcp tcp4 tcp6 unix"`

	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" json:"idle_timeout"`

	// Cross-origin configuration
	CORS CORSConfig `yaml:"cors" mapstructure:"cors" json:"cors"`
}

// LogFileConfig configures optional rotated-file logging.
type LogFileConfig struct {
	// Path of the log file. Empty disables file logging.
	Path string `yaml:"path" mapstructure:"path" json:"path"`

	MaxSizeMB  int  `yaml:"max_size_mb" mapstructure:"max_size_mb" json:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups" mapstructure:"max_backups" json:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days" mapstructure:"max_age_days" json:"max_age_days"`
	Compress   bool `yaml:"compress" mapstructure:"compress" json:"compress"`
}

// CORSConfig specifies cross-origin resource sharing settings
type CORSConfig struct {
	AllowOrigins     []string      `yaml:"allow_origins" mapstructure:"allow_origins" json:"allow_origins"`
	AllowMethods     []string      `yaml:"allow_methods" mapstructure:"allow_methods" json:"allow_methods"`
	AllowHeaders     []string      `yaml:"allow_headers" mapstructure:"allow_headers" json:"allow_headers"`
	ExposeHeaders    []string      `yaml:"expose_headers" mapstructure:"expose_headers" json:"expose_headers"`
	AllowCredentials bool          `yaml:"allow_credentials" mapstructure:"allow_credentials" json:"allow_credentials"`
	MaxAge           time.Duration `yaml:"max_age" mapstructure:"max_age" json:"max_age"`
}

func (c CORSConfig) GINConfig() cors.Config {
	return cors.Config{
		AllowOrigins:     c.AllowOrigins,
		AllowMethods:     c.AllowMethods,
		AllowHeaders:     c.AllowHeaders,
		MaxAge:           c.MaxAge,
		ExposeHeaders:    c.ExposeHeaders,
		AllowCredentials: c.AllowCredentials,
	}
}

var (
	DefaultCORSAllowMethods = []string{
		http.MethodGet,
		http.MethodOptions,
		http.MethodHead,
	}
	DefaultCORSAllowHeaders = []string{
		"Origin",
		"Content-Length",
		"Content-Type",
		"Accept",
		"Cache-Control",
	}
)

func DefaultCORSConfig() CORSConfig {
	defaultMethods := make([]string, len(DefaultCORSAllowMethods))
	copy(defaultMethods, DefaultCORSAllowMethods)

	defaultHeaders := make([]string, len(DefaultCORSAllowHeaders))
	copy(defaultHeaders, DefaultCORSAllowHeaders)

	return CORSConfig{
		AllowOrigins:  []string{},
		AllowMethods:  defaultMethods,
		AllowHeaders:  defaultHeaders,
		ExposeHeaders: []string{"Content-Type", "Content-Length"},
		MaxAge:        DefaultDocsCORSMaxAge,
	}
}

// DefaultConfig returns a Config with all default settings populated
func DefaultConfig() *Config {
	mainLogLevel := &slog.LevelVar{}
	discordLogLevel := &slog.LevelVar{}
	discordgoLogLevel := &slog.LevelVar{}
	dbLogLevel := &slog.LevelVar{}

	mainLogLevel.Set(DefaultLogLevel)
	discordLogLevel.Set(DefaultDiscordLogLevel)
	discordgoLogLevel.Set(DefaultDiscordgoLogLevel)
	dbLogLevel.Set(DefaultDatabaseLogLevel)

	return &Config{
		DatabaseType:          DefaultDatabaseType,
		Database:              DefaultDatabase,
		DatabaseLogLevel:      dbLogLevel,
		DatabaseSlowThreshold: DefaultDatabaseSlowThreshold,
		LogLevel:              mainLogLevel,
		LogFile: LogFileConfig{
			MaxSizeMB:  DefaultLogFileMaxSizeMB,
			MaxBackups: DefaultLogFileMaxBackups,
			MaxAgeDays: DefaultLogFileMaxAgeDays,
		},
		StartupTimeout:     DefaultStartupTimeout,
		ShutdownTimeout:    DefaultShutdownTimeout,
		PanelSessionMaxAge: DefaultPanelSessionMaxAge,
		Discord: &DiscordConfig{
			GatewayIntents:    DefaultDiscordGatewayIntent,
			LogLevel:          discordLogLevel,
			DiscordGoLogLevel: discordgoLogLevel,
			StartupMessage:    DefaultDiscordStartupMessage,
			CustomStatus:      DefaultDiscordCustomStatus,
		},
		Quotes: &QuoteConfig{
			RequestsPerMinute: DefaultQuoteRequestsPerMinute,
			Burst:             DefaultQuoteBurst,
			Timeout:           DefaultQuoteTimeout,
		},
		Trivia: &TriviaConfig{
			RequestsPerMinute: DefaultTriviaRequestsPerMinute,
			Burst:             DefaultTriviaBurst,
			Timeout:           DefaultTriviaTimeout,
			AnswerWindow:      DefaultTriviaAnswerWindow,
			EditInterval:      DefaultTriviaEditInterval,
		},
		Docs: &DocsConfig{
			ContentDir:    DefaultDocsContentDir,
			OutputDir:     DefaultDocsOutputDir,
			Listen:        DefaultDocsListen,
			ListenNetwork: defaultListenNetwork,
			ReadTimeout:   DefaultDocsReadTimeout,
			WriteTimeout:  DefaultDocsWriteTimeout,
			IdleTimeout:   DefaultDocsIdleTimeout,
			CORS:          DefaultCORSConfig(),
		},
	}
}
