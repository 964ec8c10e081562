package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"syscall"

	"github.com/Bookworm370/interpunctbot/interpunct"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfg        = interpunct.DefaultConfig()
	configFile string
)

var rootCmd = &cobra.Command{
	Use: "interpunct [flags]",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		err := viper.Unmarshal(
			cfg,
			viper.DecodeHook(
				mapstructure.ComposeDecodeHookFunc(
					mapstructure.StringToTimeDurationHookFunc(),
					LevelToStringHookFunc(),
				),
			),
		)
		if err != nil {
			log.Fatalln(err)
		}
	},
}

func getLogLevel(level string) (slog.Level, error) {
	switch level {
	case slog.LevelDebug.String():
		return slog.LevelDebug, nil
	case slog.LevelInfo.String():
		return slog.LevelInfo, nil
	case slog.LevelWarn.String():
		return slog.LevelWarn, nil
	case slog.LevelError.String():
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}

func LevelToStringHookFunc() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data any,
	) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		if t.Kind() != reflect.Ptr {
			return data, nil
		}

		typ := t.Elem()

		if typ != reflect.TypeOf(slog.LevelVar{}) {
			return data, nil
		}
		lvl, err := getLogLevel(data.(string))
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %s", data)
		}
		lvlVar := &slog.LevelVar{}
		lvlVar.Set(lvl)
		return lvlVar, nil
	}
}

func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	rootCmd.SetContext(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(
		signals,
		os.Interrupt,
		syscall.SIGHUP,
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer func() {
		signal.Stop(signals)
		cancel()
	}()
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
			//
		}
	}()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func initConfig() {
	if configFile == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found")
		}
	} else {
		fmt.Println("loading env from file", configFile)
		if err := godotenv.Load(configFile); err != nil {
			log.Println("No .env file found")
		}
	}

	viper.SetDefault("database", interpunct.DefaultDatabase)
	viper.SetDefault("database_type", interpunct.DefaultDatabaseType)
	viper.SetDefault(
		"database_slow_threshold",
		interpunct.DefaultDatabaseSlowThreshold,
	)
	viper.SetDefault(
		"database_log_level",
		interpunct.DefaultDatabaseLogLevel.String(),
	)

	viper.SetDefault("log_level", interpunct.DefaultLogLevel.String())

	viper.SetDefault("startup_timeout", interpunct.DefaultStartupTimeout)
	viper.SetDefault("shutdown_timeout", interpunct.DefaultShutdownTimeout)
	viper.SetDefault(
		"panel_session_max_age",
		interpunct.DefaultPanelSessionMaxAge,
	)

	// Log file config
	viper.SetDefault("log_file.path", "")
	viper.SetDefault("log_file.max_size_mb", interpunct.DefaultLogFileMaxSizeMB)
	viper.SetDefault("log_file.max_backups", interpunct.DefaultLogFileMaxBackups)
	viper.SetDefault("log_file.max_age_days", interpunct.DefaultLogFileMaxAgeDays)
	viper.SetDefault("log_file.compress", false)

	// Discord config
	viper.SetDefault("discord.token", "")
	viper.SetDefault("discord.application_id", "")
	viper.SetDefault("discord.guild_id", "")
	viper.SetDefault(
		"discord.log_level",
		interpunct.DefaultDiscordLogLevel.String(),
	)
	viper.SetDefault(
		"discord.discordgo_log_level",
		interpunct.DefaultDiscordgoLogLevel.String(),
	)
	viper.SetDefault(
		"discord.gateway_intents",
		interpunct.DefaultDiscordGatewayIntent,
	)
	viper.SetDefault(
		"discord.startup_message",
		interpunct.DefaultDiscordStartupMessage,
	)
	viper.SetDefault("discord.notification_channel_id", "")
	viper.SetDefault(
		"discord.custom_status",
		interpunct.DefaultDiscordCustomStatus,
	)

	// Quote config
	viper.SetDefault(
		"quotes.requests_per_minute",
		interpunct.DefaultQuoteRequestsPerMinute,
	)
	viper.SetDefault("quotes.burst", interpunct.DefaultQuoteBurst)
	viper.SetDefault("quotes.timeout", interpunct.DefaultQuoteTimeout)

	// Docs config
	viper.SetDefault("docs.content_dir", interpunct.DefaultDocsContentDir)
	viper.SetDefault("docs.output_dir", interpunct.DefaultDocsOutputDir)
	viper.SetDefault("docs.template_file", "")
	viper.SetDefault("docs.listen", interpunct.DefaultDocsListen)
	viper.SetDefault("docs.listen_network", "tcp")
	viper.SetDefault("docs.read_timeout", interpunct.DefaultDocsReadTimeout)
	viper.SetDefault("docs.write_timeout", interpunct.DefaultDocsWriteTimeout)
	viper.SetDefault("docs.idle_timeout", interpunct.DefaultDocsIdleTimeout)

	// Docs: CORS config
	viper.SetDefault(
		"docs.cors.allow_headers",
		interpunct.DefaultCORSAllowHeaders,
	)
	viper.SetDefault(
		"docs.cors.allow_methods",
		interpunct.DefaultCORSAllowMethods,
	)
	viper.SetDefault("docs.cors.allow_origins", []string{})
	viper.SetDefault("docs.cors.max_age", interpunct.DefaultDocsCORSMaxAge)

	envPrefix := os.Getenv(interpunct.EnvvarSetEnvPrefix)
	if envPrefix == "" {
		envPrefix = interpunct.DefaultEnvPrefix
	}
	viper.SetEnvPrefix(envPrefix)

	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv()

	// Convert values to correct types
	viper.Set(
		"docs.cors.allow_headers",
		viper.GetStringSlice("docs.cors.allow_headers"),
	)
	viper.Set(
		"docs.cors.allow_origins",
		viper.GetStringSlice("docs.cors.allow_origins"),
	)
	viper.Set(
		"docs.cors.allow_methods",
		viper.GetStringSlice("docs.cors.allow_methods"),
	)

	logLevelVar, err := levelStringToLevelVar(viper.GetString("log_level"))
	if err != nil {
		log.Fatalf("error parsing log_level: %v", err)
	}
	viper.Set("log_level", logLevelVar)

	logLevelVar, err = levelStringToLevelVar(viper.GetString("discord.log_level"))
	if err != nil {
		log.Fatalf("error parsing discord log level: %v", err)
	}
	viper.Set("discord.log_level", logLevelVar)

	logLevelVar, err = levelStringToLevelVar(
		viper.GetString("discord.discordgo_log_level"),
	)
	if err != nil {
		log.Fatalf("error parsing discordgo log level: %v", err)
	}
	viper.Set("discord.discordgo_log_level", logLevelVar)

	logLevelVar, err = levelStringToLevelVar(viper.GetString("database_log_level"))
	if err != nil {
		log.Fatalf("error parsing database log level: %v", err)
	}
	viper.Set("database_log_level", logLevelVar)
}

func levelStringToLevelVar(lvl string) (*slog.LevelVar, error) {
	level := &slog.LevelVar{}
	err := level.UnmarshalText([]byte(lvl))
	return level, err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(
		&configFile,
		"config",
		"",
		"Config file to use",
	)
}
