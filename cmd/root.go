package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/dkeye/Consult/internal/adapters/events"
	"github.com/dkeye/Consult/internal/config"
	"github.com/dkeye/Consult/internal/core"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configEnv string
	cfg       *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "consult",
	Short:         "Scheduled one-to-one consultations over a WebRTC relay",
	Long:          `Commands: serve (relay server), join (terminal participant), probe (device and network check).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Early console logger so config.Load can report.
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		if configEnv != "" {
			if err := os.Setenv("CONFIG_ENV", configEnv); err != nil {
				return err
			}
		}
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		setupLogger(cfg.Log)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configEnv, "config-env", "", "config environment (reads config/config.<env>.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(probeCmd)
}

// Execute runs the root command and returns the error (for main to log).
func Execute() error {
	return rootCmd.Execute()
}

func setupLogger(lc config.LogConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(lc.Level))
	if err != nil || lc.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if lc.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// buildSink returns the log sink, fanned out to Redis when configured.
func buildSink(ctx context.Context) (core.EventSink, func()) {
	logSink := events.NewLogSink(log.Logger)
	if cfg.Redis.URL == "" {
		return logSink, func() {}
	}
	client, err := events.Dial(ctx, cfg.Redis.URL)
	if err != nil {
		log.Warn().Err(err).Str("module", "cmd").Msg("redis unavailable, events go to the log only")
		return logSink, func() {}
	}
	log.Info().Str("module", "cmd").Str("prefix", cfg.Redis.ChannelPrefix).Msg("publishing events to redis")
	return events.Multi{logSink, events.NewRedisSink(client, cfg.Redis.ChannelPrefix)}, func() {
		_ = client.Close()
	}
}
