package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/koscakluka/ema-s2s/core/events"
	"github.com/koscakluka/ema-s2s/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version  = "0.1.0"
	cfgFile  string
	headless bool
	settings = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "ema-s2s",
	Short: "Real-time speech-to-speech dialogue client",
	Long: `ema-s2s streams microphone audio to a speech-to-speech service, plays the
spoken replies back and shows the conversation as it happens.`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the dialogue client",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDialogue(cmd.Context())
	},
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the tool catalogue sessions are opened with",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		catalogue := events.DefaultToolConfig()
		if cfg.ToolCatalogue != "" {
			if catalogue, err = events.ParseToolConfig(cfg.ToolCatalogue); err != nil {
				return err
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), catalogue.Indented())
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ema-s2s v%s\n", version)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/ema-s2s/ema-s2s.yaml)")
	flags.String("server", "", "speech-to-speech service websocket URL")
	flags.String("voice", "", "voice of the spoken replies")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-file", "", "file to write logs to")
	_ = settings.BindPFlag("server_url", flags.Lookup("server"))
	_ = settings.BindPFlag("voice_id", flags.Lookup("voice"))
	_ = settings.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = settings.BindPFlag("log_file", flags.Lookup("log-file"))

	runCmd.Flags().BoolVar(&headless, "headless", false, "log the conversation instead of showing the terminal UI")
	runCmd.Flags().String("backend", "", "audio backend (miniaudio, portaudio, none)")
	_ = settings.BindPFlag("audio_backend", runCmd.Flags().Lookup("backend"))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWith(settings, cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	for _, err := range cfg.Validate() {
		slog.Warn("config validation", "error", err)
	}
	return cfg, nil
}
