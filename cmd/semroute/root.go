package semroute

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/soundprediction/semroute"
	"github.com/soundprediction/semroute/pkg/config"
	"github.com/soundprediction/semroute/pkg/encoder"
	"github.com/soundprediction/semroute/pkg/logger"
	"github.com/soundprediction/semroute/pkg/telemetry"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "semroute",
		Short: "semroute: document encoders for semantic routing",
		Long: `semroute turns texts into vectors for semantic routing.

It supports remote OpenAI embeddings with bounded retries and a local
TF-IDF encoder fitted on route utterances. Vectors can be produced from
the command line or served over HTTP.`,
		SilenceUsage: true,
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.semroute.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().String("encoder", config.EncoderOpenAI, "encoder type (openai, tfidf)")

	// Bind flags to viper
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("encoder.type", rootCmd.PersistentFlags().Lookup("encoder"))
}

// initConfig reads in .env, the config file and ENV variables if set.
func initConfig() {
	// A missing .env file is not an error
	_ = godotenv.Load()

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".semroute" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".semroute")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// session holds what a command needs to run.
type session struct {
	cfg     *config.Config
	log     *slog.Logger
	encoder encoder.Encoder
	closers []func() error
}

// Close releases the encoder and flushes telemetry.
func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			fmt.Fprintln(os.Stderr, "close:", err)
		}
	}
}

// loadConfig loads the configuration and builds the logger it describes.
func loadConfig() (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	s := &session{cfg: cfg}
	s.log = logger.NewLogger(os.Stderr, logger.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	if cfg.Log.TelemetryDir != "" {
		h, err := telemetry.NewParquetHandler(s.log.Handler(), cfg.Log.TelemetryDir, telemetry.DefaultBatchSize)
		if err != nil {
			return nil, err
		}
		s.log = slog.New(h)
		s.closers = append(s.closers, h.Close)
	}
	return s, nil
}

// buildEncoder loads configuration and constructs the selected encoder.
// routesFile, when set, overrides encoder.tfidf.routes_file.
func buildEncoder(routesFile string) (*session, error) {
	s, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if routesFile != "" {
		s.cfg.Encoder.Tfidf.RoutesFile = routesFile
	}

	enc, err := semroute.NewEncoder(s.cfg, s.log)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to initialize encoder: %w", err)
	}
	s.encoder = enc
	s.closers = append(s.closers, enc.Close)
	return s, nil
}
