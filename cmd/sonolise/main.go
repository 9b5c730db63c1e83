// Package main provides the Sonolise service entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"sonolise/internal/catalog"
	"sonolise/internal/core"
	"sonolise/internal/server"
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sonolise",
	Short: "Sonolise - song frames from catalog metadata",
	Long: `Sonolise serves a web frontend that searches the music catalog, renders a
customizable frame of album art and metadata for a song, and exports the
frame as a shareable PNG.`,
	RunE: runSonolise,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("catalog-client-id", "", "catalog API client ID")
	rootCmd.PersistentFlags().String("catalog-client-secret", "", "catalog API client secret")
	rootCmd.PersistentFlags().String("server-host", "0.0.0.0", "HTTP server host")
	rootCmd.PersistentFlags().Int("server-port", 8080, "HTTP server port")
	rootCmd.PersistentFlags().String("server-base-url", "", "public base URL used in share links")
	rootCmd.PersistentFlags().String("export-dir", "exports", "directory for server-side frame exports")
	rootCmd.PersistentFlags().Int("capture-scale", 2, "device pixel scale for captures")
	rootCmd.PersistentFlags().Int("content-width", 640, "frame content width in CSS pixels")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(".env")
		viper.SetConfigType("env")
	}

	viper.SetEnvPrefix("SONOLISE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}

	config = buildConfig()
	logger = buildLogger(config.Log.Level)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	cfg.Catalog.ClientID = viper.GetString("catalog-client-id")
	cfg.Catalog.ClientSecret = viper.GetString("catalog-client-secret")

	if host := viper.GetString("server-host"); host != "" {
		cfg.Server.Host = host
	}
	if port := viper.GetInt("server-port"); port != 0 {
		cfg.Server.Port = port
	}
	if base := viper.GetString("server-base-url"); base != "" {
		cfg.Server.BaseURL = base
	}
	if dir := viper.GetString("export-dir"); dir != "" {
		cfg.Server.ExportDir = dir
	}

	if scale := viper.GetInt("capture-scale"); scale != 0 {
		cfg.Frame.CaptureScale = scale
	}
	if width := viper.GetInt("content-width"); width != 0 {
		cfg.Frame.ContentWidth = width
	}

	cfg.Log.Level = viper.GetString("log-level")

	return cfg
}

func buildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func runSonolise(_ *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting Sonolise",
		zap.String("version", "1.0.0"),
		zap.String("base_url", config.Server.BaseURL))

	if err := validateConfig(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	catalogClient := catalog.NewClient(&config.Catalog, logger.Named("catalog"))
	if err := catalogClient.Authenticate(ctx); err != nil {
		return fmt.Errorf("failed to authenticate with catalog: %w", err)
	}

	httpServer, err := server.NewServer(config, catalogClient, logger.Named("http"))
	if err != nil {
		return fmt.Errorf("failed to build HTTP server: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return httpServer.Start(gCtx)
	})

	logger.Info("Sonolise started successfully",
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	if err := g.Wait(); err != nil {
		logger.Error("Sonolise stopped with error", zap.Error(err))
		return err
	}

	logger.Info("Sonolise stopped gracefully")
	return nil
}

func validateConfig() error {
	if config.Catalog.ClientID == "" {
		return fmt.Errorf("catalog client ID is required")
	}

	if config.Catalog.ClientSecret == "" {
		return fmt.Errorf("catalog client secret is required")
	}

	if config.Frame.CaptureScale < 1 {
		return fmt.Errorf("capture scale must be at least 1")
	}

	return nil
}
