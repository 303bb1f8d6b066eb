// Package main provides the projectM-music CLI application entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/Molvine192/projectM-music/internal/cache"
	"github.com/Molvine192/projectM-music/internal/core"
	"github.com/Molvine192/projectM-music/internal/extract"
	"github.com/Molvine192/projectM-music/internal/history"
	httpserver "github.com/Molvine192/projectM-music/internal/http"
	"github.com/Molvine192/projectM-music/internal/resolve"
	"github.com/Molvine192/projectM-music/internal/transcode"
)

const defaultServerHost = "0.0.0.0"

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "projectm-music",
	Short: "projectM-music - media identifier → cached MP3 resolver",
	Long: `projectM-music resolves media identifiers to MP3 artifacts by trying a
cascade of client profiles against a video-info backend and falling back to
mirror APIs, transcodes the best audio stream with ffmpeg, and serves the
results from a TTL-bounded filesystem cache over HTTP.`,
	RunE: runProjectM,
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
	rootCmd.PersistentFlags().String("backend-url", "https://www.youtube.com", "Video-info backend base URL")
	rootCmd.PersistentFlags().String("cookie-blob", "", "Credential cookie blob attached to backend requests")
	rootCmd.PersistentFlags().StringSlice("mirrors", nil, "Mirror API base URLs, tried after all client profiles")
	rootCmd.PersistentFlags().Int("request-timeout-secs", 20, "Per-request timeout for backend and mirror calls in seconds")
	rootCmd.PersistentFlags().Int("transcode-timeout-secs", 600, "Transcode timeout in seconds")
	rootCmd.PersistentFlags().Int("output-bitrate-kbps", 192, "MP3 output bitrate in kbps")
	rootCmd.PersistentFlags().String("ffmpeg-path", "ffmpeg", "Path to the ffmpeg binary")
	rootCmd.PersistentFlags().String("cache-dir", "./media", "Directory holding cached MP3 artifacts")
	rootCmd.PersistentFlags().Int("cache-ttl-mins", 360, "Artifact freshness window in minutes")
	rootCmd.PersistentFlags().Int("eviction-interval-mins", 15, "Eviction sweep interval in minutes")
	rootCmd.PersistentFlags().Int("metadata-entries", 1024, "Maximum in-memory track metadata entries")
	rootCmd.PersistentFlags().String("history-path", "./history.db", "SQLite play history database path")
	rootCmd.PersistentFlags().Int("first-play-max-tracked", 10000, "Maximum identifiers tracked for first-play detection")
	rootCmd.PersistentFlags().String("server-host", defaultServerHost, "HTTP server host")
	rootCmd.PersistentFlags().Int("server-port", 8080, "HTTP server port")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	// Load .env file explicitly using gotenv
	envFile := ".env"
	if cfgFile != "" {
		envFile = cfgFile
	}

	if err := gotenv.Load(envFile); err != nil {
		// Don't exit if .env file doesn't exist, just warn
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		}
	}

	viper.SetEnvPrefix("PROJECTM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	config = buildConfig()
	logger = buildLogger(config.Log.Level)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	configureResolver(cfg)
	configureCache(cfg)
	configureHistory(cfg)
	configureServer(cfg)

	return cfg
}

func configureResolver(cfg *core.Config) {
	cfg.Resolver.BackendURL = viper.GetString("backend-url")
	cfg.Resolver.CookieBlob = viper.GetString("cookie-blob")
	if mirrors := viper.GetStringSlice("mirrors"); len(mirrors) > 0 {
		cfg.Resolver.Mirrors = mirrors
	}
	cfg.Resolver.RequestTimeout = time.Duration(viper.GetInt("request-timeout-secs")) * time.Second
	cfg.Resolver.TranscodeTimeout = time.Duration(viper.GetInt("transcode-timeout-secs")) * time.Second
	cfg.Resolver.OutputBitrateKbps = viper.GetInt("output-bitrate-kbps")
	cfg.Resolver.FFmpegPath = viper.GetString("ffmpeg-path")
}

func configureCache(cfg *core.Config) {
	cfg.Cache.Dir = viper.GetString("cache-dir")
	cfg.Cache.TTL = time.Duration(viper.GetInt("cache-ttl-mins")) * time.Minute
	cfg.Cache.EvictionInterval = time.Duration(viper.GetInt("eviction-interval-mins")) * time.Minute
	cfg.Cache.MetadataEntries = viper.GetInt("metadata-entries")
}

func configureHistory(cfg *core.Config) {
	cfg.History.Path = viper.GetString("history-path")
	cfg.History.FirstPlayMaxTracked = viper.GetInt("first-play-max-tracked")
}

func configureServer(cfg *core.Config) {
	cfg.Server.Host = viper.GetString("server-host")
	if cfg.Server.Host == "" {
		cfg.Server.Host = defaultServerHost
	}
	cfg.Server.Port = viper.GetInt("server-port")
	cfg.Log.Level = viper.GetString("log-level")
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

func runProjectM(_ *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting projectM-music",
		zap.String("backend_url", config.Resolver.BackendURL),
		zap.Bool("authenticated", config.Resolver.CookieBlob != ""),
		zap.Strings("profile_order", config.Resolver.ProfileOrder()),
		zap.Strings("mirrors", config.Resolver.Mirrors),
		zap.String("cache_dir", config.Cache.Dir),
		zap.Duration("cache_ttl", config.Cache.TTL))

	if err := validateConfig(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	services, err := initializeServices(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := services.history.Close(); closeErr != nil {
			logger.Debug("Failed to close history store", zap.Error(closeErr))
		}
	}()

	return runServices(ctx, services)
}

func validateConfig() error {
	if config.Resolver.BackendURL == "" && len(config.Resolver.Mirrors) == 0 {
		return fmt.Errorf("no resolution strategies configured: set a backend URL or at least one mirror")
	}
	if config.Resolver.OutputBitrateKbps <= 0 {
		return fmt.Errorf("output bitrate must be positive, got %d", config.Resolver.OutputBitrateKbps)
	}
	if config.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got %s", config.Cache.TTL)
	}
	if config.Cache.EvictionInterval <= 0 {
		return fmt.Errorf("eviction interval must be positive, got %s", config.Cache.EvictionInterval)
	}
	return nil
}

type services struct {
	store      *cache.ArtifactCache
	sweeper    *cache.Sweeper
	history    *history.Store
	firstPlays *history.FirstPlayFilter
	httpServer *httpserver.Server
}

func initializeServices(ctx context.Context) (*services, error) {
	metrics := httpserver.NewMetrics()

	backend := extract.NewInnertubeClient(config.Resolver.BackendURL,
		config.Resolver.CookieBlob, config.Resolver.RequestTimeout)
	mirror := extract.NewMirrorClient(config.Resolver.RequestTimeout)
	encoder := transcode.NewFFmpeg(config.Resolver.FFmpegPath,
		config.Resolver.TranscodeTimeout, config.Resolver.OutputBitrateKbps,
		logger.Named("transcode"))

	cascade := resolve.NewCascade(&config.Resolver, backend, mirror, encoder,
		metrics, logger.Named("resolve"))

	fs := afero.NewOsFs()
	store, err := cache.New(fs, &config.Cache, cascade, metrics, logger.Named("cache"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize artifact cache: %w", err)
	}
	metrics.ObserveCacheSize(store.Len)

	histStore, err := history.Open(config.History.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}

	firstPlays := history.NewFirstPlayFilter(config.History.FirstPlayMaxTracked,
		config.History.FirstPlayFalsePositive)
	known, err := histStore.PlayedIdentifiers(ctx)
	if err != nil {
		logger.Warn("Failed to warm first-play filter from history", zap.Error(err))
	} else {
		firstPlays.Load(known)
		logger.Info("Warmed first-play filter", zap.Int("identifiers", firstPlays.Size()))
	}

	sweeper := cache.NewSweeper(fs, &config.Cache, metrics.RecordEvictions,
		logger.Named("sweeper"))

	httpServer := httpserver.NewServer(&config.Server, store, histStore,
		firstPlays, backend, metrics, logger.Named("http"))

	return &services{
		store:      store,
		sweeper:    sweeper,
		history:    histStore,
		firstPlays: firstPlays,
		httpServer: httpServer,
	}, nil
}

func runServices(ctx context.Context, svcs *services) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return svcs.httpServer.Start(gCtx)
	})

	g.Go(func() error {
		return svcs.sweeper.Run(gCtx)
	})

	logger.Info("projectM-music started successfully",
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	if err := g.Wait(); err != nil {
		logger.Error("projectM-music stopped with error", zap.Error(err))
		return err
	}

	logger.Info("projectM-music stopped gracefully")
	return nil
}
