package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"modelhub/internal/config"
	"modelhub/internal/httpapi"
	"modelhub/internal/relay"
	"modelhub/internal/upstream"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// splitCSV splits a comma-separated flag value, dropping empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	var (
		addr         string
		upstreamURL  string
		maxStreams   int
		maxBodyBytes int64
		runKeepAlive string
		logLevel     string
		configPath   string
		corsEnabled  bool
		corsOrigins  string
		corsMethods  string
		corsHeaders  string
	)

	root := &cobra.Command{
		Use:   "modelhub",
		Short: "Management console and streaming proxy for a local model daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Config{
				Addr:         addr,
				UpstreamURL:  upstreamURL,
				MaxStreams:   maxStreams,
				MaxBodyBytes: maxBodyBytes,
				RunKeepAlive: runKeepAlive,
				LogLevel:     logLevel,
				CORSEnabled:  corsEnabled,
				CORSOrigins:  splitCSV(corsOrigins),
				CORSMethods:  splitCSV(corsMethods),
				CORSHeaders:  splitCSV(corsHeaders),
			}
			if configPath != "" {
				fileCfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = mergeConfig(fileCfg, cfg, cmd)
			}
			return serve(cfg)
		},
	}

	root.AddCommand(pullCmd(), updateCmd())

	fl := root.Flags()
	fl.StringVar(&addr, "addr", envOr("MODELHUB_ADDR", ":8090"), "HTTP listen address, e.g. :8090")
	fl.StringVar(&upstreamURL, "upstream", envOr("MODELHUB_UPSTREAM", "http://127.0.0.1:11434"), "Base URL of the model daemon")
	fl.IntVar(&maxStreams, "max-streams", 8, "Maximum concurrent pull/update relays (0=default)")
	fl.Int64Var(&maxBodyBytes, "max-body-bytes", 0, "Maximum JSON request body size (0=1MiB)")
	fl.StringVar(&runKeepAlive, "run-keep-alive", "5m", "keep_alive sent when loading a model")
	fl.StringVar(&logLevel, "log-level", envOr("MODELHUB_LOG_LEVEL", "info"), "Log level: debug, info, error, off")
	fl.StringVar(&configPath, "config", os.Getenv("MODELHUB_CONFIG"), "Optional config file (.yaml/.json/.toml)")
	fl.BoolVar(&corsEnabled, "cors", false, "Enable CORS middleware")
	fl.StringVar(&corsOrigins, "cors-origins", "", "Comma-separated allowed origins")
	fl.StringVar(&corsMethods, "cors-methods", "", "Comma-separated allowed methods")
	fl.StringVar(&corsHeaders, "cors-headers", "", "Comma-separated allowed headers")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// mergeConfig overlays flag values onto the file config. Flags changed
// explicitly on the command line win over the file.
func mergeConfig(file, flags config.Config, cmd *cobra.Command) config.Config {
	out := file
	if cmd.Flags().Changed("addr") || out.Addr == "" {
		out.Addr = flags.Addr
	}
	if cmd.Flags().Changed("upstream") || out.UpstreamURL == "" {
		out.UpstreamURL = flags.UpstreamURL
	}
	if cmd.Flags().Changed("max-streams") || out.MaxStreams == 0 {
		out.MaxStreams = flags.MaxStreams
	}
	if cmd.Flags().Changed("max-body-bytes") || out.MaxBodyBytes == 0 {
		out.MaxBodyBytes = flags.MaxBodyBytes
	}
	if cmd.Flags().Changed("run-keep-alive") || out.RunKeepAlive == "" {
		out.RunKeepAlive = flags.RunKeepAlive
	}
	if cmd.Flags().Changed("log-level") || out.LogLevel == "" {
		out.LogLevel = flags.LogLevel
	}
	if cmd.Flags().Changed("cors") {
		out.CORSEnabled = flags.CORSEnabled
		out.CORSOrigins = flags.CORSOrigins
		out.CORSMethods = flags.CORSMethods
		out.CORSHeaders = flags.CORSHeaders
	}
	return out
}

func serve(cfg config.Config) error {
	logger := newLogger(cfg.LogLevel)

	res, err := upstream.NewResolver(cfg.UpstreamURL)
	if err != nil {
		return err
	}

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	httpapi.SetLogger(logger)
	httpapi.SetBaseContext(baseCtx)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetRunKeepAlive(cfg.RunKeepAlive)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins, cfg.CORSMethods, cfg.CORSHeaders)

	rl := relay.New(int64(cfg.MaxStreams), logger)
	mux := httpapi.NewMux(res, rl)
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("upstream", res.Default()).Msg("modelhub listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancelBase() // aborts in-flight relays so shutdown is not held open
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
	return nil
}

func newLogger(level string) zerolog.Logger {
	lvl := zerolog.InfoLevel
	switch level {
	case "debug":
		lvl = zerolog.DebugLevel
	case "error":
		lvl = zerolog.ErrorLevel
	case "off":
		lvl = zerolog.Disabled
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}
