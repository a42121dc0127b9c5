package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/blaxel-ai/filehunter/src/api"
	"github.com/blaxel-ai/filehunter/src/handler/search"
	"github.com/blaxel-ai/filehunter/src/lib/config"
	"github.com/blaxel-ai/filehunter/src/lib/ratelimit"
	"github.com/blaxel-ai/filehunter/src/lib/watch"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.Debug(".env file not found")
	}

	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logrus.SetLevel(level)
	}

	// Define command-line flags
	configPath := flag.String("config", "config.toml", "Path to the TOML configuration file")
	shortConfigPath := flag.String("c", "", "Path to the TOML configuration file (shorthand)")
	flag.Parse()

	configValue := *configPath
	if *shortConfigPath != "" {
		configValue = *shortConfigPath
	}

	cfg, err := config.Load(configValue)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Warn (log-only) when the config file changes on disk.
	stopWatch, err := watch.ConfigFile(configValue)
	if err != nil {
		logrus.Warnf("Config watcher unavailable: %v", err)
	} else {
		defer stopWatch()
	}

	searcher := search.NewSearcher(cfg)

	var limiter *ratelimit.Limiter
	if cfg.Server.RateLimit.Enabled {
		limiter = ratelimit.New(&cfg.Server.RateLimit)
		limiter.StartCleanup()
		defer limiter.Stop()
	}

	gin.SetMode(gin.ReleaseMode)
	router := api.SetupRouter(cfg, searcher, limiter)

	// h2c keeps http2_max_streams meaningful on cleartext connections.
	h2s := &http2.Server{MaxConcurrentStreams: cfg.Server.HTTP2MaxStreams}
	server := &http.Server{
		Addr:           cfg.Server.Bind,
		Handler:        h2c.NewHandler(router, h2s),
		MaxHeaderBytes: int(cfg.Server.MaxHeaderSize),
	}
	if cfg.Server.ConnectionTimeout > 0 {
		timeout := time.Duration(cfg.Server.ConnectionTimeout) * time.Second
		server.ReadTimeout = timeout
		server.WriteTimeout = timeout
		server.IdleTimeout = timeout
	}
	server.SetKeepAlivesEnabled(cfg.Server.Keepalive)

	logrus.WithFields(logrus.Fields{
		"addr":               cfg.Server.Bind,
		"keepalive":          cfg.Server.Keepalive,
		"connection_timeout": cfg.Server.ConnectionTimeout,
		"max_header_size":    humanize.IBytes(uint64(cfg.Server.MaxHeaderSize)),
		"max_headers":        cfg.Server.MaxHeaders,
		"max_body_size":      humanize.IBytes(uint64(cfg.Server.MaxBodySize)),
		"http2_max_streams":  cfg.Server.HTTP2MaxStreams,
		"max_file_size":      humanize.IBytes(uint64(cfg.Server.MaxFileSize)),
		"stream_buffer_size": humanize.IBytes(uint64(cfg.Server.StreamBufferSize)),
	}).Info("server listening")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	case <-ctx.Done():
		logrus.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logrus.Warnf("Shutdown did not complete cleanly: %v", err)
		}
	}
}
