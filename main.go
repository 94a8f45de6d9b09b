package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/mediafetch/mediafetch/server"
	"github.com/mediafetch/mediafetch/server/config"

	"github.com/spf13/viper"
)

func main() {
	// Parse optional config path from flag
	var configFile string
	flag.StringVar(&configFile, "conf", "./config.yml", "Config file path")
	flag.Parse()

	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3033)
	v.SetDefault("server.queue_size", 2)
	v.SetDefault("paths.download_path", "./downloads")
	v.SetDefault("paths.downloader_path", "yt-dlp")
	v.SetDefault("paths.instaloader_path", "instaloader")
	v.SetDefault("tiktok.api_url", "https://www.tikwm.com/api/")
	v.SetDefault("tiktok.timeout", "30s")
	v.SetDefault("limits.progress_interval", "3s")
	v.SetDefault("logging.log_path", "mediafetch.log")
	v.SetDefault("logging.enable_file_logging", false)

	// Env binding
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	// Load YAML file if exists
	if err := v.ReadInConfig(); err != nil {
		slog.Debug("using defaults")
	}

	cfg := config.Instance()
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to load config", "error", err)
	}
	cfg.SetPath(configFile)

	if cfg.Server.QueueSize <= 0 || runtime.NumCPU() <= 2 {
		cfg.Server.QueueSize = 2
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"queue_size", cfg.Server.QueueSize,
	)

	if err := server.Run(ctx); err != nil {
		slog.Error("server stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited cleanly")
}
