package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/asaskevich/EventBus"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/mediafetch/mediafetch/server/config"
	"github.com/mediafetch/mediafetch/server/internal/adapters"
	"github.com/mediafetch/mediafetch/server/internal/dispatcher"
	"github.com/mediafetch/mediafetch/server/internal/metadata"
	"github.com/mediafetch/mediafetch/server/internal/queue"
	"github.com/mediafetch/mediafetch/server/internal/session"
	"github.com/mediafetch/mediafetch/server/rest"
	"github.com/mediafetch/mediafetch/server/status"
)

type serverConfig struct {
	mdb *session.Store
	mq  *queue.MessageQueue
	d   *dispatcher.Dispatcher
	mf  metadata.Fetcher
	bus EventBus.Bus
}

func Run(ctx context.Context) error {
	conf := config.Instance()

	// ---- LOGGING ---------------------------------------------------
	logWriters := []io.Writer{os.Stdout}

	if conf.Logging.EnableFileLogging {
		fd, err := os.OpenFile(conf.Logging.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		defer fd.Close()

		logWriters = append(logWriters, fd)
	}

	logger := slog.New(slog.NewTextHandler(io.MultiWriter(logWriters...), &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	// ----------------------------------------------------------------

	if err := os.MkdirAll(conf.Paths.DownloadPath, 0755); err != nil {
		return err
	}

	bus := EventBus.New()
	mdb := session.NewStore()

	d := dispatcher.New(conf, adapters.DefaultRegistry(conf), bus)

	mq, err := queue.NewMessageQueue(d, mdb, bus, conf.Server.QueueSize)
	if err != nil {
		return err
	}
	mq.SetupConsumers()

	scfg := serverConfig{
		mdb: mdb,
		mq:  mq,
		d:   d,
		mf:  metadata.NewCommandFetcher(conf.Paths.DownloaderPath),
		bus: bus,
	}

	srv := newServer(scfg)

	go gracefulShutdown(ctx, srv, &scfg)

	var (
		network = "tcp"
		address = fmt.Sprintf("%s:%d", conf.Server.Host, conf.Server.Port)
	)

	// support unix sockets
	if strings.HasPrefix(conf.Server.Host, "/") {
		network = "unix"
		address = conf.Server.Host
	}

	listener, err := net.Listen(network, address)
	if err != nil {
		slog.Error("failed to listen", slog.String("err", err.Error()))
		return err
	}

	slog.Info("mediafetch started", slog.String("address", address))

	if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
		slog.Warn("http server stopped", slog.String("err", err.Error()))
	}

	return nil
}

func newServer(c serverConfig) *http.Server {
	r := chi.NewRouter()

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	r.Use(corsMiddleware.Handler)

	// REST API handlers
	r.Route("/api/v1", rest.ApplyRouter(&rest.ContainerArgs{
		MDB: c.mdb,
		MQ:  c.mq,
		D:   c.d,
		MF:  c.mf,
		Bus: c.bus,
	}))

	// Status
	r.Route("/status", status.ApplyRouter(c.mdb))

	return &http.Server{Handler: r}
}

func gracefulShutdown(ctx context.Context, srv *http.Server, cfg *serverConfig) {
	<-ctx.Done()
	slog.Info("shutdown signal received")

	defer func() {
		cfg.mq.Stop()
		srv.Shutdown(context.Background())
	}()
}
