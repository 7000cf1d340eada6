package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"AgriCast/internal/usecase"
	pkgch "AgriCast/pkg/clickhouse"
	"AgriCast/pkg/config"
	xhttp "AgriCast/pkg/http"
	pkgkafka "AgriCast/pkg/kafka"
	applogger "AgriCast/pkg/logger"
	"AgriCast/pkg/queue"

	"github.com/redis/go-redis/v9"
)

// Infra groups the optional infrastructure clients. Any field may be nil
// when the matching section is disabled in config.
type Infra struct {
	Redis      *redis.Client
	Queue      *queue.RedisQueue
	Consumer   *pkgkafka.Consumer
	Producer   *pkgkafka.Producer
	ClickHouse *pkgch.Client
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg   *config.Config
	log   *applogger.Logger
	http  *xhttp.Server
	orch  *usecase.Orchestrator
	infra Infra
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, srv *xhttp.Server, orch *usecase.Orchestrator, infra Infra) *App {
	return &App{cfg: cfg, log: l, http: srv, orch: orch, infra: infra}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if q := a.infra.Queue; q != nil {
		if err := q.Start(ctx); err != nil {
			return err
		}
		a.log.Info("training queue started", applogger.Int("workers", a.cfg.Queue.Workers))
	}

	if c := a.infra.Consumer; c != nil {
		if err := c.Start(); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.cfg.Kafka.TrainingRequestsTopic))
	}

	if err := a.http.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops intake first, lets running training jobs settle, then
// closes the infrastructure they write to.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.http.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if c := a.infra.Consumer; c != nil {
		if err := c.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if q := a.infra.Queue; q != nil {
		if err := q.Stop(ctx); err != nil {
			a.log.Warn("training queue stop error", applogger.Error(err))
		}
	}

	if err := a.orch.Wait(ctx); err != nil {
		a.log.Warn("training runs still in flight", applogger.Error(err))
	}

	// flush collected error logs while the producer is still open
	a.log.RemoveCollector()

	if p := a.infra.Producer; p != nil {
		if err := p.Close(); err != nil {
			a.log.Warn("kafka producer close error", applogger.Error(err))
		}
	}

	if ch := a.infra.ClickHouse; ch != nil {
		if err := ch.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	if r := a.infra.Redis; r != nil {
		if err := r.Close(); err != nil {
			a.log.Warn("redis close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
