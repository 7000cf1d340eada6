package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	domrepo "AgriCast/internal/domain/repository"
	"AgriCast/internal/handler/api"
	internalrepo "AgriCast/internal/repository"
	"AgriCast/internal/services/analytics"
	"AgriCast/internal/usecase"
	"AgriCast/pkg/cache"
	pkgch "AgriCast/pkg/clickhouse"
	"AgriCast/pkg/config"
	xhttp "AgriCast/pkg/http"
	pkgkafka "AgriCast/pkg/kafka"
	applogger "AgriCast/pkg/logger"
	"AgriCast/pkg/metrics"
	"AgriCast/pkg/queue"
	"AgriCast/pkg/server"

	"github.com/redis/go-redis/v9"
)

// Every optional client below is nil when its config section is disabled;
// consumers of those providers check for nil.

// ProvideLogger builds the application logger. When the collector is enabled
// and Kafka is available, deduplicated error logs are shipped to the
// collector topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Logger.Collector.Enabled && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Logger.Collector.Interval,
			CountThreshold: cfg.Logger.Collector.Threshold,
			Topic:          cfg.Logger.Collector.Topic,
			Publisher:      internalrepo.NewKafkaLogPublisher(producer),
			Service:        api.ServiceName,
		})
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New()
}

// ProvideRedisClient connects to Redis and pings it.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.Redis.Host, strconv.Itoa(cfg.Redis.Port)),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideClickHouseClient opens the ClickHouse pool.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgch.Open(ctx, pkgch.Config{
		Host:             cfg.ClickHouse.Host,
		Port:             cfg.ClickHouse.Port,
		Database:         cfg.ClickHouse.Database,
		User:             cfg.ClickHouse.User,
		Password:         cfg.ClickHouse.Password,
		UseHTTP:          cfg.ClickHouse.UseHTTP,
		AsyncInsert:      cfg.ClickHouse.AsyncInsert,
		WaitForAsync:     cfg.ClickHouse.WaitForAsync,
		DialTimeout:      cfg.ClickHouse.DialTimeout,
		ReadTimeout:      cfg.ClickHouse.ReadTimeout,
		MaxExecutionTime: cfg.ClickHouse.MaxExecutionTime,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvidePredictionLog creates the audit table and returns its writer.
func ProvidePredictionLog(ch *pkgch.Client, l *applogger.Logger) (domrepo.PredictionLog, error) {
	if ch == nil {
		return nil, nil
	}
	plog := internalrepo.NewClickHousePredictionLog(ch, l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ch.Migrate(ctx, plog.Schema()); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return plog, nil
}

// ProvideCache returns the response cache: an LRU alone, or an LRU in front
// of Redis when Redis is enabled.
func ProvideCache(cfg *config.Config, rdb *redis.Client) cache.Service {
	if !cfg.Cache.Enabled {
		return nil
	}
	local := cache.NewMemoryCache(cfg.Cache.MemorySize)
	if rdb == nil {
		return local
	}
	return cache.NewLayeredCache(local, cache.NewRedisCache(rdb, cfg.Redis.Prefix+":cache"), cfg.Cache.TTL)
}

// ProvideJobStore keeps jobs in Redis when training runs on the shared
// queue, otherwise in process memory.
func ProvideJobStore(cfg *config.Config, rdb *redis.Client) domrepo.JobStore {
	if cfg.Training.Dispatch == "queue" && rdb != nil {
		return internalrepo.NewRedisJobStore(rdb, cfg.Redis.Prefix)
	}
	return internalrepo.NewMemoryJobStore()
}

func ProvideJobEventPublisher(cfg *config.Config, producer *pkgkafka.Producer) domrepo.JobEventPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaJobEventPublisher(producer, cfg.Kafka.JobEventsTopic)
}

// ProvideRegistry loads the three models once at startup.
func ProvideRegistry(cfg *config.Config, rec *metrics.Recorder, l *applogger.Logger) *analytics.Registry {
	loader := analytics.NewLoader(cfg, rec, l)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Models.Timeout*3)
	defer cancel()
	reg := analytics.NewRegistry(ctx, loader.Load)
	l.Info("models loaded", applogger.Any("models", reg.Status()))
	return reg
}

func ProvideYieldEstimator(reg *analytics.Registry, rec *metrics.Recorder, l *applogger.Logger) *usecase.YieldEstimator {
	return usecase.NewYieldEstimator(reg, rec, l)
}

func ProvideForecastEngine(reg *analytics.Registry, rec *metrics.Recorder, l *applogger.Logger) *usecase.ForecastEngine {
	return usecase.NewForecastEngine(reg, rec, l)
}

func ProvideAnomalyEngine(reg *analytics.Registry, rec *metrics.Recorder, l *applogger.Logger) *usecase.AnomalyEngine {
	return usecase.NewAnomalyEngine(reg, rec, l)
}

// ProvideOrchestrator creates the training job state machine.
func ProvideOrchestrator(
	cfg *config.Config,
	store domrepo.JobStore,
	events domrepo.JobEventPublisher,
	rec *metrics.Recorder,
	l *applogger.Logger,
) *usecase.Orchestrator {
	return usecase.NewOrchestrator(store, events, rec,
		usecase.DecayingLossSimulator{Delay: cfg.Training.EpochDelay},
		usecase.TrainingOptions{
			DefaultEpochs:     cfg.Training.DefaultEpochs,
			MaxEpochs:         cfg.Training.MaxEpochs,
			EstimatedDuration: cfg.Training.EstimatedDuration,
		}, l)
}

// ProvideTrainingQueue moves training runs onto the Redis queue when
// training.dispatch is "queue". The orchestrator then enqueues instead of
// spawning goroutines.
func ProvideTrainingQueue(cfg *config.Config, rdb *redis.Client, orch *usecase.Orchestrator, l *applogger.Logger) *queue.RedisQueue {
	if cfg.Training.Dispatch != "queue" || rdb == nil {
		return nil
	}
	q := queue.NewRedisQueue(l, queue.Config{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
		KeyPrefix:  cfg.Redis.Prefix + ":queue",
	}, rdb, usecase.NewTrainingRunJob(orch, l))
	orch.SetDispatcher(usecase.QueueDispatcher(q))
	return q
}

// ProvideKafkaConsumer creates training jobs from the training requests topic.
func ProvideKafkaConsumer(cfg *config.Config, orch *usecase.Orchestrator, rec *metrics.Recorder, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.TrainingRequestsTopic == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:    cfg.Kafka.Brokers,
		GroupID:    cfg.Kafka.Consumer.GroupID,
		Workers:    cfg.Kafka.Consumer.Workers,
		BufferSize: cfg.Kafka.Consumer.BufferSize,
		RetryMax:   cfg.Kafka.Consumer.RetryMax,
		BackoffMin: cfg.Kafka.Consumer.BackoffMin,
		BackoffMax: cfg.Kafka.Consumer.BackoffMax,
		DLQTopic:   cfg.Kafka.Consumer.DLQTopic,
		MinBytes:   cfg.Kafka.Consumer.MinBytes,
		MaxBytes:   cfg.Kafka.Consumer.MaxBytes,
	}, l)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.Register(usecase.NewKafkaTrainingHandler(cfg.Kafka.TrainingRequestsTopic, orch, rec, l))
	return consumer, nil
}

// ProvideRouter assembles every HTTP handler.
func ProvideRouter(
	cfg *config.Config,
	yield *usecase.YieldEstimator,
	price *usecase.ForecastEngine,
	anomaly *usecase.AnomalyEngine,
	orch *usecase.Orchestrator,
	reg *analytics.Registry,
	c cache.Service,
	audit domrepo.PredictionLog,
	l *applogger.Logger,
) *api.Router {
	return api.NewRouter(cfg.Server.BasePath,
		api.NewPredictionHandler(yield, price, anomaly, audit,
			api.PredictionOptions{Cache: c, CacheTTL: cfg.Cache.TTL}, l),
		api.NewTrainingHandler(orch, cfg.Training.StreamInterval, l),
		api.NewSystemHandler(reg, c, l),
	)
}

func ProvideHTTPServer(cfg *config.Config, router *api.Router, l *applogger.Logger) *xhttp.Server {
	return xhttp.NewServer(router,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORSOrigins),
		xhttp.WithMetrics(cfg.Metrics.Enabled),
		xhttp.WithRateLimit(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst),
		xhttp.WithLogger(l),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	orch *usecase.Orchestrator,
	rdb *redis.Client,
	q *queue.RedisQueue,
	consumer *pkgkafka.Consumer,
	producer *pkgkafka.Producer,
	ch *pkgch.Client,
) *server.App {
	return server.New(cfg, l, srv, orch, server.Infra{
		Redis:      rdb,
		Queue:      q,
		Consumer:   consumer,
		Producer:   producer,
		ClickHouse: ch,
	})
}
