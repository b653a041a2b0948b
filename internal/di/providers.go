package di

import (
	"context"
	"fmt"
	"io"
	"time"

	"MacroChain/internal/domain/models"
	"MacroChain/internal/domain/repository"
	"MacroChain/internal/domain/service"
	"MacroChain/internal/handler/api"
	mid "MacroChain/internal/middleware"
	internalrepo "MacroChain/internal/repository"
	"MacroChain/internal/service/finnhub"
	"MacroChain/internal/service/registry"
	"MacroChain/internal/service/rss"
	"MacroChain/internal/services/extraction"
	"MacroChain/internal/services/patterns"
	"MacroChain/internal/usecase"
	pkgcache "MacroChain/pkg/cache"
	pkgch "MacroChain/pkg/clickhouse"
	"MacroChain/pkg/config"
	xhttp "MacroChain/pkg/http"
	pkgkafka "MacroChain/pkg/kafka"
	applogger "MacroChain/pkg/logger"
	"MacroChain/pkg/metrics"
	"MacroChain/pkg/queue"
	"MacroChain/pkg/server"
	pkgsqlite "MacroChain/pkg/sqlite"
)

// Storage bundles the document and chain stores of the configured backend
// with the client that owns their connections.
type Storage struct {
	Docs   repository.DocumentStore
	Chains repository.ChainStore
	client io.Closer
}

// Close releases the stores and the underlying client.
func (s *Storage) Close() error {
	if err := s.Chains.Close(); err != nil {
		return err
	}
	return s.client.Close()
}

// ProvideKafkaProducer creates a Kafka producer. It returns nil when neither
// the chain topic nor kafka document routing is in use.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled && cfg.Source.Routing != usecase.RouteKafka {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
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

// ProvideLogger builds the application logger. Warnings and errors are
// aggregated to the log topic when the collector is enabled.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Logging.Collector.Enabled && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Logging.Collector.FlushInterval,
			CountThreshold: cfg.Logging.Collector.CountThreshold,
			Topic:          cfg.Logging.Collector.Topic,
			Publisher:      producer,
		})
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideStorage opens the configured store backend and initializes its schema.
func ProvideStorage(cfg *config.Config, l *applogger.Logger) (*Storage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch cfg.Store.Backend {
	case "clickhouse":
		client, err := pkgch.NewClient(
			pkgch.WithHost(cfg.ClickHouse.Host),
			pkgch.WithPort(cfg.ClickHouse.Port),
			pkgch.WithDatabase(cfg.ClickHouse.Database),
			pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
			pkgch.WithMaxConnections(10, 5),
			pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
			pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
			pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		)
		if err != nil {
			return nil, fmt.Errorf("clickhouse client: %w", err)
		}
		chains := internalrepo.NewCHChainStore(client)
		chains.SetLogger(l)
		if err := chains.Init(ctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}
		return &Storage{Docs: internalrepo.NewCHDocumentStore(client), Chains: chains, client: client}, nil

	default:
		client, err := pkgsqlite.NewClient(
			pkgsqlite.WithPath(cfg.SQLite.Path),
			pkgsqlite.WithBusyTimeout(cfg.SQLite.BusyTimeout),
			pkgsqlite.WithMaxOpenConns(cfg.SQLite.MaxOpenConns),
			pkgsqlite.WithWAL(true),
		)
		if err != nil {
			return nil, fmt.Errorf("sqlite client: %w", err)
		}
		chains := internalrepo.NewSQLiteChainStore(client)
		chains.SetLogger(l)
		if err := chains.Init(ctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("sqlite schema: %w", err)
		}
		return &Storage{Docs: internalrepo.NewSQLiteDocumentStore(client), Chains: chains, client: client}, nil
	}
}

func ProvideDocumentStore(s *Storage) repository.DocumentStore { return s.Docs }

func ProvideChainStore(s *Storage) repository.ChainStore { return s.Chains }

// ProvideRedisCache connects to Redis. It returns nil when Redis is disabled.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisAddr(cfg.Redis.Addr),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCache returns the shared cache used for extraction locks and the
// chain list cache: layered over Redis when available, in-process otherwise.
func ProvideCache(rc *pkgcache.RedisCache) pkgcache.Service {
	if rc == nil {
		return pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(10000))
	}
	return pkgcache.NewLayeredCache(rc, pkgcache.WithLayeredMemoryTTL(5*time.Second))
}

// ProvidePatterns loads the pattern library (embedded default when no file is configured).
func ProvidePatterns(cfg *config.Config) (*patterns.Holder, error) {
	h, err := patterns.NewHolder(cfg.Patterns.File)
	if err != nil {
		return nil, fmt.Errorf("patterns: %w", err)
	}
	return h, nil
}

// ProvideRegistry creates the instrument registry and performs the first load.
// A failing HTTP source is tolerated at startup; the periodic refresh retries.
func ProvideRegistry(cfg *config.Config, l *applogger.Logger) (*registry.Registry, error) {
	var src repository.InstrumentSource
	switch cfg.Registry.Source {
	case "http":
		src = registry.NewHTTPSource(cfg.Registry.URL, cfg.Registry.Timeout, cfg.Registry.Attempts)
	default:
		instruments := make([]models.Instrument, 0, len(cfg.Registry.Instruments))
		for _, in := range cfg.Registry.Instruments {
			instruments = append(instruments, models.Instrument{Symbol: in.Symbol, Names: in.Names, Sectors: in.Sectors})
		}
		src = registry.NewStaticSource(instruments)
	}

	reg := registry.New(src)
	reg.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := reg.Reload(ctx); err != nil {
		if cfg.Registry.Source != "http" {
			return nil, fmt.Errorf("registry: %w", err)
		}
		l.Warn("registry: initial load failed, starting empty", applogger.Error(err))
	}
	return reg, nil
}

// ProvideExtractor binds the extraction engine to the live patterns and registry.
func ProvideExtractor(cfg *config.Config, h *patterns.Holder, reg *registry.Registry) service.Extractor {
	return extraction.NewRuntime(h, reg,
		extraction.WithQualityThreshold(cfg.Extraction.QualityThreshold),
		extraction.WithMinRelevance(cfg.Extraction.MinRelevance),
		extraction.WithCandidateLimits(cfg.Extraction.MaxPerRole, cfg.Extraction.MaxCandidates),
		extraction.WithStepLength(cfg.Extraction.MinStepLength, cfg.Extraction.MaxStepLength),
	)
}

// ProvideChainPublisher announces stored chains on Kafka. It returns nil when Kafka is disabled.
func ProvideChainPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.ChainPublisher {
	if !cfg.Kafka.Enabled || producer == nil {
		return nil
	}
	return internalrepo.NewKafkaChainPublisher(producer, cfg.Kafka.ChainsTopic)
}

// ProvideChainExtractor creates the extract-and-store use case.
func ProvideChainExtractor(
	cfg *config.Config,
	extractor service.Extractor,
	docs repository.DocumentStore,
	chains repository.ChainStore,
	m repository.Metrics,
	cache pkgcache.Service,
	pub repository.ChainPublisher,
	l *applogger.Logger,
) *usecase.ChainExtractor {
	opts := []usecase.ExtractorOption{
		usecase.WithLocker(cache, cfg.Extraction.LockTTL),
		usecase.WithListCache(cache),
		usecase.WithBatchConcurrency(cfg.Extraction.BatchConcurrency),
		usecase.WithExtractorLogger(l),
	}
	if pub != nil {
		opts = append(opts, usecase.WithChainPublisher(pub))
	}
	return usecase.NewChainExtractor(extractor, docs, chains, m, opts...)
}

// ProvideChainQuery creates the cached chain read use case.
func ProvideChainQuery(cfg *config.Config, chains repository.ChainStore, cache pkgcache.Service, l *applogger.Logger) *usecase.ChainQuery {
	q := usecase.NewChainQuery(chains, cache, cfg.Cache.ListTTL)
	q.SetLogger(l)
	return q
}

func ProvideExtractJob(docs repository.DocumentStore, extractor *usecase.ChainExtractor) *usecase.ExtractDocumentJob {
	return usecase.NewExtractDocumentJob(docs, extractor)
}

// ProvideJobQueue creates the Redis job queue serving background extraction.
// It returns nil when Redis is disabled.
func ProvideJobQueue(cfg *config.Config, rc *pkgcache.RedisCache, job *usecase.ExtractDocumentJob, l *applogger.Logger) *queue.RedisQueue {
	if rc == nil {
		return nil
	}
	q := queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:       cfg.Queue.Workers,
		RetryLimit:    cfg.Queue.MaxRetries,
		RetryDelay:    cfg.Queue.RetryDelay,
		MaxRetryDelay: cfg.Queue.MaxRetryDelay,
		PollTimeout:   cfg.Queue.PollInterval,
	}, rc.Client(),
		queue.WithKeyPrefix("macrochain:queue:"+cfg.Queue.Name),
	)
	q.RegisterJob(job)
	return q
}

// ProvideEnqueuer exposes the job queue to the HTTP layer. It returns nil
// without a queue so that async extraction reports unavailable.
func ProvideEnqueuer(q *queue.RedisQueue) repository.Enqueuer {
	if q == nil {
		return nil
	}
	return internalrepo.NewQueueEnqueuer(q)
}

// ProvideDocumentStream creates the configured live document source, or nil.
func ProvideDocumentStream(cfg *config.Config, l *applogger.Logger) repository.DocumentStream {
	switch cfg.Source.Type {
	case "finnhub":
		c := finnhub.New(
			cfg.Finnhub.APIKey,
			cfg.Finnhub.WebSocketURL,
			cfg.Finnhub.Symbols,
			cfg.Finnhub.ReconnectDelay,
			cfg.Finnhub.PingInterval,
		)
		c.SetLogger(l)
		return c
	case "rss":
		p := rss.New(cfg.RSS.Feeds, cfg.RSS.PollInterval, cfg.RSS.Timeout)
		p.SetLogger(l)
		return p
	default:
		return nil
	}
}

// ProvideDocumentPublisher forwards raw documents to Kafka when routing is kafka.
func ProvideDocumentPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.DocumentPublisher {
	if cfg.Source.Routing != usecase.RouteKafka || producer == nil {
		return nil
	}
	return internalrepo.NewKafkaDocumentPublisher(producer, cfg.Kafka.DocumentsTopic)
}

// ProvideDocumentProcessor creates the document routing use case.
func ProvideDocumentProcessor(
	cfg *config.Config,
	pub repository.DocumentPublisher,
	extractor *usecase.ChainExtractor,
	m repository.Metrics,
) *usecase.DocumentProcessor {
	return usecase.NewDocumentProcessor(pub, extractor, m, cfg.Source.Routing)
}

// ProvideDocumentCollector wires the stream through the admission pipeline.
// It returns nil when no live source is configured.
func ProvideDocumentCollector(
	cfg *config.Config,
	stream repository.DocumentStream,
	processor *usecase.DocumentProcessor,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.DocumentCollector {
	if stream == nil {
		return nil
	}
	pipe := mid.NewDocumentPipeline(processor, m,
		mid.WithThrottle(cfg.Pipeline.ThrottleInterval),
		mid.WithDedupWindow(cfg.Pipeline.DedupWindow),
		mid.WithBufferSize(cfg.Pipeline.BufferSize),
	)
	c := usecase.NewDocumentCollector(stream, processor, m, pipe)
	c.SetLogger(l)
	return c
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
// It returns nil when the consumer is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger, m repository.Metrics) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerAutoOffsetReset(cfg.Kafka.Consumer.AutoOffsetReset),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.TraceHook(),
		pkgkafka.ErrorHook(func(topic string, err error) {
			m.RecordError("consume")
			l.Warn("kafka: handling failed", applogger.String("topic", topic), applogger.Error(err))
		}),
	))
	return consumer, nil
}

// ProvideKafkaDocumentsHandler handles the documents topic.
func ProvideKafkaDocumentsHandler(cfg *config.Config, extractor *usecase.ChainExtractor, m repository.Metrics) *usecase.KafkaDocumentsHandler {
	return usecase.NewKafkaDocumentsHandler(cfg.Kafka.DocumentsTopic, extractor, m)
}

// ProvideChainsHandler creates the chain HTTP handler.
func ProvideChainsHandler(
	cfg *config.Config,
	l *applogger.Logger,
	query *usecase.ChainQuery,
	extractor *usecase.ChainExtractor,
	docs repository.DocumentStore,
	enq repository.Enqueuer,
	reg *registry.Registry,
	h *patterns.Holder,
) *api.ChainsEchoHandler {
	return api.NewChainsEchoHandler(l, query, extractor, docs, enq, reg, h, api.RateLimit{
		Capacity:     cfg.Extraction.RateLimit.Capacity,
		RefillPerSec: cfg.Extraction.RateLimit.RefillPerSec,
	})
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	collector *usecase.DocumentCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaDocumentsHandler,
	jobs *queue.RedisQueue,
	reg *registry.Registry,
	chains *api.ChainsEchoHandler,
	storage *Storage,
	cache pkgcache.Service,
	producer *pkgkafka.Producer,
) *server.App {
	app := server.New(cfg, l, collector, reg)
	app.SetHTTPHandlers([]xhttp.Handler{chains})
	if consumer != nil {
		app.SetConsumer(consumer, kh)
	}
	if jobs != nil {
		app.SetJobQueue(jobs)
	}

	// closed in reverse order
	app.AddCloser("storage", storage)
	app.AddCloser("cache", cache)
	if producer != nil {
		app.AddCloser("kafka producer", producer)
	}
	return app
}

// Backfill is the one-shot re-extraction command's dependency set.
type Backfill struct {
	Extractor *usecase.ChainExtractor
	Logger    *applogger.Logger
	closers   []io.Closer
}

// Close releases the stores, the cache and the producer.
func (b *Backfill) Close() {
	b.Logger.RemoveCollector()
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil {
			b.Logger.Warn("backfill: close error", applogger.Error(err))
		}
	}
}

// ProvideBackfill assembles the backfill command.
func ProvideBackfill(
	l *applogger.Logger,
	extractor *usecase.ChainExtractor,
	storage *Storage,
	cache pkgcache.Service,
	producer *pkgkafka.Producer,
) *Backfill {
	b := &Backfill{Extractor: extractor, Logger: l, closers: []io.Closer{storage, cache}}
	if producer != nil {
		b.closers = append(b.closers, producer)
	}
	return b
}
