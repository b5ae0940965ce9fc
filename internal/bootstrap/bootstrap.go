// Package bootstrap builds the shared runtime dependencies of the binaries
// from the loaded configuration.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/OFFIS-RIT/casegraph/internal/config"
	"github.com/OFFIS-RIT/casegraph/internal/queue"
	"github.com/OFFIS-RIT/casegraph/internal/util"
	"github.com/OFFIS-RIT/casegraph/pkg/graph"
	"github.com/OFFIS-RIT/casegraph/pkg/logger"
	"github.com/OFFIS-RIT/casegraph/pkg/logger/console"
	"github.com/OFFIS-RIT/casegraph/pkg/normalize"
	"github.com/OFFIS-RIT/casegraph/pkg/pipeline"
	"github.com/OFFIS-RIT/casegraph/pkg/store"
	"github.com/OFFIS-RIT/casegraph/pkg/store/neo4j"
	graphstorage "github.com/OFFIS-RIT/casegraph/pkg/store/pgx"
)

// Connection attempts against the bus and the graph store.
const (
	connectTries = 5
	connectDelay = time.Second
)

// LoadConfig loads the configuration and initializes the logger from it. An
// invalid configuration is fatal.
func LoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		InitLogger(&config.Config{})
		logger.Fatal("Invalid configuration", "err", err)
	}
	InitLogger(cfg)
	return cfg
}

func InitLogger(cfg *config.Config) {
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: cfg.Debug,
		JSON:  cfg.LogJSON,
	})
	logger.Init(consoleLogger)
}

// OpenGraph connects to the configured graph backend, creates missing
// collections and returns a client for it. The returned close function
// releases the backend connection.
func OpenGraph(ctx context.Context, cfg *config.Config) (*graph.GraphClient, func(), error) {
	var (
		storage store.GraphStorage
		closeFn func()
	)

	switch cfg.Graph.Adapter {
	case config.GraphNeo4j:
		s, err := neo4j.NewNeo4jStorage(ctx, neo4j.Neo4jStorageParams{
			URI:      cfg.Graph.Neo4j.URI,
			Username: cfg.Graph.Neo4j.User,
			Password: cfg.Graph.Neo4j.Password,
			Database: cfg.Graph.Neo4j.Database,
		})
		if err != nil {
			return nil, nil, err
		}
		storage = s
		closeFn = func() {
			if err := s.Close(context.Background()); err != nil {
				logger.Error("[Graph][Neo4j] Failed to close driver", "err", err)
			}
		}
	default:
		pool, err := pgxpool.New(ctx, cfg.Graph.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to connect to database: %w", err)
		}
		storage = graphstorage.NewGraphDBStorageWithConnection(pool)
		closeFn = pool.Close
	}

	client, err := graph.NewGraphClient(graph.NewGraphClientParams{
		Storage: storage,
		Timeout: cfg.Graph.Timeout,
	})
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	err = util.RetryErrWithBackoff(ctx, connectTries, connectDelay, client.EnsureCollections)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("ensure collections: %w", err)
	}

	logger.Info("[Graph] Connected", "adapter", cfg.Graph.Adapter)
	return client, closeFn, nil
}

// Bus is a connected message bus. Publisher is used by the pipeline and
// Consume by the worker.
type Bus struct {
	Publisher pipeline.Publisher
	Consume   func(ctx context.Context, handler queue.Handler, concurrency int) error
	Close     func()
}

// OpenBus connects to the configured message bus and declares the exchange,
// queues or stream case events travel through.
func OpenBus(ctx context.Context, cfg *config.Config) (*Bus, error) {
	switch cfg.Bus.Adapter {
	case config.BusNATS:
		nb, err := util.RetryWithBackoff(ctx, connectTries, connectDelay, func(ctx context.Context) (*queue.NATSBus, error) {
			return queue.NewNATSBus(ctx, cfg.Bus.NATSURL, cfg.Bus.Topic)
		})
		if err != nil {
			return nil, err
		}
		return &Bus{
			Publisher: nb,
			Consume:   nb.Consume,
			Close:     nb.Close,
		}, nil
	default:
		conn, err := util.RetryWithBackoff(ctx, connectTries, connectDelay, func(context.Context) (*amqp.Connection, error) {
			return queue.Init(cfg.Bus.RabbitMQ.URL())
		})
		if err != nil {
			return nil, err
		}
		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to open channel: %w", err)
		}
		if err := queue.SetupQueues(ch, cfg.Bus.Topic); err != nil {
			conn.Close()
			return nil, err
		}
		return &Bus{
			Publisher: queue.NewRabbitPublisher(ch),
			Consume: func(ctx context.Context, handler queue.Handler, concurrency int) error {
				return queue.ConsumeRabbit(ctx, conn, handler, concurrency)
			},
			Close: func() { closeRabbit(ch, conn) },
		}, nil
	}
}

func closeRabbit(ch *amqp.Channel, conn *amqp.Connection) {
	_ = ch.Close()
	if err := conn.Close(); err != nil {
		logger.Error("[Queue] Failed to close connection", "err", err)
	}
}

func NewNormalizer(cfg *config.Config) *normalize.Normalizer {
	return normalize.NewNormalizer(normalize.WithProcessedBy(cfg.ProcessedBy))
}

// NewPipeline builds the default validate, enrich and publish pipeline.
func NewPipeline(cfg *config.Config, normalizer *normalize.Normalizer, publisher pipeline.Publisher) *pipeline.Pipeline {
	return pipeline.NewDefaultPipeline(pipeline.NewDefaultPipelineParams{
		Normalizer:     normalizer,
		Publisher:      publisher,
		Topic:          cfg.Bus.Topic,
		PublishTimeout: cfg.Bus.Timeout,
		PublishRetries: cfg.Bus.PublishRetries,
	})
}
