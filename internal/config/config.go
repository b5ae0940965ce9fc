package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/OFFIS-RIT/casegraph/internal/util"
)

const (
	BusRabbitMQ = "rabbitmq"
	BusNATS     = "nats"

	GraphPostgres = "postgres"
	GraphNeo4j    = "neo4j"
)

type Server struct {
	Port      string `yaml:"port"`
	BodyLimit string `yaml:"body_limit"`
}

type RabbitMQ struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
}

// URL returns the AMQP connection string.
func (r RabbitMQ) URL() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(r.User, r.Password),
		Host:   r.Host + ":" + r.Port,
		Path:   "/",
	}
	return u.String()
}

type Bus struct {
	Adapter        string        `yaml:"adapter"`
	Topic          string        `yaml:"topic"`
	Timeout        time.Duration `yaml:"timeout"`
	PublishRetries int           `yaml:"publish_retries"`
	RabbitMQ       RabbitMQ      `yaml:"rabbitmq"`
	NATSURL        string        `yaml:"nats_url"`
}

type Neo4j struct {
	URI      string `yaml:"uri"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type Graph struct {
	Adapter         string        `yaml:"adapter"`
	DatabaseURL     string        `yaml:"database_url"`
	Timeout         time.Duration `yaml:"timeout"`
	HotspotMinCases int           `yaml:"hotspot_min_cases"`
	Neo4j           Neo4j         `yaml:"neo4j"`
}

type Worker struct {
	Concurrency int    `yaml:"concurrency"`
	MetricsPort string `yaml:"metrics_port"`
}

type S3 struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
}

type Config struct {
	Debug       bool   `yaml:"debug"`
	LogJSON     bool   `yaml:"log_json"`
	ProcessedBy string `yaml:"processed_by"`
	Server      Server `yaml:"server"`
	Bus         Bus    `yaml:"bus"`
	Graph       Graph  `yaml:"graph"`
	Worker      Worker `yaml:"worker"`
	S3          S3     `yaml:"s3"`
}

func Default() Config {
	return Config{
		ProcessedBy: "FILE_PROCESSOR",
		Server: Server{
			Port:      "8080",
			BodyLimit: "50M",
		},
		Bus: Bus{
			Adapter:        BusRabbitMQ,
			Topic:          "case-events",
			Timeout:        5 * time.Second,
			PublishRetries: 3,
			RabbitMQ: RabbitMQ{
				User:     "guest",
				Password: "guest",
				Host:     "localhost",
				Port:     "5672",
			},
			NATSURL: "nats://localhost:4222",
		},
		Graph: Graph{
			Adapter:         GraphPostgres,
			Timeout:         10 * time.Second,
			HotspotMinCases: 5,
			Neo4j: Neo4j{
				URI:  "neo4j://localhost:7687",
				User: "neo4j",
			},
		},
		Worker: Worker{
			Concurrency: 4,
			MetricsPort: "9090",
		},
		S3: S3{
			Region: "us-east-1",
		},
	}
}

// Load reads the .env file, then the YAML file named by CONFIG_FILE if set,
// then applies environment overrides. Environment values always win.
func Load() (*Config, error) {
	util.LoadEnv()

	c := Default()
	if path := util.GetEnv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &c); err != nil {
			return nil, err
		}
	}
	applyEnv(&c)

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func loadFile(path string, c *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

func applyEnv(c *Config) {
	c.Debug = util.GetEnvBool("DEBUG", c.Debug)
	c.LogJSON = util.GetEnvBool("LOG_JSON", c.LogJSON)
	c.ProcessedBy = util.GetEnvString("PROCESSED_BY", c.ProcessedBy)

	c.Server.Port = util.GetEnvString("PORT", c.Server.Port)
	c.Server.BodyLimit = util.GetEnvString("BODY_LIMIT", c.Server.BodyLimit)

	c.Bus.Adapter = util.GetEnvString("BUS_ADAPTER", c.Bus.Adapter)
	c.Bus.Topic = util.GetEnvString("CASE_TOPIC", c.Bus.Topic)
	c.Bus.Timeout = util.GetEnvDuration("BUS_TIMEOUT", c.Bus.Timeout)
	c.Bus.PublishRetries = util.GetEnvInt("PUBLISH_RETRIES", c.Bus.PublishRetries)
	c.Bus.RabbitMQ.User = util.GetEnvString("RABBITMQ_USER", c.Bus.RabbitMQ.User)
	c.Bus.RabbitMQ.Password = util.GetEnvString("RABBITMQ_PASSWORD", c.Bus.RabbitMQ.Password)
	c.Bus.RabbitMQ.Host = util.GetEnvString("RABBITMQ_HOST", c.Bus.RabbitMQ.Host)
	c.Bus.RabbitMQ.Port = util.GetEnvString("RABBITMQ_PORT", c.Bus.RabbitMQ.Port)
	c.Bus.NATSURL = util.GetEnvString("NATS_URL", c.Bus.NATSURL)

	c.Graph.Adapter = util.GetEnvString("GRAPH_ADAPTER", c.Graph.Adapter)
	c.Graph.DatabaseURL = util.GetEnvString("DATABASE_URL", c.Graph.DatabaseURL)
	c.Graph.Timeout = util.GetEnvDuration("GRAPH_TIMEOUT", c.Graph.Timeout)
	c.Graph.HotspotMinCases = util.GetEnvInt("HOTSPOT_MIN_CASES", c.Graph.HotspotMinCases)
	c.Graph.Neo4j.URI = util.GetEnvString("NEO4J_URI", c.Graph.Neo4j.URI)
	c.Graph.Neo4j.User = util.GetEnvString("NEO4J_USER", c.Graph.Neo4j.User)
	c.Graph.Neo4j.Password = util.GetEnvString("NEO4J_PASSWORD", c.Graph.Neo4j.Password)
	c.Graph.Neo4j.Database = util.GetEnvString("NEO4J_DATABASE", c.Graph.Neo4j.Database)

	c.Worker.Concurrency = util.GetEnvInt("WORKER_CONCURRENCY", c.Worker.Concurrency)
	c.Worker.MetricsPort = util.GetEnvString("METRICS_PORT", c.Worker.MetricsPort)

	c.S3.Region = util.GetEnvString("AWS_REGION", c.S3.Region)
	c.S3.Endpoint = util.GetEnvString("AWS_ENDPOINT", c.S3.Endpoint)
	c.S3.AccessKey = util.GetEnvString("AWS_ACCESS_KEY", c.S3.AccessKey)
	c.S3.SecretKey = util.GetEnvString("AWS_SECRET_KEY", c.S3.SecretKey)
	c.S3.Bucket = util.GetEnvString("AWS_BUCKET", c.S3.Bucket)
}

// Validate rejects unknown adapters and non-positive limits.
func (c *Config) Validate() error {
	switch c.Bus.Adapter {
	case BusRabbitMQ, BusNATS:
	default:
		return fmt.Errorf("unknown bus adapter %q", c.Bus.Adapter)
	}
	switch c.Graph.Adapter {
	case GraphPostgres, GraphNeo4j:
	default:
		return fmt.Errorf("unknown graph adapter %q", c.Graph.Adapter)
	}
	if c.Bus.Topic == "" {
		return fmt.Errorf("case topic must not be empty")
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be positive, got %d", c.Worker.Concurrency)
	}
	if c.Graph.Timeout <= 0 || c.Bus.Timeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}

// ArchiveEnabled reports whether raw uploads are copied to object storage.
func (c *Config) ArchiveEnabled() bool {
	return c.S3.Bucket != ""
}
