package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
	BackendDynamoDB = "dynamodb"
)

// ServerConfig drives cmd/server.
type ServerConfig struct {
	Port      string `envconfig:"PORT"       default:":3000"`
	LogLevel  string `envconfig:"LOG_LEVEL"  default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	AdminUsername      string        `envconfig:"ADMIN_USERNAME"       required:"true"`
	AdminPassword      string        `envconfig:"ADMIN_PASSWORD"`
	AdminPasswordHash  string        `envconfig:"ADMIN_PASSWORD_HASH"`
	JWTSecret          string        `envconfig:"JWT_SECRET"           required:"true"`
	TokenTTL           time.Duration `envconfig:"TOKEN_TTL"            default:"1h"`
	SessionIdleTimeout time.Duration `envconfig:"SESSION_IDLE_TIMEOUT" default:"30m"`

	AutosaveInterval time.Duration `envconfig:"AUTOSAVE_INTERVAL" default:"2m"`
	MaxBodyBytes     int64         `envconfig:"MAX_BODY_BYTES"    default:"1048576"`

	StoreBackend   string `envconfig:"STORE_BACKEND"   default:"file"`
	OrdersFile     string `envconfig:"ORDERS_FILE"     default:"data/orders.json"`
	CategoriesFile string `envconfig:"CATEGORIES_FILE" default:"data/categories.json"`
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	MySQLDSN       string `envconfig:"MYSQL_DSN"`
	DynamoDBTable  string `envconfig:"DYNAMODB_TABLE"`
	AWSRegion      string `envconfig:"AWS_REGION"`

	KafkaBrokers string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string `envconfig:"KAFKA_TOPIC" default:"order-events"`
	GrpcPort     string `envconfig:"GRPC_PORT"`

	StoreName     string `envconfig:"STORE_NAME"     default:"Deenice Finds"`
	StoreCurrency string `envconfig:"STORE_CURRENCY" default:"KES"`
}

// Validate checks the combinations envconfig tags cannot express.
func (c *ServerConfig) Validate() error {
	var errs []error
	if c.AdminUsername == "" {
		errs = append(errs, errors.New("ADMIN_USERNAME must not be empty"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	if c.AdminPassword == "" && c.AdminPasswordHash == "" {
		errs = append(errs, errors.New("one of ADMIN_PASSWORD or ADMIN_PASSWORD_HASH must be set"))
	}
	switch c.StoreBackend {
	case BackendFile:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	case BackendMySQL:
		if c.MySQLDSN == "" {
			errs = append(errs, errors.New("MYSQL_DSN is required for the mysql backend"))
		}
	case BackendDynamoDB:
		if c.DynamoDBTable == "" {
			errs = append(errs, errors.New("DYNAMODB_TABLE is required for the dynamodb backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	return errors.Join(errs...)
}

// Brokers splits KAFKA_BROKERS; nil means events stay in process.
func (c *ServerConfig) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// ClientConfig drives cmd/storefront. Variables carry the STOREFRONT_ prefix.
type ClientConfig struct {
	APIURL           string        `envconfig:"API_URL"            default:"http://localhost:3000"`
	DataDir          string        `envconfig:"DATA_DIR"           default:".deenice"`
	SyncInterval     time.Duration `envconfig:"SYNC_INTERVAL"      default:"30s"`
	SyncInitialDelay time.Duration `envconfig:"SYNC_INITIAL_DELAY" default:"2s"`
	BackupInterval   time.Duration `envconfig:"BACKUP_INTERVAL"    default:"3m"`
	HTTPTimeout      time.Duration `envconfig:"HTTP_TIMEOUT"       default:"10s"`
	AdminToken       string        `envconfig:"ADMIN_TOKEN"`
	LogLevel         string        `envconfig:"LOG_LEVEL"          default:"info"`
}

const ClientPrefix = "STOREFRONT"

var (
	serverConfig ServerConfig
	serverOnce   sync.Once
	clientConfig ClientConfig
	clientOnce   sync.Once
)

func loadDotEnv(logger *logrus.Logger) {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		logger.Warnf("Error loading .env file (but continuing): %v", err)
	} else if err == nil {
		logger.Info("Loaded configuration from .env file")
	}
}

// ProcessServer reads ServerConfig from the environment without touching .env.
func ProcessServer() (*ServerConfig, error) {
	var cfg ServerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration from environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return &cfg, nil
}

// ProcessClient reads ClientConfig from STOREFRONT_* variables.
func ProcessClient() (*ClientConfig, error) {
	var cfg ClientConfig
	if err := envconfig.Process(ClientPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration from environment variables: %w", err)
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &cfg, nil
}

func LoadServerConfig(logger *logrus.Logger) *ServerConfig {
	serverOnce.Do(func() {
		loadDotEnv(logger)
		cfg, err := ProcessServer()
		if err != nil {
			logger.Fatalf("%v", err)
		}
		serverConfig = *cfg
		logger.Infof("Configuration loaded: Port=%s, Backend=%s, LogLevel=%s", cfg.Port, cfg.StoreBackend, cfg.LogLevel)
	})
	return &serverConfig
}

func LoadClientConfig(logger *logrus.Logger) *ClientConfig {
	clientOnce.Do(func() {
		loadDotEnv(logger)
		cfg, err := ProcessClient()
		if err != nil {
			logger.Fatalf("%v", err)
		}
		clientConfig = *cfg
		logger.Debugf("Configuration loaded: API=%s, DataDir=%s", cfg.APIURL, cfg.DataDir)
	})
	return &clientConfig
}
