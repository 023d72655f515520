package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = "ANALYTICS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

// Environment variable names for the required knobs, exported for tests and
// operational tooling.
const (
	EnvAppEnv        = "ANALYTICS_APP_ENV"
	EnvWriteKey      = "ANALYTICS_WRITE_KEY"
	EnvGCPProjectID  = "ANALYTICS_GCP_PROJECT_ID"
	EnvPubSubTopic   = "ANALYTICS_PUBSUB_EVENTS_TOPIC"
	EnvIdentityDB    = "ANALYTICS_IDENTITY_DB_PATH"
	EnvListenAddress = "ANALYTICS_LISTEN_ADDR"
)

type Config struct {
	App      AppConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	Identity IdentityConfig
	Pipeline PipelineConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.PubSub.ensureTopic(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ANALYTICS_APP_ENV" required:"true"`
	WriteKey     string `envconfig:"ANALYTICS_WRITE_KEY" required:"true"`
	LogLevel     string `envconfig:"ANALYTICS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ANALYTICS_LOG_WARN_STACK" default:"false"`
	ListenAddr   string `envconfig:"ANALYTICS_LISTEN_ADDR" default:":9102"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ANALYTICS_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"ANALYTICS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ANALYTICS_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	EventsTopic    string        `envconfig:"ANALYTICS_PUBSUB_EVENTS_TOPIC" required:"true"`
	PublishTimeout time.Duration `envconfig:"ANALYTICS_PUBSUB_PUBLISH_TIMEOUT" default:"15s"`
	VerifyTopic    bool          `envconfig:"ANALYTICS_PUBSUB_VERIFY_TOPIC" default:"true"`
}

type IdentityConfig struct {
	DBPath     string `envconfig:"ANALYTICS_IDENTITY_DB_PATH"`
	InstallKey string `envconfig:"ANALYTICS_INSTALL_KEY"`
}

type PipelineConfig struct {
	QueueSize int `envconfig:"ANALYTICS_PIPELINE_QUEUE_SIZE" default:"1000"`
}

func (p *PubSubConfig) ensureTopic() error {
	if strings.TrimSpace(p.EventsTopic) == "" {
		return fmt.Errorf("%s is required", EnvPubSubTopic)
	}
	return nil
}
