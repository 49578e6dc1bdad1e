package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

// Config is built once at startup and passed by pointer to every constructor.
type Config struct {
	Mode     Mode   `mapstructure:"mode"`
	LogLevel string `mapstructure:"log_level"`

	Server       ServerConfig       `mapstructure:"server"`
	GCP          GCPConfig          `mapstructure:"gcp"`
	LLM          LLMConfig          `mapstructure:"llm"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Files        FilesConfig        `mapstructure:"files"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Knowledge    KnowledgeConfig    `mapstructure:"knowledge"`
	Images       ImagesConfig       `mapstructure:"images"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
}

type ServerConfig struct {
	Port        string   `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type GCPConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Location  string `mapstructure:"location"`
}

// LLMConfig selects the chat model used by the Orchestrator and the agents.
type LLMConfig struct {
	Provider string `mapstructure:"provider"` // mock, compatible, openai, anthropic, vertex
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
	Model    string `mapstructure:"model"`

	RoutingTemperature float32 `mapstructure:"routing_temperature"`
	AgentTemperature   float32 `mapstructure:"agent_temperature"`
	MaxTokens          int     `mapstructure:"max_tokens"`
	VisionModel        string  `mapstructure:"vision_model"`
}

type StorageConfig struct {
	Backend      string `mapstructure:"backend"`       // memory, firestore
	StateBackend string `mapstructure:"state_backend"` // memory, redis, firestore

	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	StateTTL      time.Duration `mapstructure:"state_ttl"`
}

type FilesConfig struct {
	Backend       string `mapstructure:"backend"` // local, s3
	Dir           string `mapstructure:"dir"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	MaxBytes      int64  `mapstructure:"max_bytes"`

	S3Bucket   string `mapstructure:"s3_bucket"`
	S3Region   string `mapstructure:"s3_region"`
	S3Endpoint string `mapstructure:"s3_endpoint"`
	S3Prefix   string `mapstructure:"s3_prefix"`
}

// DatabaseConfig points the data explorer at a MySQL database. Empty host disables it.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	MaxRows  int    `mapstructure:"max_rows"`
}

func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// KnowledgeConfig targets an OpenAI-compatible retrieval chat endpoint.
type KnowledgeConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

func (k KnowledgeConfig) Enabled() bool {
	return k.BaseURL != ""
}

type ImagesConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	Size    string `mapstructure:"size"`
}

func (i ImagesConfig) Enabled() bool {
	return i.APIKey != ""
}

type OrchestratorConfig struct {
	MaxTurns      int    `mapstructure:"max_turns"`
	HistoryLimit  int    `mapstructure:"history_limit"`
	AgentMaxSteps int    `mapstructure:"agent_max_steps"`
	PolicyFile    string `mapstructure:"policy_file"`
}

// Load reads an optional YAML file, then INSIGHTER_* env vars on top of the defaults.
// Nested keys map to env names with "_" (llm.api_key -> INSIGHTER_LLM_API_KEY).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("INSIGHTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", string(ModeLocal))
	v.SetDefault("log_level", "info")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("gcp.project_id", "")
	v.SetDefault("gcp.location", "us-central1")

	v.SetDefault("llm.provider", "mock")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "deepseek-chat")
	v.SetDefault("llm.routing_temperature", 0.3)
	v.SetDefault("llm.agent_temperature", 0.7)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.vision_model", "")

	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.state_backend", "memory")
	v.SetDefault("storage.redis_addr", "localhost:6379")
	v.SetDefault("storage.redis_password", "")
	v.SetDefault("storage.redis_db", 0)
	v.SetDefault("storage.state_ttl", 24*time.Hour)

	v.SetDefault("files.backend", "local")
	v.SetDefault("files.dir", "./uploads")
	v.SetDefault("files.public_base_url", "http://localhost:8080/files")
	v.SetDefault("files.max_bytes", 16<<20)
	v.SetDefault("files.s3_bucket", "")
	v.SetDefault("files.s3_region", "us-east-1")
	v.SetDefault("files.s3_endpoint", "")
	v.SetDefault("files.s3_prefix", "uploads/")

	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "")
	v.SetDefault("database.max_rows", 200)

	v.SetDefault("knowledge.base_url", "")
	v.SetDefault("knowledge.api_key", "")
	v.SetDefault("knowledge.model", "model")

	v.SetDefault("images.api_key", "")
	v.SetDefault("images.base_url", "")
	v.SetDefault("images.model", "dall-e-3")
	v.SetDefault("images.size", "1024x1024")

	v.SetDefault("orchestrator.max_turns", 10)
	v.SetDefault("orchestrator.history_limit", 40)
	v.SetDefault("orchestrator.agent_max_steps", 8)
	v.SetDefault("orchestrator.policy_file", "")
}

// Validate fails fast on settings that would otherwise break at first use.
func (c *Config) Validate() error {
	var errs []error

	switch c.Mode {
	case ModeLocal, ModeGCP:
	default:
		errs = append(errs, fmt.Errorf("mode must be local or gcp, got %q", c.Mode))
	}
	if c.Mode == ModeGCP && c.GCP.ProjectID == "" {
		errs = append(errs, errors.New("gcp.project_id must be set in gcp mode"))
	}

	switch c.LLM.Provider {
	case "mock":
	case "compatible", "openai", "anthropic":
		if c.LLM.APIKey == "" {
			errs = append(errs, fmt.Errorf("llm.api_key is required for provider %q", c.LLM.Provider))
		}
	case "vertex":
		if c.GCP.ProjectID == "" || c.GCP.Location == "" {
			errs = append(errs, errors.New("gcp.project_id and gcp.location are required for provider vertex"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown llm.provider %q", c.LLM.Provider))
	}
	if c.LLM.RoutingTemperature < 0 || c.LLM.RoutingTemperature > 2 {
		errs = append(errs, errors.New("llm.routing_temperature must be within [0, 2]"))
	}
	if c.LLM.AgentTemperature < 0 || c.LLM.AgentTemperature > 2 {
		errs = append(errs, errors.New("llm.agent_temperature must be within [0, 2]"))
	}

	switch c.Storage.Backend {
	case "memory":
	case "firestore":
		if c.GCP.ProjectID == "" {
			errs = append(errs, errors.New("gcp.project_id is required for firestore storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.backend %q", c.Storage.Backend))
	}

	switch c.Storage.StateBackend {
	case "memory":
	case "redis":
		if c.Storage.RedisAddr == "" {
			errs = append(errs, errors.New("storage.redis_addr is required for redis state backend"))
		}
	case "firestore":
		if c.GCP.ProjectID == "" {
			errs = append(errs, errors.New("gcp.project_id is required for firestore state backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.state_backend %q", c.Storage.StateBackend))
	}

	switch c.Files.Backend {
	case "local":
		if c.Files.Dir == "" {
			errs = append(errs, errors.New("files.dir is required for local file storage"))
		}
	case "s3":
		if c.Files.S3Bucket == "" {
			errs = append(errs, errors.New("files.s3_bucket is required for s3 file storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown files.backend %q", c.Files.Backend))
	}
	if c.Files.MaxBytes <= 0 {
		errs = append(errs, errors.New("files.max_bytes must be positive"))
	}

	if c.Database.Enabled() && c.Database.Name == "" {
		errs = append(errs, errors.New("database.name is required when database.host is set"))
	}

	if c.Orchestrator.MaxTurns <= 0 {
		errs = append(errs, errors.New("orchestrator.max_turns must be positive"))
	}
	if c.Orchestrator.AgentMaxSteps <= 0 {
		errs = append(errs, errors.New("orchestrator.agent_max_steps must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
