package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// ErrMissingCredentials is returned when the generation provider needs an
// access key and project id and one of them is empty.
var ErrMissingCredentials = errors.New("API key or Project ID missing in environment variables!")

const (
	ProviderTable  = "jamai"
	ProviderOpenAI = "openai"

	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	AI       AIConfig       `yaml:"ai"`
	Genres   GenresConfig   `yaml:"genres"`
	Session  SessionConfig  `yaml:"session"`
	Document DocumentConfig `yaml:"document"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IndexFile    string        `yaml:"index_file"`
}

type DatabaseConfig struct {
	MySQL MySQLConfig `yaml:"mysql"`
	Redis RedisConfig `yaml:"redis"`
}

// MySQLConfig configures the story archive. An empty Host disables it.
type MySQLConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type AIConfig struct {
	Provider          string        `yaml:"provider" validate:"oneof=jamai openai"`
	BaseURL           string        `yaml:"base_url" validate:"omitempty,url"`
	APIKey            string        `yaml:"api_key"`
	ProjectID         string        `yaml:"project_id"`
	Model             string        `yaml:"model"`
	OutlineTable      string        `yaml:"outline_table"`
	OutlineColumn     string        `yaml:"outline_column"`
	StoryTable        string        `yaml:"story_table"`
	StoryColumn       string        `yaml:"story_column"`
	Temperature       float32       `yaml:"temperature" validate:"min=0,max=2"`
	MaxTokens         int           `yaml:"max_tokens" validate:"min=0"`
	RequestsPerMinute int           `yaml:"requests_per_minute" validate:"min=0"`
	Timeout           time.Duration `yaml:"timeout"`
}

type GenresConfig struct {
	Path string `yaml:"path"`
}

type SessionConfig struct {
	Store      string        `yaml:"store" validate:"oneof=memory redis"`
	TTL        time.Duration `yaml:"ttl"`
	CookieName string        `yaml:"cookie_name"`
}

type DocumentConfig struct {
	PageMargin      float64 `yaml:"page_margin" validate:"gt=0"`
	FontFamily      string  `yaml:"font_family"`
	FontFile        string  `yaml:"font_file"`
	DefaultFileName string  `yaml:"default_file_name"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults so the service can run on environment variables alone.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyEnv() {
	// The lower-case names are accepted for compatibility with existing .env files.
	if v := firstEnv("STORYWEAVER_API_KEY", "api_key"); v != "" {
		c.AI.APIKey = v
	}
	if v := firstEnv("STORYWEAVER_PROJECT_ID", "project_id"); v != "" {
		c.AI.ProjectID = v
	}
	if c.AI.Provider == ProviderOpenAI && c.AI.APIKey == "" {
		c.AI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Database.Redis.Password = v
	}
	if v := os.Getenv("MYSQL_PASSWORD"); v != "" {
		c.Database.MySQL.Password = v
	}
	if v := os.Getenv("STORYWEAVER_FONT_FILE"); v != "" {
		c.Document.FontFile = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8501
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	// Full-story generation holds the request open for every chapter.
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Minute
	}

	if c.Database.Redis.Port == 0 {
		c.Database.Redis.Port = 6379
	}
	if c.Database.Redis.PoolSize == 0 {
		c.Database.Redis.PoolSize = 10
	}
	if c.Database.MySQL.Port == 0 {
		c.Database.MySQL.Port = 3306
	}
	if c.Database.MySQL.MaxOpenConns == 0 {
		c.Database.MySQL.MaxOpenConns = 10
	}
	if c.Database.MySQL.MaxIdleConns == 0 {
		c.Database.MySQL.MaxIdleConns = 5
	}
	if c.Database.MySQL.ConnMaxLifetime == 0 {
		c.Database.MySQL.ConnMaxLifetime = time.Hour
	}

	if c.AI.Provider == "" {
		c.AI.Provider = ProviderTable
	}
	if c.AI.BaseURL == "" && c.AI.Provider == ProviderTable {
		c.AI.BaseURL = "https://api.jamaibase.com"
	}
	if c.AI.Model == "" {
		c.AI.Model = "gpt-4o-mini"
	}
	if c.AI.OutlineTable == "" {
		c.AI.OutlineTable = "Outline"
	}
	if c.AI.OutlineColumn == "" {
		c.AI.OutlineColumn = "story_outline"
	}
	if c.AI.StoryTable == "" {
		c.AI.StoryTable = "Story"
	}
	if c.AI.StoryColumn == "" {
		c.AI.StoryColumn = "story"
	}
	if c.AI.Temperature == 0 {
		c.AI.Temperature = 0.7
	}
	if c.AI.MaxTokens == 0 {
		c.AI.MaxTokens = 4000
	}

	if c.Genres.Path == "" {
		c.Genres.Path = "genres.txt"
	}

	if c.Session.Store == "" {
		c.Session.Store = SessionStoreMemory
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = 24 * time.Hour
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "storyweaver_session"
	}

	if c.Document.PageMargin == 0 {
		c.Document.PageMargin = 15
	}
	if c.Document.FontFamily == "" {
		c.Document.FontFamily = "Arial"
	}
	if c.Document.DefaultFileName == "" {
		c.Document.DefaultFileName = "My_Story"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Validate checks the configuration with struct tags.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Credentials reports whether the generation provider can be initialised.
func (c *Config) Credentials() error {
	switch c.AI.Provider {
	case ProviderTable:
		if c.AI.APIKey == "" || c.AI.ProjectID == "" {
			return ErrMissingCredentials
		}
	case ProviderOpenAI:
		if c.AI.APIKey == "" {
			return ErrMissingCredentials
		}
	}
	return nil
}

// Addr returns the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}
