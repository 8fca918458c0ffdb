package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"readTimeout"`
		WriteTimeout    time.Duration `yaml:"writeTimeout"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
		MaxUploadBytes  int64         `yaml:"maxUploadBytes"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Database struct {
		Driver       string `yaml:"driver"` // mysql | postgres
		Host         string `yaml:"host"`
		Port         int    `yaml:"port"`
		User         string `yaml:"user"`
		Password     string `yaml:"password"`
		Name         string `yaml:"name"`
		SSLMode      string `yaml:"sslMode"`
		MaxOpenConns int    `yaml:"maxOpenConns"`
	} `yaml:"database"`

	Minio struct {
		Endpoint      string `yaml:"endpoint"`
		AccessKey     string `yaml:"accessKey"`
		SecretKey     string `yaml:"secretKey"`
		BucketName    string `yaml:"bucketName"`
		Region        string `yaml:"region"`
		UseSSL        bool   `yaml:"useSSL"`
		PublicBaseURL string `yaml:"publicBaseURL"`
	} `yaml:"minio"`

	OCR struct {
		URL     string        `yaml:"url"`
		Secret  string        `yaml:"secret"`
		Lang    string        `yaml:"lang"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"ocr"`

	Normalizer struct {
		Backend string        `yaml:"backend"` // http | openai
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout"`
		OpenAI  struct {
			APIKey  string `yaml:"apiKey"`
			BaseURL string `yaml:"baseURL"`
			Model   string `yaml:"model"`
		} `yaml:"openai"`
	} `yaml:"normalizer"`

	Analysis struct {
		TargetWidth    int   `yaml:"targetWidth"`
		CountAllLevels *bool `yaml:"countAllLevels"`
	} `yaml:"analysis"`

	// Auth maps API keys to user ids.
	Auth struct {
		APIKeys map[string]int64 `yaml:"apiKeys"`
		// AdminKeys is the subset of APIKeys allowed to import the dictionary.
		AdminKeys []string `yaml:"adminKeys"`
	} `yaml:"auth"`

	RateLimit struct {
		Capacity   int `yaml:"capacity"`
		RefillRate int `yaml:"refillRate"` // tokens per second
	} `yaml:"rateLimit"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"cors"`
}

// Load reads the YAML file at path, fills defaults and applies MOMBO_* env
// overrides. It does not validate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnv(os.LookupEnv)
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	// covers OCR plus normalization round trips
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 90 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = 10 << 20
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Port == 0 {
		switch c.Database.Driver {
		case "postgres":
			c.Database.Port = 5432
		default:
			c.Database.Port = 3306
		}
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.OCR.Lang == "" {
		c.OCR.Lang = "ko"
	}
	if c.OCR.Timeout == 0 {
		c.OCR.Timeout = 30 * time.Second
	}
	if c.Normalizer.Backend == "" {
		c.Normalizer.Backend = "http"
	}
	if c.Normalizer.Timeout == 0 {
		c.Normalizer.Timeout = 30 * time.Second
	}
	if c.Normalizer.OpenAI.Model == "" {
		c.Normalizer.OpenAI.Model = "gpt-4o-mini"
	}
	if c.Analysis.TargetWidth == 0 {
		c.Analysis.TargetWidth = 400
	}
	if c.Analysis.CountAllLevels == nil {
		v := true
		c.Analysis.CountAllLevels = &v
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = 30
	}
	if c.RateLimit.RefillRate == 0 {
		c.RateLimit.RefillRate = 1
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}
}

// applyEnv lets secrets come from the environment instead of the file.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("MOMBO_DB_PASSWORD", &c.Database.Password)
	str("MOMBO_MINIO_ACCESS_KEY", &c.Minio.AccessKey)
	str("MOMBO_MINIO_SECRET_KEY", &c.Minio.SecretKey)
	str("MOMBO_OCR_SECRET", &c.OCR.Secret)
	str("MOMBO_OPENAI_API_KEY", &c.Normalizer.OpenAI.APIKey)
	if v, ok := lookup("MOMBO_PORT"); ok {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Database.Driver {
	case "mysql", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q must be mysql or postgres", c.Database.Driver))
	}
	if c.Database.Host == "" || c.Database.Name == "" {
		errs = append(errs, errors.New("database.host and database.name are required"))
	}
	if c.Minio.Endpoint == "" || c.Minio.BucketName == "" {
		errs = append(errs, errors.New("minio.endpoint and minio.bucketName are required"))
	}
	if _, err := url.ParseRequestURI(c.OCR.URL); err != nil {
		errs = append(errs, fmt.Errorf("ocr.url: %w", err))
	}
	if c.OCR.Secret == "" {
		errs = append(errs, errors.New("ocr.secret is required"))
	}
	switch c.Normalizer.Backend {
	case "http":
		if _, err := url.ParseRequestURI(c.Normalizer.URL); err != nil {
			errs = append(errs, fmt.Errorf("normalizer.url: %w", err))
		}
	case "openai":
		if c.Normalizer.OpenAI.APIKey == "" {
			errs = append(errs, errors.New("normalizer.openai.apiKey is required for the openai backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("normalizer.backend %q must be http or openai", c.Normalizer.Backend))
	}
	if c.Analysis.TargetWidth <= 0 {
		errs = append(errs, fmt.Errorf("analysis.targetWidth %d must be positive", c.Analysis.TargetWidth))
	}
	if len(c.Auth.APIKeys) == 0 {
		errs = append(errs, errors.New("auth.apiKeys must map at least one key to a user"))
	}
	for k, id := range c.Auth.APIKeys {
		if strings.TrimSpace(k) == "" || id <= 0 {
			errs = append(errs, fmt.Errorf("auth.apiKeys: invalid entry for user %d", id))
		}
	}
	for i, k := range c.Auth.AdminKeys {
		if _, ok := c.Auth.APIKeys[k]; !ok {
			errs = append(errs, fmt.Errorf("auth.adminKeys[%d] is not listed in auth.apiKeys", i))
		}
	}
	return errors.Join(errs...)
}

// MySQLDSN builds the go-sql-driver DSN.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds a lib/pq URL DSN.
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.Database.SSLMode),
	}
	return u.String()
}

// CountAllLevels reports the aggregation policy.
func (c *Config) CountAllLevels() bool {
	return c.Analysis.CountAllLevels == nil || *c.Analysis.CountAllLevels
}
