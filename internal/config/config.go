package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		MaxUploadMB    int64    `yaml:"max_upload_mb"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Deck struct {
		TTL string `yaml:"ttl"`
	} `yaml:"deck"`
	Session struct {
		// Bus is "memory" (default) or "redis".
		Bus           string `yaml:"bus"`
		Tick          string `yaml:"tick"`
		ChannelBuffer int    `yaml:"channel_buffer"`
	} `yaml:"session"`
	GenAI struct {
		APIKey               string `yaml:"api_key"`
		TextModel            string `yaml:"text_model"`
		ImageModel           string `yaml:"image_model"`
		Timeout              string `yaml:"timeout"`
		VariationConcurrency int    `yaml:"variation_concurrency"`
	} `yaml:"genai"`
	Extract struct {
		Timeout   string `yaml:"timeout"`
		UserAgent string `yaml:"user_agent"`
		MaxChars  int    `yaml:"max_chars"`
	} `yaml:"extract"`
	Ingest struct {
		Pdftoppm string `yaml:"pdftoppm"`
		DPI      int    `yaml:"dpi"`
	} `yaml:"ingest"`
	Export struct {
		FontPath string `yaml:"font_path"`
	} `yaml:"export"`
}

// Load reads YAML config from path, then applies environment overrides.
// A missing file is not an error: defaults plus environment still apply.
// Variables from a .env file in the working directory are loaded first
// without replacing ones already set.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv(os.Getenv)
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("GENAI_API_KEY"); v != "" {
		c.GenAI.APIKey = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := getenv("DATABASE_URL"); v != "" {
		c.Postgres.URL = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
}

// RedisBus reports whether session channels should go over Redis.
func (c Config) RedisBus() bool {
	return strings.EqualFold(c.Session.Bus, "redis")
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// IntOr returns v unless it is not positive.
func IntOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
