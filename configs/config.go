package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Log       LogConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Retrieval RetrievalConfig
	Inference InferenceConfig
	Tunnel    TunnelConfig
	Admin     AdminConfig
	Auth      AuthConfig
}

type ServerConfig struct {
	Host           string
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	TLSCertFile    string
	TLSKeyFile     string
	AllowedOrigins []string
	TrustProxy     bool
}

type RedisConfig struct {
	// Addr empty means no Redis: rate limit counters fall back to the
	// in-process repository.
	Addr     string
	Password string
	DB       int
	PoolSize int
	// Timeouts
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string // json or text
}

type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	KeyPrefix         string
}

type CacheConfig struct {
	TTL        time.Duration
	MaxEntries int
}

type RetrievalConfig struct {
	BaseURL  string
	Timeout  time.Duration
	TopK     int
	MinScore float64
	// OnUnavailable: "degrade" proceeds to inference with no context,
	// "fail" rejects the request.
	OnUnavailable string
}

type InferenceConfig struct {
	BaseURL     string
	Model       string
	Timeout     time.Duration
	PingTimeout time.Duration
}

type TunnelConfig struct {
	// Provider: "cloudflare", "ngrok" or "" to disable tunnel admin.
	Provider       string
	Binary         string
	LocalURL       string
	StartupTimeout time.Duration
	Autostart      bool
}

type AdminConfig struct {
	// Token is compared in constant time; TokenHash, when set, takes
	// precedence and is verified with bcrypt.
	Token     string
	TokenHash string
}

type AuthConfig struct {
	// APIKeySecret verifies optional client API-key JWTs. Empty
	// disables token identities; clients are identified by IP only.
	APIKeySecret string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnv("SERVER_PORT", "5000"),
			ReadTimeout:    getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   getDurationEnv("SERVER_WRITE_TIMEOUT", 5*time.Minute),
			IdleTimeout:    getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
			TLSCertFile:    getEnv("TLS_CERT_FILE", ""),
			TLSKeyFile:     getEnv("TLS_KEY_FILE", ""),
			AllowedOrigins: splitEnv("ALLOWED_ORIGINS", "*"),
			TrustProxy:     getBoolEnv("TRUST_PROXY", false),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", ""),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getIntEnv("REDIS_DB", 0),
			PoolSize:     getIntEnv("REDIS_POOL_SIZE", 10),
			DialTimeout:  getDurationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDurationEnv("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDurationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getIntEnv("RATE_LIMIT_REQUESTS", 60),
			Window:            getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
			KeyPrefix:         getEnv("RATE_LIMIT_KEY_PREFIX", "ratelimit:client"),
		},
		Cache: CacheConfig{
			TTL:        getDurationEnv("CACHE_TTL", time.Hour),
			MaxEntries: getIntEnv("CACHE_MAX_ENTRIES", 1000),
		},
		Retrieval: RetrievalConfig{
			BaseURL:       getEnvRequired("RETRIEVAL_URL"),
			Timeout:       getDurationEnv("RETRIEVAL_TIMEOUT", 10*time.Second),
			TopK:          getIntEnv("RETRIEVAL_TOP_K", 5),
			MinScore:      getFloatEnv("RETRIEVAL_MIN_SCORE", 0.1),
			OnUnavailable: getEnv("RETRIEVAL_ON_UNAVAILABLE", "degrade"),
		},
		Inference: InferenceConfig{
			BaseURL:     getEnv("OLLAMA_URL", "http://localhost:11434"),
			Model:       getEnv("OLLAMA_MODEL", "mistral"),
			Timeout:     getDurationEnv("INFERENCE_TIMEOUT", 2*time.Minute),
			PingTimeout: getDurationEnv("INFERENCE_PING_TIMEOUT", 2*time.Second),
		},
		Tunnel: TunnelConfig{
			Provider:       getEnv("TUNNEL_PROVIDER", ""),
			Binary:         getEnv("TUNNEL_BINARY", ""),
			LocalURL:       getEnv("TUNNEL_LOCAL_URL", ""),
			StartupTimeout: getDurationEnv("TUNNEL_STARTUP_TIMEOUT", 30*time.Second),
			Autostart:      getBoolEnv("TUNNEL_AUTOSTART", false),
		},
		Admin: AdminConfig{
			Token:     getEnv("ADMIN_TOKEN", ""),
			TokenHash: getEnv("ADMIN_TOKEN_HASH", ""),
		},
		Auth: AuthConfig{
			APIKeySecret: getEnv("API_KEY_SECRET", ""),
		},
	}

	if cfg.Retrieval.OnUnavailable != "degrade" && cfg.Retrieval.OnUnavailable != "fail" {
		return nil, fmt.Errorf("RETRIEVAL_ON_UNAVAILABLE must be \"degrade\" or \"fail\", got %q", cfg.Retrieval.OnUnavailable)
	}
	if cfg.Tunnel.LocalURL == "" {
		cfg.Tunnel.LocalURL = "http://localhost:" + cfg.Server.Port
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvRequired(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic(fmt.Sprintf("Required environment variable %s is not set", key))
	}
	return value
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitEnv(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
