package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	platformstrings "leadtrack/pkg/platform/strings"
)

// Store backends.
const (
	BackendPostgREST = "postgrest"
	BackendPostgres  = "postgres"
	BackendMongo     = "mongo"
	BackendMemory    = "memory"
)

// Server captures process level configuration.
type Server struct {
	Addr           string
	LogLevel       string
	RequestTimeout time.Duration

	Store     StoreConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Audit     AuditConfig
	RateLimit RateLimitConfig
	LeadsTTL  time.Duration
}

// RateLimitConfig caps public tracking lookups per client IP. A zero Limit
// disables the check.
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

// StoreConfig selects and locates the record store.
type StoreConfig struct {
	Backend        string
	SchemaVariant  string
	URL            string
	APIKey         string
	Timeout        time.Duration
	DatabaseURL    string
	MigrateOnStart bool
	MongoURI       string
	MongoDatabase  string
}

// RedisConfig configures the optional lead cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AuthConfig holds admin authentication settings.
type AuthConfig struct {
	JWTSigningKey  string
	JWTIssuer      string
	JWTAudience    string
	TokenTTL       time.Duration
	AdminTokenHash string
}

// AuditConfig enables the Kafka audit sink when Brokers is set.
type AuditConfig struct {
	Brokers []string
	Topic   string
	Buffer  int
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	p := &parser{}
	cfg := Server{
		Addr:           getEnv("LEADTRACK_ADDR", ":8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		RequestTimeout: p.duration("REQUEST_TIMEOUT", 15*time.Second),
		LeadsTTL:       p.duration("LEAD_CACHE_TTL", 2*time.Minute),
		Store: StoreConfig{
			Backend:        getEnv("STORE_BACKEND", BackendPostgREST),
			SchemaVariant:  getEnv("SCHEMA_VARIANT", "normalized"),
			URL:            os.Getenv("STORE_URL"),
			APIKey:         os.Getenv("STORE_API_KEY"),
			Timeout:        p.duration("STORE_TIMEOUT", 10*time.Second),
			DatabaseURL:    os.Getenv("DATABASE_URL"),
			MigrateOnStart: p.bool("MIGRATE_ON_START", false),
			MongoURI:       os.Getenv("MONGO_URI"),
			MongoDatabase:  getEnv("MONGO_DATABASE", "leadtrack"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     p.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: p.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Auth: AuthConfig{
			JWTSigningKey:  getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:      getEnv("JWT_ISSUER", "leadtrack"),
			JWTAudience:    getEnv("JWT_AUDIENCE", "leadtrack-admin"),
			TokenTTL:       p.duration("ADMIN_TOKEN_TTL", 8*time.Hour),
			AdminTokenHash: os.Getenv("ADMIN_TOKEN_HASH"),
		},
		Audit: AuditConfig{
			Brokers: platformstrings.SplitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_AUDIT_TOPIC", "leadtrack.audit"),
			Buffer:  p.int("AUDIT_BUFFER", 256),
		},
		RateLimit: RateLimitConfig{
			Limit:  p.int("TRACKING_RATE_LIMIT", 30),
			Window: p.duration("TRACKING_RATE_WINDOW", time.Minute),
		},
	}
	if err := errors.Join(p.errs...); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate reports every setting the chosen backend is missing.
func (c Server) Validate() error {
	var errs []error
	switch c.Store.Backend {
	case BackendPostgREST:
		if c.Store.URL == "" {
			errs = append(errs, errors.New("STORE_URL is required for the postgrest backend"))
		}
		if c.Store.APIKey == "" {
			errs = append(errs, errors.New("STORE_API_KEY is required for the postgrest backend"))
		}
	case BackendPostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	case BackendMongo:
		if c.Store.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND %q is not one of postgrest, postgres, mongo, memory", c.Store.Backend))
	}
	if c.Store.SchemaVariant != "legacy" && c.Store.SchemaVariant != "normalized" {
		errs = append(errs, fmt.Errorf("SCHEMA_VARIANT %q is not one of legacy, normalized", c.Store.SchemaVariant))
	}
	if c.RateLimit.Limit > 0 && c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("TRACKING_RATE_WINDOW must be positive when TRACKING_RATE_LIMIT is set"))
	}
	if len(c.Auth.JWTSigningKey) < 16 {
		errs = append(errs, errors.New("JWT_SIGNING_KEY must be at least 16 characters"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parser collects conversion errors so one run reports all of them.
type parser struct {
	errs []error
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}

func (p *parser) int(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func (p *parser) bool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}
