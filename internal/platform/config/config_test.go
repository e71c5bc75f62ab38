package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("TRACKING_RATE_LIMIT", "")
	t.Setenv("TRACKING_RATE_WINDOW", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, BackendPostgREST, cfg.Store.Backend)
	assert.Equal(t, "normalized", cfg.Store.SchemaVariant)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.Equal(t, 2*time.Minute, cfg.LeadsTTL)
	assert.Empty(t, cfg.Audit.Brokers)
	assert.Equal(t, 30, cfg.RateLimit.Limit)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("LEADTRACK_ADDR", ":9090")
	t.Setenv("STORE_BACKEND", BackendPostgres)
	t.Setenv("SCHEMA_VARIANT", "legacy")
	t.Setenv("MIGRATE_ON_START", "true")
	t.Setenv("LEAD_CACHE_TTL", "30s")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("TRACKING_RATE_LIMIT", "0")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "legacy", cfg.Store.SchemaVariant)
	assert.True(t, cfg.Store.MigrateOnStart)
	assert.Equal(t, 30*time.Second, cfg.LeadsTTL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Audit.Brokers)
	assert.Zero(t, cfg.RateLimit.Limit)
}

func TestFromEnv_ReportsEveryMalformedValue(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "soon")
	t.Setenv("REDIS_POOL_SIZE", "many")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REQUEST_TIMEOUT")
	assert.Contains(t, err.Error(), "REDIS_POOL_SIZE")
}

func TestValidate(t *testing.T) {
	valid := Server{
		Store: StoreConfig{Backend: BackendMemory, SchemaVariant: "normalized"},
		Auth:  AuthConfig{JWTSigningKey: "0123456789abcdef"},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Server)
		want   []string
	}{
		{
			name:   "postgrest needs url and key",
			mutate: func(s *Server) { s.Store.Backend = BackendPostgREST },
			want:   []string{"STORE_URL", "STORE_API_KEY"},
		},
		{
			name:   "postgres needs a database url",
			mutate: func(s *Server) { s.Store.Backend = BackendPostgres },
			want:   []string{"DATABASE_URL"},
		},
		{
			name:   "mongo needs a uri",
			mutate: func(s *Server) { s.Store.Backend = BackendMongo },
			want:   []string{"MONGO_URI"},
		},
		{
			name:   "unknown backend and variant",
			mutate: func(s *Server) { s.Store.Backend = "sqlite"; s.Store.SchemaVariant = "flat" },
			want:   []string{"STORE_BACKEND", "SCHEMA_VARIANT"},
		},
		{
			name:   "rate limit without a window",
			mutate: func(s *Server) { s.RateLimit = RateLimitConfig{Limit: 5} },
			want:   []string{"TRACKING_RATE_WINDOW"},
		},
		{
			name:   "short signing key",
			mutate: func(s *Server) { s.Auth.JWTSigningKey = "short" },
			want:   []string{"JWT_SIGNING_KEY"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			for _, w := range tt.want {
				assert.Contains(t, err.Error(), w)
			}
		})
	}
}
