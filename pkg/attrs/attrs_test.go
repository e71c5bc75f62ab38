package attrs

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	id "leadtrack/pkg/domain"
)

func TestExtractString(t *testing.T) {
	kv := []any{
		"cpf", "*********01",
		"stage", 12,
		slog.String("reason", "legacy schema has no stage column"),
		"lead", id.NationalID("12345678901"),
	}

	assert.Equal(t, "*********01", ExtractString(kv, "cpf"))
	assert.Equal(t, "legacy schema has no stage column", ExtractString(kv, "reason"))
	assert.Equal(t, "12345678901", ExtractString(kv, "lead"))
	assert.Empty(t, ExtractString(kv, "stage"))
	assert.Empty(t, ExtractString(kv, "missing"))
	assert.Empty(t, ExtractString([]any{"dangling"}, "dangling"))
}
