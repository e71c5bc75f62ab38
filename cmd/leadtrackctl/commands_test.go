package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	jwttoken "leadtrack/internal/jwt_token"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return out.String(), err
}

func TestHashToken(t *testing.T) {
	out, err := run(t, "correct-horse-battery\n", "hash-token", "--cost", "4")
	require.NoError(t, err)

	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("correct-horse-battery")))

	_, err = run(t, "short\n", "hash-token")
	assert.ErrorContains(t, err, "at least 16")
}

func TestIssueToken(t *testing.T) {
	t.Setenv("JWT_SIGNING_KEY", "ctl-test-signing-key")
	t.Setenv("JWT_ISSUER", "leadtrack")
	t.Setenv("JWT_AUDIENCE", "leadtrack-admin")

	out, err := run(t, "", "issue-token", "--subject", "ops@example.com", "--ttl", "5m")
	require.NoError(t, err)

	svc := jwttoken.NewJWTService("ctl-test-signing-key", "leadtrack", "leadtrack-admin")
	claims, err := svc.ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Subject)

	_, err = run(t, "", "issue-token")
	assert.ErrorContains(t, err, "--subject")
}

func TestLookupAgainstMemoryStore(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("SCHEMA_VARIANT", "normalized")
	t.Setenv("JWT_SIGNING_KEY", "ctl-test-signing-key")

	out, err := run(t, "", "lookup", "123.456.789-01")
	require.NoError(t, err)
	assert.Contains(t, out, `"formatted_cpf": "123.456.789-01"`)
	assert.Contains(t, out, `"synthesized": true`)

	_, err = run(t, "", "lookup", "111.111.111-11")
	assert.Error(t, err)

	t.Run("pay releases the order", func(t *testing.T) {
		out, err := run(t, "", "lookup", "123.456.789-01", "--pay")
		require.NoError(t, err)
		assert.Contains(t, out, `"current_status": "Pedido liberado"`)
		assert.Contains(t, out, `"id": 12`)
		assert.Contains(t, out, `"payment_status": "paid"`)
	})
}

func TestPingMemoryStore(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("SCHEMA_VARIANT", "legacy")
	t.Setenv("JWT_SIGNING_KEY", "ctl-test-signing-key")

	out, err := run(t, "", "ping")
	require.NoError(t, err)
	assert.Equal(t, "logr table reachable\n", out)
}
