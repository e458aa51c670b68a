package client_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"passport-id/internal/client"
)

type failingRegistry struct{}

func (failingRegistry) ClientIDs(context.Context) ([]string, error) {
	return nil, errors.New("connection refused")
}

func TestAllowed(t *testing.T) {
	allowlist := []string{"dashboard", "passports", "authority", "auth-test"}

	tests := []struct {
		name     string
		clientID string
		want     bool
	}{
		{name: "member", clientID: "dashboard", want: true},
		{name: "other member", clientID: "auth-test", want: true},
		{name: "unknown", clientID: "evil", want: false},
		{name: "empty", clientID: "", want: false},
		{name: "case sensitive", clientID: "Dashboard", want: false},
		{name: "no trimming", clientID: " dashboard", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, client.Allowed(tt.clientID, allowlist))
		})
	}
}

func TestAllowed_IsPure(t *testing.T) {
	allowlist := []string{"dashboard"}
	first := client.Allowed("dashboard", allowlist)
	second := client.Allowed("dashboard", allowlist)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"dashboard"}, allowlist)
}

func TestStaticRegistry_ReturnsCopy(t *testing.T) {
	source := []string{"dashboard"}
	reg := client.NewStatic(source)
	source[0] = "mutated"

	ids, err := reg.ClientIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"dashboard"}, ids)

	ids[0] = "mutated"
	again, _ := reg.ClientIDs(context.Background())
	assert.Equal(t, []string{"dashboard"}, again)
}

func TestGate_Validate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid client", func(t *testing.T) {
		gate := client.NewGate(client.NewStatic([]string{"passports"}), nil)
		assert.True(t, gate.Validate(ctx, "passports"))
	})

	t.Run("unknown client", func(t *testing.T) {
		gate := client.NewGate(client.NewStatic([]string{"passports"}), nil)
		assert.False(t, gate.Validate(ctx, "dashboard"))
	})

	t.Run("registry failure is not valid", func(t *testing.T) {
		gate := client.NewGate(failingRegistry{}, nil)
		assert.False(t, gate.Validate(ctx, "passports"))
	})
}
