package directory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanhub/scanhub/internal/errors"
	"github.com/scanhub/scanhub/internal/store"
)

func seedEndpoint(t *testing.T, st store.Store, address string, active bool) uuid.UUID {
	t.Helper()
	ep := &store.Endpoint{
		OwnerID: uuid.New(),
		Name:    "test",
		Address: address,
		Active:  active,
	}
	require.NoError(t, st.CreateEndpoint(context.Background(), ep))
	return ep.ID
}

func TestResolveIPFastPath(t *testing.T) {
	st := store.NewMemory()
	d := New(st)

	id := seedEndpoint(t, st, "192.0.2.10", true)
	addr, err := d.Resolve(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, "192.0.2.10", addr)
}

func TestResolveIPv6FastPath(t *testing.T) {
	st := store.NewMemory()
	d := New(st)

	id := seedEndpoint(t, st, "2001:db8::1", true)
	addr, err := d.Resolve(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, "2001:db8::1", addr)
}

func TestResolveUnknownEndpoint(t *testing.T) {
	d := New(store.NewMemory())

	_, err := d.Resolve(context.Background(), uuid.New())
	assert.True(t, errors.IsNotFound(err))
}

func TestResolveInactiveEndpoint(t *testing.T) {
	st := store.NewMemory()
	d := New(st)

	id := seedEndpoint(t, st, "192.0.2.10", false)
	_, err := d.Resolve(context.Background(), id)
	assert.True(t, errors.IsNotFound(err))
}

func TestResolveMalformedAddress(t *testing.T) {
	st := store.NewMemory()
	d := New(st)

	id := seedEndpoint(t, st, "not a hostname!", true)
	_, err := d.Resolve(context.Background(), id)
	assert.True(t, errors.IsNotFound(err))
}

func TestValidHostname(t *testing.T) {
	tests := []struct {
		hostname string
		valid    bool
	}{
		{"example.com", true},
		{"sub.example.com", true},
		{"example.com.", true},
		{"a", true},
		{"host-01.internal", true},
		{"-leading.example.com", false},
		{"trailing-.example.com", false},
		{"spaces not allowed", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.hostname, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidHostname(tt.hostname))
		})
	}
}
