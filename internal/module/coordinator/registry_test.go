package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_FirstMatchWins(t *testing.T) {
	first := newMockPlugin()
	second := &mockPlugin{}
	second.On("Processes", paymentSystem).Return(true).Maybe()

	r := NewRegistry(first, second)

	got, err := r.PluginFor(paymentSystem)
	require.NoError(t, err)
	assert.Same(t, first, got.(*mockPlugin))
}

func TestRegistry_SkipsNonMatching(t *testing.T) {
	other := &mockPlugin{}
	other.On("Processes", paymentSystem).Return(false)
	matching := newMockPlugin()

	r := NewRegistry(other, matching)

	got, err := r.PluginFor(paymentSystem)
	require.NoError(t, err)
	assert.Same(t, matching, got.(*mockPlugin))
}

func TestRegistry_NoPluginFound(t *testing.T) {
	r := NewRegistry()

	_, err := r.PluginFor("unknown_gateway")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoPluginFound)
}

func TestRegistry_RegisterAppends(t *testing.T) {
	r := NewRegistry()
	p := newMockPlugin()
	r.Register(p)

	got, err := r.PluginFor(paymentSystem)
	require.NoError(t, err)
	assert.Same(t, p, got.(*mockPlugin))
}
