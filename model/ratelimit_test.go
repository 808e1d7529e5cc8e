package model

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimited_Delegates(t *testing.T) {
	inner := NewScriptedModel(Reply("a"), Reply("b"))
	m := NewRateLimited(inner, 1000, 2)

	for range 2 {
		_, err := m.Generate(context.Background(), Request{})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, inner.Calls())
	assert.Equal(t, inner.Info(), m.Info())
}

func TestRateLimited_HonorsContext(t *testing.T) {
	inner := NewScriptedModel(Reply("a"), Reply("b"))
	m := NewRateLimited(inner, 0.001, 1)

	_, err := m.Generate(context.Background(), Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Generate(ctx, Request{})
	assert.ErrorContains(t, err, "rate limit")
	assert.Equal(t, 1, inner.Calls())
}
