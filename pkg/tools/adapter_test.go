package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quoteDescriptor() ToolDescriptor {
	return ToolDescriptor{
		Name:        "get_quote",
		Description: "Fetch a stock quote",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"symbol":  map[string]any{"type": "string", "minLength": 1},
				"api_key": map[string]any{"type": "string"},
			},
			"required": []any{"symbol", "api_key"},
		},
	}
}

func TestAdapter_InjectedParams(t *testing.T) {
	var seenArgs map[string]any
	adapter := NewAdapter("market", quoteDescriptor(),
		map[string]any{"api_key": "secret"},
		func(ctx context.Context, args map[string]any) (string, error) {
			seenArgs = args
			return "NVDA: $900", nil
		})

	assert.Equal(t, "market/get_quote", adapter.GetName())
	assert.Contains(t, adapter.GetDescription(), "auto-provided: api_key")

	// The stripped schema no longer exposes or requires api_key.
	exposed := adapter.GetSchema()
	assert.NotContains(t, exposed.Properties, "api_key")
	assert.Equal(t, []string{"symbol"}, exposed.Required)

	result, err := adapter.Execute(context.Background(), map[string]any{"symbol": "NVDA"})
	require.NoError(t, err)
	require.True(t, result.Success, "error: %s", result.Error)
	assert.Equal(t, "secret", seenArgs["api_key"])
	assert.Equal(t, "NVDA", seenArgs["symbol"])
	assert.Equal(t, "mcp://market/get_quote", result.Source)
	assert.False(t, result.AccessedAt.IsZero())
}

func TestAdapter_ValidationFailure(t *testing.T) {
	called := false
	adapter := NewAdapter("market", quoteDescriptor(),
		map[string]any{"api_key": "secret"},
		func(ctx context.Context, args map[string]any) (string, error) {
			called = true
			return "", nil
		})

	result, err := adapter.Execute(context.Background(), map[string]any{"symbol": 42})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "invalid arguments")
	assert.False(t, called, "remote must not be invoked on validation failure")
}

func TestAdapter_RetryOnTransientError(t *testing.T) {
	calls := 0
	adapter := NewAdapter("market", quoteDescriptor(),
		map[string]any{"api_key": "k"},
		func(ctx context.Context, args map[string]any) (string, error) {
			calls++
			if calls == 1 {
				return "", errors.New("upstream timed out")
			}
			return "recovered", nil
		})

	result, err := adapter.Execute(context.Background(), map[string]any{"symbol": "AAPL"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "recovered", result.Content)
	assert.Equal(t, 2, calls)
}

func TestAdapter_NoRetryOnPermanentError(t *testing.T) {
	calls := 0
	adapter := NewAdapter("market", quoteDescriptor(),
		map[string]any{"api_key": "k"},
		func(ctx context.Context, args map[string]any) (string, error) {
			calls++
			return "", errors.New("unknown symbol")
		})

	result, err := adapter.Execute(context.Background(), map[string]any{"symbol": "ZZZZ"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 1, calls, "permanent errors are not retried")
}

func TestAdapter_RetryFailsTwice(t *testing.T) {
	calls := 0
	adapter := NewAdapter("market", quoteDescriptor(),
		map[string]any{"api_key": "k"},
		func(ctx context.Context, args map[string]any) (string, error) {
			calls++
			return "", errors.New("HTTP 503 service unavailable")
		})

	result, err := adapter.Execute(context.Background(), map[string]any{"symbol": "AAPL"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 2, calls, "transient errors get exactly one retry")
	assert.Contains(t, result.Error, "503")
}

func TestAdapter_StructuredParse(t *testing.T) {
	adapter := NewAdapter("market", quoteDescriptor(),
		map[string]any{"api_key": "k"},
		func(ctx context.Context, args map[string]any) (string, error) {
			return `{"price": 900.5, "currency": "USD"}`, nil
		})

	result, err := adapter.Execute(context.Background(), map[string]any{"symbol": "NVDA"})
	require.NoError(t, err)
	require.True(t, result.Success)

	structured, ok := result.Structured.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 900.5, structured["price"])
}

func TestAdapter_EmptyContentPlaceholder(t *testing.T) {
	adapter := NewAdapter("market", quoteDescriptor(),
		map[string]any{"api_key": "k"},
		func(ctx context.Context, args map[string]any) (string, error) {
			return "", nil
		})

	result, err := adapter.Execute(context.Background(), map[string]any{"symbol": "NVDA"})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.NotEmpty(t, result.Content)
	assert.Contains(t, result.Content, "no content")
}

func TestAdapter_FalsyPrimitivesPassThrough(t *testing.T) {
	for _, text := range []string{"0", "false"} {
		adapter := NewAdapter("market", quoteDescriptor(),
			map[string]any{"api_key": "k"},
			func(ctx context.Context, args map[string]any) (string, error) {
				return text, nil
			})

		result, err := adapter.Execute(context.Background(), map[string]any{"symbol": "NVDA"})
		require.NoError(t, err)
		require.True(t, result.Success)
		assert.Equal(t, text, result.Content)
	}
}

func TestAdapter_AbortShortCircuitsRetryDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	adapter := NewAdapter("market", quoteDescriptor(),
		map[string]any{"api_key": "k"},
		func(ctx context.Context, args map[string]any) (string, error) {
			cancel()
			return "", errors.New("connection reset by peer")
		})

	start := time.Now()
	result, err := adapter.Execute(ctx, map[string]any{"symbol": "NVDA"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Less(t, time.Since(start), retryDelay, "cancelled call must not wait out the retry delay")
}

func TestIsTransientError(t *testing.T) {
	assert.True(t, isTransientError(errors.New("request timeout")))
	assert.True(t, isTransientError(errors.New("HTTP 502 bad gateway")))
	assert.True(t, isTransientError(errors.New("internal server error")))
	assert.False(t, isTransientError(errors.New("invalid API key")))
	assert.False(t, isTransientError(errors.New("not found")))
}
