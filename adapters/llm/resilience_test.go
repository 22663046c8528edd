package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flomentum/domain/core"
)

// flakyClient fails a fixed number of times, then succeeds
type flakyClient struct {
	failures int
	calls    int
}

func (f *flakyClient) ChatCompletion(ctx context.Context, prompt string, maxTokens int) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", errors.New("vendor 503")
	}
	return "ok", nil
}

func fastResilient(inner *flakyClient) *ResilientClient {
	rc := NewResilientClient(inner, "test")
	rc.retryBase = time.Millisecond
	rc.retryCap = time.Millisecond
	return rc
}

func TestResilientClient_RetriesTransientFailure(t *testing.T) {
	inner := &flakyClient{failures: 2}
	rc := fastResilient(inner)

	out, err := rc.ChatCompletion(context.Background(), "hello", 100)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, inner.calls)
}

func TestResilientClient_ExhaustedRetriesSurfaceUnavailable(t *testing.T) {
	inner := &flakyClient{failures: 100}
	rc := fastResilient(inner)

	_, err := rc.ChatCompletion(context.Background(), "hello", 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrExternalAIUnavailable)
	assert.Equal(t, 3, inner.calls, "one call plus two retries")
}

func TestResilientClient_BreakerOpensAfterSustainedFailure(t *testing.T) {
	inner := &flakyClient{failures: 10000}
	rc := fastResilient(inner)

	for i := 0; i < 5; i++ {
		_, err := rc.ChatCompletion(context.Background(), "hello", 100)
		require.Error(t, err)
	}
	callsBefore := inner.calls

	_, err := rc.ChatCompletion(context.Background(), "hello", 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrExternalAIUnavailable)
	assert.Equal(t, callsBefore, inner.calls, "open breaker must not reach the vendor")
}

func TestNewChatClient_StubVendor(t *testing.T) {
	client, err := NewChatClient(testAIConfig("stub"))
	require.NoError(t, err)

	_, ok := client.(*StubChatClient)
	assert.True(t, ok)
}

func TestNewChatClient_UnknownVendor(t *testing.T) {
	_, err := NewChatClient(testAIConfig("bard"))
	assert.Error(t, err)
}
