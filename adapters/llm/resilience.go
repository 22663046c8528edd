package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"

	"flomentum/domain/core"
	"flomentum/internal/config"
	"flomentum/ports"
)

// ResilientClient wraps a vendor client with retries and a circuit breaker.
// Transient vendor failures are retried with exponential backoff; sustained
// failure opens the breaker so pipelines degrade fast instead of queueing
// behind a dead vendor. All failures surface as ErrExternalAIUnavailable.
type ResilientClient struct {
	inner   ports.ChatClient
	breaker *gobreaker.CircuitBreaker[string]

	retryBase  time.Duration
	retryCap   time.Duration
	maxRetries uint64
}

// NewResilientClient wraps a chat client with the default resilience policy
func NewResilientClient(inner ports.ChatClient, name string) *ResilientClient {
	return &ResilientClient{
		inner: inner,
		breaker: gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		retryBase:  500 * time.Millisecond,
		retryCap:   8 * time.Second,
		maxRetries: 2,
	}
}

// NewChatClient builds the configured vendor client wrapped in the
// resilience policy. Vendor "stub" returns the deterministic stub unwrapped.
func NewChatClient(cfg config.AIConfig) (ports.ChatClient, error) {
	switch cfg.Vendor {
	case "openai":
		inner, err := NewOpenAIClient(cfg)
		if err != nil {
			return nil, err
		}
		return NewResilientClient(inner, "openai"), nil
	case "anthropic":
		inner, err := NewAnthropicClient(cfg)
		if err != nil {
			return nil, err
		}
		return NewResilientClient(inner, "anthropic"), nil
	case "stub":
		return &StubChatClient{}, nil
	default:
		return nil, fmt.Errorf("unknown AI vendor %q", cfg.Vendor)
	}
}

// ChatCompletion delegates through the breaker and retry policy
func (c *ResilientClient) ChatCompletion(ctx context.Context, prompt string, maxTokens int) (string, error) {
	out, err := c.breaker.Execute(func() (string, error) {
		return c.attempt(ctx, prompt, maxTokens)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: circuit open", core.ErrExternalAIUnavailable)
		}
		return "", err
	}
	return out, nil
}

func (c *ResilientClient) attempt(ctx context.Context, prompt string, maxTokens int) (string, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.retryBase
	expo.MaxInterval = c.retryCap

	var out string
	op := func() error {
		var err error
		out, err = c.inner.ChatCompletion(ctx, prompt, maxTokens)
		if err != nil {
			// Cancellation is the caller's decision, not a vendor fault
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(expo, c.maxRetries), ctx))
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrExternalAIUnavailable, err)
	}
	return out, nil
}
