package llm

import (
	"context"
	"sync"
)

// StubChatClient is a deterministic chat client for tests and local
// development. Set Response or Err to shape its behaviour.
type StubChatClient struct {
	Response string // returned verbatim when set
	Err      error  // returned instead of a completion when set

	mu      sync.Mutex
	Prompts []string // every prompt received, in order
}

func (s *StubChatClient) ChatCompletion(ctx context.Context, prompt string, maxTokens int) (string, error) {
	s.mu.Lock()
	s.Prompts = append(s.Prompts, prompt)
	s.mu.Unlock()

	if s.Err != nil {
		return "", s.Err
	}
	if s.Response != "" {
		return s.Response, nil
	}
	// Default: a well-formed insight payload
	return `{
		"lifestyleActions": ["Take a 20 minute walk after your largest meal"],
		"nutrition": ["Add one serving of leafy greens daily"],
		"supplementation": [],
		"medicalReferral": "",
		"medicalUrgency": "none"
	}`, nil
}
