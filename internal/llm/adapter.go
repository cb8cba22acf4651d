package llm

import "context"

// Client is the contract every model backend satisfies.
// Stream generates a completion for prompt and invokes onToken once per
// fragment, in emission order. It returns when the model signals completion,
// when ctx is done, or when onToken returns an error; in the last case that
// error is returned as-is. A sequence is consumed at most once per call.
type Client interface {
	Stream(ctx context.Context, prompt string, onToken func(string) error) error
}

// Backend is a Client that can also report liveness and installed models.
type Backend interface {
	Client
	Ready(ctx context.Context) bool
	Models(ctx context.Context) ([]string, error)
}
