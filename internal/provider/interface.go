package provider

import "context"

// Client is a remote completion service.
type Client interface {
	// Name identifies the backing service, e.g. "openai".
	Name() string

	// Complete sends one request and returns the full response.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// Health checks that the service is reachable with the configured key.
	Health(ctx context.Context) error
}
