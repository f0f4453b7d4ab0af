package types

import (
	"context"
	"time"
)

// Requester issues a GET for path+query and returns the raw body of a 2xx response.
type Requester interface {
	Get(ctx context.Context, path string, query string, opts *CallOptions) ([]byte, int, error)
}

type CallOptions struct {
	Timeout time.Duration
	Headers map[string]string
}
