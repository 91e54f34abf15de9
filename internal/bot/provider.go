// pattern: Imperative Shell

package bot

import (
	"context"
	"sync/atomic"

	"chatgptnvim/internal/config"
	"chatgptnvim/internal/logging"
)

// LoadFunc returns the current credentials.
type LoadFunc func() (config.Credentials, error)

// Provider builds a Client on first use and rebuilds it after MarkStale.
// Apart from MarkStale it must be used from one goroutine at a time.
type Provider struct {
	load   LoadFunc
	opts   Options
	logger *logging.ScopedLogger

	client *Client
	stale  atomic.Bool
}

// NewProvider creates a provider. No credentials are read until the first call.
func NewProvider(load LoadFunc, opts Options, logger *logging.ScopedLogger) *Provider {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Provider{load: load, opts: opts, logger: logger}
}

// MarkStale forces the next call to reload credentials. Safe to call from
// any goroutine.
func (p *Provider) MarkStale() {
	p.stale.Store(true)
}

// ready returns a Client, building one if needed. A client is only
// kept once its first refresh succeeds.
func (p *Provider) ready(ctx context.Context) (*Client, error) {
	if p.stale.Swap(false) && p.client != nil {
		p.logger.Info("credentials changed, rebuilding client")
		p.client = nil
	}
	if p.client != nil {
		return p.client, nil
	}

	creds, err := p.load()
	if err != nil {
		return nil, &BackendError{Op: "load credentials", Err: err}
	}

	c, err := NewClient(creds, p.opts, p.logger)
	if err != nil {
		return nil, err
	}
	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}

	p.client = c
	return c, nil
}

// Query sends one prompt on the current conversation.
func (p *Provider) Query(ctx context.Context, prompt string) (string, error) {
	c, err := p.ready(ctx)
	if err != nil {
		return "", err
	}
	return c.Query(ctx, prompt)
}

// Reset starts a new conversation and refreshes the session.
func (p *Provider) Reset(ctx context.Context) error {
	if p.client == nil || p.stale.Load() {
		_, err := p.ready(ctx)
		return err
	}
	previous := p.client.ConversationID()
	p.client.Reset()
	p.logger.Info("conversation reset", "previous_conversation", previous)
	return p.client.Refresh(ctx)
}
