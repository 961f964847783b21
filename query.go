package madness

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"

	"github.com/ausimian/madness/config"
	"github.com/ausimian/madness/internal/cache"
	"github.com/ausimian/madness/internal/query"
	"github.com/ausimian/madness/pkg/metrics"
)

// Client runs one configured set of questions against the network. It is
// safe to call Stream on a Client more than once; each call starts a
// fresh round of workers against the current interface set.
type Client struct {
	questions []Question
	cfg       *config.Config
	sockCfg   config.SocketConfig
	cache     *cache.Cache
	metrics   *metrics.Collector
	ownsCache bool
}

// Query returns a Client configured to ask questions, with opts applied
// over the library defaults. The returned Client owns its own cache; call
// Close when done with it to stop the cache's background sweep.
func Query(questions []Question, opts ...Option) (*Client, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	cfg := o.toConfig()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Client{
		questions: questions,
		cfg:       cfg,
		sockCfg:   o.socket,
		cache:     cache.New(clock.New(), nil),
		ownsCache: true,
	}, nil
}

// WithMetrics hands m to the query driver and interface workers of every
// subsequent Stream call, and to passive listeners that Module starts
// after this call. Listeners already running keep their previous
// collector, and the Client's cache, created by Query, records no metrics.
func (c *Client) WithMetrics(m *metrics.Collector) *Client {
	c.metrics = m
	return c
}

// Stream starts one worker per eligible (interface, family) and returns a
// channel of decoded responses. The channel closes once the configured
// timeout elapses or ctx is cancelled; every response the workers see is
// also folded into the Client's cache along the way.
func (c *Client) Stream(ctx context.Context) (<-chan DecodedResponse, error) {
	d := query.New(c.questions, c.cfg, c.sockCfg, c.cache, c.metrics)
	out, err := d.Stream(ctx)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Resolve runs Stream to completion and returns the cache's best-known
// answer to questions afterward, the known-answer-suppressed snapshot
// rather than the raw sequence of response messages Stream delivers.
func Resolve(ctx context.Context, questions []Question, opts ...Option) ([]ResourceRecord, error) {
	c, err := Query(questions, opts...)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	out, err := c.Stream(ctx)
	if err != nil {
		return nil, err
	}
	for range out {
		// drain; every message is already folded into the cache as it
		// arrives, so Resolve only needs Stream to run to completion.
	}

	return c.cache.Lookup(ctx, questions, FamilyAny, -1)
}

// Close releases the Client's cache. Safe to call once; a Client must not
// be used afterward.
func (c *Client) Close() {
	if c.ownsCache {
		c.cache.Close()
	}
}
