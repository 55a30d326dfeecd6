package peer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anthanhphan/go-shard-ring/internal/node/domain"
	"github.com/anthanhphan/go-shard-ring/internal/node/port"
	"github.com/anthanhphan/go-shard-ring/pkg/resilience"
	"github.com/anthanhphan/go-shard-ring/pkg/ring"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/gofiber/fiber/v2"
)

// NodePath is the route that accepts records already routed to their owner.
const NodePath = "/api/data/node"

// Config tunes inter-node forwarding.
type Config struct {
	Timeout time.Duration
	Breaker resilience.CircuitBreakerConfig
}

// Client forwards records to their owner over HTTP. Each peer address has its
// own circuit breaker so one unreachable peer does not slow writes bound for
// the others.
type Client struct {
	cfg      Config
	breakers *resilience.BreakerGroup
	metrics  port.Metrics
}

// Ensure Client implements port.Forwarder.
var _ port.Forwarder = (*Client)(nil)

func NewClient(cfg Config, metrics port.Metrics) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if metrics == nil {
		metrics = port.NopMetrics()
	}
	if cfg.Breaker.OnStateChange == nil {
		cfg.Breaker.OnStateChange = func(name string, from, to resilience.CircuitBreakerState) {
			logger.Warnw("Peer circuit breaker changed state", "peer", name, "from", string(from), "to", string(to))
		}
	}
	return &Client{
		cfg:      cfg,
		breakers: resilience.NewBreakerGroup(cfg.Breaker),
		metrics:  metrics,
	}
}

// Forward posts record to owner and relays its answer. It is not retried;
// transport errors, non-2xx answers and an open breaker all surface as
// port.ErrForwardFailed.
func (c *Client) Forward(ctx context.Context, owner ring.Node, record domain.Record, requestID string) (*port.ForwardResult, error) {
	start := time.Now()
	result, err := c.forward(ctx, owner, record, requestID)
	c.metrics.ObserveForward(owner.Name, time.Since(start), err)
	return result, err
}

func (c *Client) forward(ctx context.Context, owner ring.Node, record domain.Record, requestID string) (*port.ForwardResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", port.ErrForwardFailed, err)
	}

	var result *port.ForwardResult
	err := c.breakers.Get(owner.Addr()).Execute(ctx, func(ctx context.Context) error {
		res, err := c.post(ctx, owner, record, requestID)
		if err != nil {
			return err
		}
		result = res
		if res.StatusCode >= fiber.StatusInternalServerError {
			return fmt.Errorf("owner %s answered %d", owner.Name, res.StatusCode)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", port.ErrForwardFailed, err)
	}
	if result.StatusCode < fiber.StatusOK || result.StatusCode >= fiber.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: owner %s answered %d", port.ErrForwardFailed, owner.Name, result.StatusCode)
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, owner ring.Node, record domain.Record, requestID string) (*port.ForwardResult, error) {
	timeout := c.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}

	resp := fiber.AcquireResponse()
	defer fiber.ReleaseResponse(resp)

	agent := fiber.Post("http://" + owner.Addr() + NodePath)
	agent.Set(fiber.HeaderXRequestID, requestID)
	agent.JSON(record)
	agent.Timeout(timeout)
	agent.SetResponse(resp)
	if err := agent.Parse(); err != nil {
		return nil, fmt.Errorf("build request to %s: %w", owner.Addr(), err)
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("post to %s: %w", owner.Addr(), errors.Join(errs...))
	}

	return &port.ForwardResult{
		StatusCode:  code,
		ContentType: string(resp.Header.ContentType()),
		Body:        body,
	}, nil
}

// Prune drops breakers of peers that are no longer members.
func (c *Client) Prune(members []ring.Node) {
	keep := make(map[string]struct{}, len(members))
	for _, n := range members {
		keep[n.Addr()] = struct{}{}
	}
	for _, name := range c.breakers.Names() {
		if _, ok := keep[name]; !ok {
			c.breakers.Forget(name)
		}
	}
}
