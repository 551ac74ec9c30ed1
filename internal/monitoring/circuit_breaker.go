package monitoring

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/atomport/solver/internal/chains"
	"github.com/atomport/solver/internal/model"
	"github.com/atomport/solver/internal/utils/logger"
)

type CircuitBreakerConfig struct {
	MaxRequests                 uint32
	Interval                    time.Duration
	Timeout                     time.Duration
	ConsecutiveFailureThreshold int
}

var DefaultCircuitBreakerConfig = CircuitBreakerConfig{
	MaxRequests:                 3,
	Interval:                    time.Minute,
	Timeout:                     30 * time.Second,
	ConsecutiveFailureThreshold: 5,
}

// CircuitBreakerAdapter wraps a chains.Adapter so a flapping RPC node stops
// receiving calls for a while instead of slowing every saga down. Read
// paths and write paths share one breaker: if the node is down, it is down
// for both.
type CircuitBreakerAdapter struct {
	wrapped        chains.Adapter
	circuitBreaker *gobreaker.CircuitBreaker
	metrics        *SolverMetrics
	logger         *logger.Logger
}

func NewCircuitBreakerAdapter(wrapped chains.Adapter, config CircuitBreakerConfig, metrics *SolverMetrics, logger *logger.Logger) *CircuitBreakerAdapter {
	cb := &CircuitBreakerAdapter{
		wrapped: wrapped,
		metrics: metrics,
		logger:  logger,
	}

	settings := gobreaker.Settings{
		Name:        wrapped.Network() + "_rpc",
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(config.ConsecutiveFailureThreshold)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state change", map[string]string{
				"service": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			metrics.circuitBreakerOpen.WithLabelValues(wrapped.Network()).Set(float64(to))
		},
	}

	cb.circuitBreaker = gobreaker.NewCircuitBreaker(settings)
	return cb
}

func (c *CircuitBreakerAdapter) Network() string {
	return c.wrapped.Network()
}

func (c *CircuitBreakerAdapter) Type() model.NetworkType {
	return c.wrapped.Type()
}

func (c *CircuitBreakerAdapter) observe(method string, fn func() (interface{}, error)) (interface{}, error) {
	start := time.Now()
	out, err := c.circuitBreaker.Execute(fn)

	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordRPC(c.wrapped.Network(), method, status, time.Since(start).Seconds())
	return out, err
}

func (c *CircuitBreakerAdapter) BuildTransaction(ctx context.Context, req *chains.TransactionRequest, nonce uint64, fee *chains.Fee) (*chains.UnsignedTx, error) {
	out, err := c.observe("build_transaction", func() (interface{}, error) {
		return c.wrapped.BuildTransaction(ctx, req, nonce, fee)
	})
	if err != nil {
		return nil, err
	}
	return out.(*chains.UnsignedTx), nil
}

func (c *CircuitBreakerAdapter) EstimateFee(ctx context.Context, req *chains.TransactionRequest) (*chains.Fee, error) {
	out, err := c.observe("estimate_fee", func() (interface{}, error) {
		return c.wrapped.EstimateFee(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return out.(*chains.Fee), nil
}

func (c *CircuitBreakerAdapter) NextNonce(ctx context.Context, address string) (uint64, error) {
	out, err := c.observe("next_nonce", func() (interface{}, error) {
		return c.wrapped.NextNonce(ctx, address)
	})
	if err != nil {
		return 0, err
	}
	return out.(uint64), nil
}

func (c *CircuitBreakerAdapter) Simulate(ctx context.Context, tx *chains.SignedTx) error {
	_, err := c.observe("simulate", func() (interface{}, error) {
		return nil, c.wrapped.Simulate(ctx, tx)
	})
	return err
}

func (c *CircuitBreakerAdapter) Publish(ctx context.Context, tx *chains.SignedTx) (string, error) {
	out, err := c.observe("publish", func() (interface{}, error) {
		return c.wrapped.Publish(ctx, tx)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (c *CircuitBreakerAdapter) GetReceipt(ctx context.Context, txID string) (*chains.Receipt, error) {
	out, err := c.observe("get_receipt", func() (interface{}, error) {
		return c.wrapped.GetReceipt(ctx, txID)
	})
	if err != nil {
		return nil, err
	}
	return out.(*chains.Receipt), nil
}

func (c *CircuitBreakerAdapter) LastConfirmedBlock(ctx context.Context) (uint64, error) {
	out, err := c.observe("last_confirmed_block", func() (interface{}, error) {
		return c.wrapped.LastConfirmedBlock(ctx)
	})
	if err != nil {
		return 0, err
	}
	return out.(uint64), nil
}

func (c *CircuitBreakerAdapter) GetEvents(ctx context.Context, fromBlock, toBlock uint64) (*chains.EventBatch, error) {
	out, err := c.observe("get_events", func() (interface{}, error) {
		return c.wrapped.GetEvents(ctx, fromBlock, toBlock)
	})
	if err != nil {
		return nil, err
	}
	return out.(*chains.EventBatch), nil
}
