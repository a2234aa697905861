package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/sweeney/power-monitor/internal/logic"
)

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failed sends that opens the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before allowing a probe.
	OpenTimeout time.Duration
}

// Breaker wraps a Notifier with a circuit breaker. While open, Send fails
// fast with gobreaker.ErrOpenState, which callers treat like any other
// failed send.
type Breaker struct {
	next Notifier
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker wraps next. A zero MaxFailures disables tripping.
func NewBreaker(next Notifier, cfg BreakerConfig, logger zerolog.Logger) *Breaker {
	return &Breaker{
		next: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "notify",
			Timeout: cfg.OpenTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return cfg.MaxFailures > 0 && c.ConsecutiveFailures >= cfg.MaxFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
					Msg("notify breaker state change")
			},
		}),
	}
}

// Send forwards msg through the breaker.
func (b *Breaker) Send(ctx context.Context, msg logic.Message) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Send(ctx, msg)
	})
	return err
}

// State returns the breaker state name: "closed", "half-open" or "open".
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// IsConnected forwards to the wrapped notifier when it reports connectivity.
func (b *Breaker) IsConnected() bool {
	if cs, ok := b.next.(ConnectionStatus); ok {
		return cs.IsConnected()
	}
	return true
}

// Close closes the wrapped notifier.
func (b *Breaker) Close() error {
	return b.next.Close()
}
