package surface

import (
	"log/slog"

	"github.com/eykd/prosemark-elements/internal/state"
)

type config struct {
	logger   *slog.Logger
	dispatch func(tr *state.Transaction) error
}

// Option configures a Surface or a Synchronizer.
type Option func(*config)

// WithLogger sets the logger that receives lifecycle diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDispatch replaces a Surface's default dispatch, which applies the
// transaction to the surface's own state.
func WithDispatch(fn func(tr *state.Transaction) error) Option {
	return func(c *config) { c.dispatch = fn }
}

func newConfig(opts []Option) config {
	c := config{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
