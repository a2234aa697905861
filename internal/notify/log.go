package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/sweeney/power-monitor/internal/logic"
)

// LogNotifier writes transitions to the log and always succeeds. It is used
// when no transport is configured, e.g. during bench testing.
type LogNotifier struct {
	log   zerolog.Logger
	texts logic.Texts
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger zerolog.Logger, texts logic.Texts) *LogNotifier {
	return &LogNotifier{log: logger.With().Str("component", "notify").Logger(), texts: texts}
}

// Send logs msg.
func (n *LogNotifier) Send(_ context.Context, msg logic.Message) error {
	n.log.Info().Str("id", msg.ID).Str("state", string(msg.State)).Msg(msg.Text(n.texts))
	return nil
}

// Close is a no-op.
func (n *LogNotifier) Close() error {
	return nil
}
