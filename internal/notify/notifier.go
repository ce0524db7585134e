package notify

import (
	"context"
	"errors"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Notifier delivers ingestion events.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

type logNotifier struct {
	logger log.Logger
}

func NewLogNotifier(logger log.Logger) Notifier {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &logNotifier{logger: log.With(logger, "component", "notify")}
}

func (n *logNotifier) Notify(_ context.Context, e Event) error {
	logf := level.Info(n.logger)
	if e.Severity == "error" {
		logf = level.Warn(n.logger)
	}
	return logf.Log(
		"event", e.Type,
		"document", e.DocumentID,
		"name", e.Name,
		"status", e.Status,
		"alert", e.AlertID,
		"msg", e.Message,
		"at", e.Timestamp.Format(time.RFC3339),
	)
}

type multi []Notifier

// Multi fans an event out to every notifier. All are attempted; their
// errors are joined.
func Multi(notifiers ...Notifier) Notifier {
	out := make(multi, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (m multi) Notify(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
