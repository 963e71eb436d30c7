// Package notify delivers progress celebrations outside the request that
// produced them.
package notify

import (
	"context"
	"log/slog"

	"finmentor/internal/progress"
)

type logNotifier struct {
	log *slog.Logger
}

func Log(logger *slog.Logger) progress.Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return logNotifier{log: logger}
}

func (n logNotifier) Notify(_ context.Context, c progress.Celebration) {
	n.log.Info("celebration",
		"kind", string(c.Kind),
		"user_id", c.UserID,
		"title", c.Title,
		"description", c.Description,
	)
}

type multi []progress.Notifier

// Multi fans a celebration out to every non-nil notifier in order.
func Multi(notifiers ...progress.Notifier) progress.Notifier {
	var out multi
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (m multi) Notify(ctx context.Context, c progress.Celebration) {
	for _, n := range m {
		n.Notify(ctx, c)
	}
}
