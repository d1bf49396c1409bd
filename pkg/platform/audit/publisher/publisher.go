// Package publisher records moderation decisions in the audit log with
// best-effort semantics.
//
// By the time Record is called the decision is already committed in the
// submission store. A failed append is logged and counted but never returned:
// surfacing it would report a decision that happened as one that did not.
package publisher

import (
	"context"
	"log/slog"

	audit "openmediamap/pkg/platform/audit"
	"openmediamap/pkg/requestcontext"
)

// FailureCounter counts audit appends that could not be persisted.
type FailureCounter interface {
	IncAuditAppendFailures()
}

// Publisher appends admin actions to an audit.Store.
type Publisher struct {
	store    audit.Store
	logger   *slog.Logger
	failures FailureCounter
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithFailureCounter sets the metric incremented on append failure.
func WithFailureCounter(c FailureCounter) Option {
	return func(p *Publisher) {
		p.failures = c
	}
}

// New creates a publisher over store.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Record appends one admin action. It returns the stored entry, or nil when
// the append failed; the failure is reported out of band only.
func (p *Publisher) Record(ctx context.Context, adminUsername string, action audit.ActionType, recordID int64) *audit.AdminAction {
	// The request may already be cancelled (client gone) after the decision
	// committed; the audit write should still be attempted.
	ctx = context.WithoutCancel(ctx)

	entry, err := p.store.Append(ctx, adminUsername, action, recordID)
	if err != nil {
		if p.failures != nil {
			p.failures.IncAuditAppendFailures()
		}
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "admin action log failed",
				"admin_username", adminUsername,
				"action_type", string(action),
				"record_id", recordID,
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		return nil
	}

	if p.logger != nil {
		p.logger.InfoContext(ctx, "admin action recorded",
			"log_type", "audit",
			"admin_username", adminUsername,
			"action_type", string(action),
			"record_id", recordID,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return entry
}

// Recent proxies to the underlying store.
func (p *Publisher) Recent(ctx context.Context, limit int) ([]*audit.AdminAction, error) {
	return p.store.Recent(ctx, limit)
}
