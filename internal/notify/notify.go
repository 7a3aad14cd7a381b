// Package notify delivers notifications to content owners, claimants,
// respondents, and the legal team through pluggable sinks.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the event being announced.
type Kind string

const (
	KindLegalEscalation      Kind = "legal_escalation"
	KindContentRemoved       Kind = "content_removed"
	KindUserWarned           Kind = "user_warned"
	KindUserSuspended        Kind = "user_suspended"
	KindUserBanned           Kind = "user_banned"
	KindTakedownExecuted     Kind = "takedown_executed"
	KindCounterNoticeFiled   Kind = "counter_notice_filed"
	KindRestorationScheduled Kind = "restoration_scheduled"
	KindContentRestored      Kind = "content_restored"
	KindQuarantined          Kind = "content_quarantined"
)

// Notification is one message. Recipient is an account id; Email is set
// when the recipient is known only by address (claimants, respondents).
type Notification struct {
	ID          string            `json:"id"`
	Kind        Kind              `json:"kind"`
	Recipient   string            `json:"recipient,omitempty"`
	Email       string            `json:"email,omitempty"`
	Subject     string            `json:"subject"`
	Body        string            `json:"body"`
	ReferenceID string            `json:"reference_id"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// IsLegal reports whether the notification is addressed to the legal team.
func (n Notification) IsLegal() bool {
	return n.Kind == KindLegalEscalation
}

// Sink delivers a notification. Implementations must be safe for
// concurrent use.
type Sink interface {
	Send(ctx context.Context, n Notification) error
}

// ErrNoRecipient is returned by sinks that cannot address a notification.
var ErrNoRecipient = errors.New("notification has no deliverable recipient")

// Prepare assigns an id and timestamp when missing.
func Prepare(n Notification, now time.Time) Notification {
	if n.ID == "" {
		n.ID = uuid.Must(uuid.NewV7()).String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	return n
}

// Fanout sends to every sink and joins their errors. One failing sink does
// not stop delivery to the others. A Notifier over a Fanout retries each
// member separately.
type Fanout []Sink

func (f Fanout) Send(ctx context.Context, n Notification) error {
	var errs []error
	for _, sink := range f {
		if err := sink.Send(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
