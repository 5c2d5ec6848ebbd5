// Package session holds per-conversation state and its storage drivers.
//
// A session owns exactly one order draft and at most one live payment
// attempt. State survives across messages within the session TTL and is
// never shared across customers.
package session

import (
	"time"

	"github.com/teralab/chatorder/internal/order"
	"github.com/teralab/chatorder/internal/payment"
)

// Step names one position in the conversation flow.
type Step string

const (
	StepContactInfo       Step = "contact-info"
	StepCity              Step = "city"
	StepAddress           Step = "address"
	StepPhone             Step = "phone"
	StepSummary           Step = "summary"
	StepPaymentMethod     Step = "payment-method"
	StepPaymentProcessing Step = "payment-processing"
	StepPaymentCompleted  Step = "payment-completed"
	StepPaymentFailed     Step = "payment-failed"
	StepErrorRecovery     Step = "error-recovery"
)

// Terminal reports whether the conversation is finished at s.
func (s Step) Terminal() bool { return s == StepPaymentCompleted }

// Data is the serializable state of one conversational purchase attempt.
type Data struct {
	ID          string    `json:"id"`
	CurrentStep Step      `json:"current_step"`
	StartedAt   time.Time `json:"started_at"`
	LastUpdated time.Time `json:"last_updated"`

	// Version increases on every update, for optimistic locking in
	// multi-instance deployments.
	Version int64 `json:"version"`

	Order order.Draft `json:"order"`

	// Payment is the live attempt, if any. Superseded attempts move to
	// PriorAttempts for audit.
	Payment        *payment.Attempt  `json:"payment,omitempty"`
	PriorAttempts  []payment.Attempt `json:"prior_attempts,omitempty"`
	PaymentPending bool              `json:"payment_pending"`

	// RecoverStep is where the conversation resumes after error-recovery.
	RecoverStep Step `json:"recover_step,omitempty"`
}

// Clone returns a deep copy of d. Stores hand out clones so callers never
// alias stored state.
func (d *Data) Clone() *Data {
	if d == nil {
		return nil
	}
	out := *d
	out.Order.Items = append([]order.Line(nil), d.Order.Items...)
	out.PriorAttempts = append([]payment.Attempt(nil), d.PriorAttempts...)
	if d.Payment != nil {
		p := *d.Payment
		out.Payment = &p
	}
	return &out
}

// SupersedePayment moves the live attempt (if any) into the audit list and
// installs the new one.
func (d *Data) SupersedePayment(next *payment.Attempt) {
	if d.Payment != nil {
		d.PriorAttempts = append(d.PriorAttempts, *d.Payment)
	}
	d.Payment = next
}
