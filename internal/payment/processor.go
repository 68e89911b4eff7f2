// Package payment turns provider notifications into exactly-once reward
// grants. Delivery is at-least-once and may race in-game actions on the same
// user; the processed-event marker plus the checkout state machine make the
// apply idempotent.
package payment

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chaosdeck/chaosdeck/internal/catalog"
	"github.com/chaosdeck/chaosdeck/internal/fault"
	"github.com/chaosdeck/chaosdeck/internal/ledger"
	"github.com/chaosdeck/chaosdeck/internal/reward"
	"github.com/chaosdeck/chaosdeck/internal/shared/logger"
	"github.com/chaosdeck/chaosdeck/internal/types"
	"go.uber.org/zap"
)

// ErrMalformedEvent is returned for a well-signed payload that does not even
// carry an event id; without one there is nothing to record.
var ErrMalformedEvent = fmt.Errorf("%w: malformed event payload", fault.Validation)

// Event types this processor acts on.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventPaymentFailed     = "payment_intent.payment_failed"
)

// Outcome values stored in the processed-event marker.
const (
	OutcomeFulfilled   = "fulfilled"
	OutcomeFailed      = "failed"
	OutcomeNoOp        = "no_op"
	OutcomeIgnored     = "ignored"
	OutcomeUnknownItem = "unknown_item"
)

// Event is the wire shape of one provider notification.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// ProcessResult is the terminal state of one delivery.
type ProcessResult struct {
	EventID   string             `json:"event_id"`
	Outcome   string             `json:"outcome"`
	Duplicate bool               `json:"duplicate"`
	Grant     *types.GrantResult `json:"grant,omitempty"`
}

// Processor verifies and applies payment notifications.
type Processor struct {
	store      *ledger.Store
	catalog    *catalog.Catalog
	dispatcher *reward.Dispatcher
	secret     string
	tolerance  time.Duration
	now        func() time.Time
}

// NewProcessor wires the processor. tolerance bounds the accepted signature
// timestamp skew; zero disables the check.
func NewProcessor(store *ledger.Store, cat *catalog.Catalog, dispatcher *reward.Dispatcher, secret string, tolerance time.Duration) *Processor {
	return &Processor{
		store:      store,
		catalog:    cat,
		dispatcher: dispatcher,
		secret:     secret,
		tolerance:  tolerance,
		now:        time.Now,
	}
}

// Handle processes one raw delivery. Signature verification happens before
// any state is touched; a marker hit returns the stored outcome without
// re-applying anything.
func (p *Processor) Handle(payload []byte, sigHeader string) (ProcessResult, error) {
	if err := VerifySignature(payload, sigHeader, p.secret, p.tolerance, p.now()); err != nil {
		return ProcessResult{}, err
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil || event.ID == "" {
		return ProcessResult{}, ErrMalformedEvent
	}

	if marker, err := p.store.GetProcessedEvent(event.ID); err == nil {
		return ProcessResult{EventID: event.ID, Outcome: marker.Outcome, Duplicate: true}, nil
	} else if err != ledger.ErrNotFound {
		return ProcessResult{}, err
	}

	switch event.Type {
	case EventCheckoutCompleted:
		return p.handleCompleted(event)
	case EventPaymentFailed:
		return p.handleFailed(event)
	default:
		// Well-signed but not ours: record and ignore so the provider
		// stops redelivering.
		logger.Debug("Ignoring event type", zap.String("type", event.Type), zap.String("event_id", event.ID))
		return p.recordStandalone(event.ID, OutcomeIgnored)
	}
}

func (p *Processor) handleCompleted(event Event) (ProcessResult, error) {
	reference := event.Data.Object.ID
	checkout, err := p.store.GetCheckout(reference)
	if err == ledger.ErrNotFound {
		logger.Warn("Completed event for unknown checkout",
			zap.String("event_id", event.ID), zap.String("reference", reference))
		return p.recordStandalone(event.ID, OutcomeNoOp)
	}
	if err != nil {
		return ProcessResult{}, err
	}
	if checkout.Status != types.CheckoutPending {
		return p.recordStandalone(event.ID, OutcomeNoOp)
	}

	item, ok := p.catalog.Item(checkout.ItemID)
	if !ok {
		// The record points at an item the catalog no longer carries.
		// Fail the checkout so it cannot sit pending forever.
		logger.Error("Checkout references unknown catalog item",
			zap.String("reference", reference), zap.String("item_id", checkout.ItemID))
		return p.settle(event.ID, checkout, types.CheckoutFailed, OutcomeUnknownItem, nil)
	}

	return p.settle(event.ID, checkout, types.CheckoutFulfilled, OutcomeFulfilled, &item)
}

func (p *Processor) handleFailed(event Event) (ProcessResult, error) {
	reference := event.Data.Object.ID
	checkout, err := p.store.GetCheckout(reference)
	if err == ledger.ErrNotFound {
		return p.recordStandalone(event.ID, OutcomeNoOp)
	}
	if err != nil {
		return ProcessResult{}, err
	}
	if checkout.Status != types.CheckoutPending {
		return p.recordStandalone(event.ID, OutcomeNoOp)
	}
	return p.settle(event.ID, checkout, types.CheckoutFailed, OutcomeFailed, nil)
}

// settle runs the checkout transition, the optional reward grant and the
// marker write as one transaction under the target user's lock. Either the
// checkout transitions and the marker lands, or neither does; a crash midway
// cannot grant a reward twice on retry.
func (p *Processor) settle(eventID string, checkout types.Checkout, to types.CheckoutStatus, outcome string, item *catalog.Item) (ProcessResult, error) {
	result := ProcessResult{EventID: eventID, Outcome: outcome}
	err := p.store.WithUser(checkout.UserID, func(tx *sql.Tx) error {
		// Double check under the lock: a concurrent delivery may have won.
		if marker, err := ledger.GetProcessedEventTx(tx, eventID); err == nil {
			result = ProcessResult{EventID: eventID, Outcome: marker.Outcome, Duplicate: true}
			return nil
		} else if err != ledger.ErrNotFound {
			return err
		}

		transitioned, err := ledger.TransitionCheckoutTx(tx, checkout.Reference, to)
		if err != nil {
			return err
		}
		if !transitioned {
			result = ProcessResult{EventID: eventID, Outcome: OutcomeNoOp}
			_, err := ledger.InsertProcessedEventTx(tx, eventID, OutcomeNoOp)
			return err
		}

		if item != nil {
			grant, err := p.dispatcher.GrantTx(tx, checkout.UserID, item.Reward, types.ProvenancePurchased)
			if err != nil {
				return err
			}
			result.Grant = &grant
		}

		if _, err := ledger.InsertProcessedEventTx(tx, eventID, outcome); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return ProcessResult{}, err
	}

	logger.Info("Payment event settled",
		zap.String("event_id", eventID),
		zap.String("reference", checkout.Reference),
		zap.String("outcome", result.Outcome),
		zap.Bool("duplicate", result.Duplicate))
	return result, nil
}

// recordStandalone writes a marker for an event that moves no checkout and
// grants nothing. A lost insert race means another worker settled it; the
// stored outcome wins.
func (p *Processor) recordStandalone(eventID, outcome string) (ProcessResult, error) {
	if err := p.store.RecordEventOutcome(eventID, outcome); err != nil {
		return ProcessResult{}, err
	}
	marker, err := p.store.GetProcessedEvent(eventID)
	if err != nil {
		return ProcessResult{}, err
	}
	return ProcessResult{EventID: eventID, Outcome: marker.Outcome, Duplicate: marker.Outcome != outcome}, nil
}
