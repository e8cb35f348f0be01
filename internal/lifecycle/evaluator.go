// Package lifecycle derives a parking slot's display state and the actions a
// viewer may take on it, from the slot's current reservation and the clock.
// It is the single place this derivation lives; every handler and view goes
// through Evaluate rather than re-deriving status inline.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmarxie/smart-parking/internal/domain"
)

var (
	// ErrInvalidReservationState is returned for a malformed interval
	// (start_time >= end_time). The evaluator never guesses.
	ErrInvalidReservationState = errors.New("invalid reservation state: start_time must be before end_time")

	// ErrUnknownStatus is returned for a status value outside the known set.
	ErrUnknownStatus = errors.New("unknown reservation status")
)

type Action string

const (
	ActionReserve Action = "RESERVE"
	ActionCancel  Action = "CANCEL"
	ActionConfirm Action = "CONFIRM"
	ActionDecline Action = "DECLINE"
)

// Labels a slot can present. PENDING/CONFIRMED/OCCUPIED/COMPLETED and
// PENDING/EXPIRED are one-way with respect to the clock: re-evaluating with
// a later now never moves a slot backward through either chain.
const (
	LabelAvailable = "AVAILABLE"
	LabelPending   = "PENDING"
	LabelConfirmed = "CONFIRMED"
	LabelOccupied  = "OCCUPIED"
	LabelCompleted = "COMPLETED"
	LabelExpired   = "EXPIRED"
	LabelCancelled = "CANCELLED"
)

var colorClasses = map[string]string{
	LabelAvailable: "success",
	LabelPending:   "warning",
	LabelConfirmed: "info",
	LabelOccupied:  "danger",
	LabelCompleted: "secondary",
	LabelExpired:   "secondary",
	LabelCancelled: "secondary",
}

// Viewer identifies who is looking at the slot. The role decides whether
// administrative actions (CONFIRM/DECLINE) are offered; the id decides
// whether owner actions (CANCEL) are.
type Viewer struct {
	UserID int
	Role   domain.Role
}

func (v Viewer) isAdmin() bool {
	return v.Role == domain.RoleAdmin
}

type Evaluation struct {
	Label      string   `json:"label"`
	ColorClass string   `json:"color_class"`
	Actions    []Action `json:"actions"`
}

// Evaluator holds the one policy knob: how long before start_time a
// not-yet-started reservation can still be cancelled. Zero means
// cancellation is allowed right up to the start.
type Evaluator struct {
	CancellationWindow time.Duration
}

// Evaluate derives the slot state for a viewer at instant now. res is the
// slot's current reservation, nil when there is none; slotOccupied is the
// slot's external occupancy flag. The function is pure: no I/O, no hidden
// state, identical inputs give identical output.
func (e Evaluator) Evaluate(res *domain.Reservation, slotOccupied bool, now time.Time, viewer Viewer) (Evaluation, error) {
	if res == nil {
		if slotOccupied {
			return result(LabelOccupied), nil
		}
		return result(LabelAvailable, ActionReserve), nil
	}

	if !res.StartTime.Before(res.EndTime) {
		return Evaluation{}, fmt.Errorf("%w: start=%s end=%s", ErrInvalidReservationState,
			res.StartTime.Format(time.RFC3339), res.EndTime.Format(time.RFC3339))
	}

	switch res.Status {
	case domain.ReservationPending:
		// Expiry wins over ownership: a pending reservation past its end
		// is EXPIRED for every viewer.
		if now.After(res.EndTime) {
			return result(LabelExpired), nil
		}
		var actions []Action
		if viewer.isAdmin() {
			actions = append(actions, ActionConfirm, ActionDecline)
		}
		if viewer.UserID == res.UserID || viewer.isAdmin() {
			actions = append(actions, ActionCancel)
		}
		return result(LabelPending, actions...), nil

	case domain.ReservationConfirmed:
		if now.After(res.EndTime) {
			return result(LabelCompleted), nil
		}
		if now.Before(res.StartTime) {
			// Upcoming. The owner (or an admin) may cancel until the
			// cancellation window before start.
			var actions []Action
			deadline := res.StartTime.Add(-e.CancellationWindow)
			if (viewer.UserID == res.UserID || viewer.isAdmin()) && now.Before(deadline) {
				actions = append(actions, ActionCancel)
			}
			return result(LabelConfirmed, actions...), nil
		}
		// Within [start_time, end_time]: slot actively in use.
		return result(LabelOccupied), nil

	case domain.ReservationCancelled:
		// A cancelled reservation no longer claims the slot.
		if slotOccupied {
			return result(LabelOccupied), nil
		}
		return result(LabelAvailable, ActionReserve), nil

	case domain.ReservationCompleted:
		return result(LabelCompleted), nil

	case domain.ReservationExpired:
		return result(LabelExpired), nil
	}

	return Evaluation{}, fmt.Errorf("%w: %q", ErrUnknownStatus, res.Status)
}

// CanCancel reports whether the viewer may cancel the reservation at now,
// per the same policy Evaluate applies.
func (e Evaluator) CanCancel(res *domain.Reservation, now time.Time, viewer Viewer) (bool, error) {
	eval, err := e.Evaluate(res, false, now, viewer)
	if err != nil {
		return false, err
	}
	for _, a := range eval.Actions {
		if a == ActionCancel {
			return true, nil
		}
	}
	return false, nil
}

func result(label string, actions ...Action) Evaluation {
	if actions == nil {
		actions = []Action{}
	}
	return Evaluation{Label: label, ColorClass: colorClasses[label], Actions: actions}
}
