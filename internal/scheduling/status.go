package scheduling

import (
	"fmt"

	"github.com/samber/lo"

	"telemed-server/internal/apperror"
	"telemed-server/internal/models"
)

// allowedTransitions lists the next states reachable from each status.
// Every state other than SCHEDULED is terminal.
var allowedTransitions = map[models.AppointmentStatus][]models.AppointmentStatus{
	models.StatusScheduled: {models.StatusCompleted, models.StatusCancelled, models.StatusNoShow},
	models.StatusCompleted: {},
	models.StatusCancelled: {},
	models.StatusNoShow:    {},
}

// AllowedTransitions returns the states reachable from from. Terminal and
// unknown states yield an empty, non-nil slice.
func AllowedTransitions(from models.AppointmentStatus) []models.AppointmentStatus {
	next := allowedTransitions[from]
	out := make([]models.AppointmentStatus, len(next))
	copy(out, next)
	return out
}

// Transition applies the transition table. It returns to when the move is
// allowed and a *TransitionError otherwise.
func Transition(from, to models.AppointmentStatus) (models.AppointmentStatus, error) {
	if !to.Valid() {
		return from, apperror.Validation("status", fmt.Sprintf("invalid appointment status %q", to))
	}
	allowed := AllowedTransitions(from)
	if !lo.Contains(allowed, to) {
		return from, &TransitionError{From: from, To: to, Allowed: allowed}
	}
	return to, nil
}

// TransitionError reports a status change the table does not permit
type TransitionError struct {
	From    models.AppointmentStatus
	To      models.AppointmentStatus
	Allowed []models.AppointmentStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition appointment from %s to %s", e.From, e.To)
}

// ErrorKind implements apperror.Kinded
func (e *TransitionError) ErrorKind() apperror.Kind {
	return apperror.KindConflict
}

// ErrorDetails implements apperror.Detailed
func (e *TransitionError) ErrorDetails() map[string]interface{} {
	return map[string]interface{}{
		"current_status":      e.From,
		"requested_status":    e.To,
		"allowed_transitions": lo.Map(e.Allowed, func(s models.AppointmentStatus, _ int) string { return string(s) }),
	}
}
