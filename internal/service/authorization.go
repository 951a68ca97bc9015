package service

import (
	"fmt"

	"github.com/Shivanand-hulikatti/event-rsvp/internal/model"
)

// CanActOnEvent reports whether actor may perform organiser-only operations on event:
// the actor created the event or holds the admin capability. It never errors;
// callers turn false into model.ErrPermissionDenied.
func CanActOnEvent(actor model.Actor, event *model.Event) bool {
	return CanActForOrganizer(actor, event.OrganizerID)
}

// CanActForOrganizer is CanActOnEvent against a bare organiser id, used when only a
// snapshot of the event survives (archived cancellations of deleted events).
func CanActForOrganizer(actor model.Actor, organizerID string) bool {
	if actor.ID == "" {
		return false
	}
	return actor.ID == organizerID || actor.IsAdmin()
}

func requireEventAccess(actor model.Actor, event *model.Event) error {
	if !CanActOnEvent(actor, event) {
		return fmt.Errorf("%w: only the organiser or an admin can manage event %s", model.ErrPermissionDenied, event.ID)
	}
	return nil
}
