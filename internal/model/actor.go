package model

// Capability is a privilege an actor may hold.
type Capability string

// CapabilityAdmin lets an actor act on any event.
const CapabilityAdmin Capability = "admin"

// Actor is the authenticated user performing an operation.
type Actor struct {
	ID           string
	Capabilities []Capability
}

// Has reports whether the actor holds c.
func (a Actor) Has(c Capability) bool {
	for _, have := range a.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the actor holds the admin capability.
func (a Actor) IsAdmin() bool {
	return a.Has(CapabilityAdmin)
}
