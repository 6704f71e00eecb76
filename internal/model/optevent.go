package model

// OptEvent is the optional event-edition overlay threaded through every
// ranking operation. The zero value means "no overlay": records of every
// player on the map count. When set, only records linked to the edition count.
type OptEvent struct {
	Event   *Event
	Edition *EventEdition
}

// NewOptEvent returns an overlay scoped to the given edition.
func NewOptEvent(event *Event, edition *EventEdition) OptEvent {
	return OptEvent{Event: event, Edition: edition}
}

// IsSet reports whether the overlay selects the event-filtered record view.
func (e OptEvent) IsSet() bool {
	return e.Event != nil && e.Edition != nil
}
