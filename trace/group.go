package trace

import (
	"github.com/hashicorp/go-hclog"
)

// Kind identifies what happened to a traced cell or pointer.
type Kind int

const (
	Borrow Kind = iota
	BorrowMut
	Refuse
	Release
	Alloc
	Clone
	Drop
	Free
	Downgrade
	Upgrade
)

func (k Kind) String() string {
	switch k {
	case Borrow:
		return "borrow"
	case BorrowMut:
		return "borrow_mut"
	case Refuse:
		return "refuse"
	case Release:
		return "release"
	case Alloc:
		return "alloc"
	case Clone:
		return "clone"
	case Drop:
		return "drop"
	case Free:
		return "free"
	case Downgrade:
		return "downgrade"
	case Upgrade:
		return "upgrade"
	default:
		return "unknown"
	}
}

// Event represents the information associated with a state transition
// within a Group; It includes the group name, the name of the cell or
// pointer involved, what happened, and the state observed afterwards
// (a borrow state or a reference count, rendered as a string).
type Event struct {
	GroupName string
	Name      string
	Kind      Kind
	State     string
}

// Group represents a collection of named cells and pointers whose
// state transitions are reported to a single callback.
type Group struct {
	name    string
	onEvent func(Event)
}

func NewGroup(name string) *Group {
	return &Group{
		name: name,
	}
}

// Name returns the group's name.
func (this *Group) Name() string {
	return this.name
}

// OnEvent sets a callback function to be invoked on every state
// transition within the Group.
func (this *Group) OnEvent(callback func(Event)) {
	this.onEvent = callback
}

// Emit invokes the OnEvent callback, if set; a nil Group is valid and
// discards every event.
func (this *Group) Emit(name string, kind Kind, state string) {
	if this == nil || this.onEvent == nil {
		return
	}

	this.onEvent(Event{
		GroupName: this.name,
		Name:      name,
		Kind:      kind,
		State:     state,
	})
}

// HCLog returns a callback writing every Event to 'logger'; refusals
// are logged at debug level, everything else at trace level.
func HCLog(logger hclog.Logger) func(Event) {
	return func(event Event) {
		args := []interface{}{
			"group", event.GroupName,
			"name", event.Name,
			"state", event.State,
		}

		if event.Kind == Refuse {
			logger.Debug("access refused", args...)
			return
		}
		logger.Trace(event.Kind.String(), args...)
	}
}
