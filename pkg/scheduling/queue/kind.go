package queue

import (
	"fmt"
	"strings"
)

// Kind names a queue implementation for configuration.
type Kind int

const (
	// FIFO is a linked-list queue, bounded when a capacity is set.
	FIFO Kind = iota
	// Priority orders by due time, priority and insertion order.
	Priority
	// Synchronous hands tasks directly to idle takers.
	Synchronous
	// WorkStealing uses one private deque per worker.
	WorkStealing
)

func (k Kind) String() string {
	switch k {
	case FIFO:
		return "fifo"
	case Priority:
		return "priority"
	case Synchronous:
		return "synchronous"
	case WorkStealing:
		return "stealing"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "fifo", "":
		*k = FIFO
	case "priority", "delay":
		*k = Priority
	case "synchronous", "handoff":
		*k = Synchronous
	case "stealing", "work-stealing":
		*k = WorkStealing
	default:
		return fmt.Errorf("unknown queue kind %q", text)
	}
	return nil
}

// New builds a queue of the given kind. capacity applies to FIFO and
// Priority; slots applies to WorkStealing.
func New(kind Kind, capacity, slots int) Queue {
	switch kind {
	case Priority:
		return NewPriority(capacity)
	case Synchronous:
		return NewSynchronous()
	case WorkStealing:
		return NewStealing(slots)
	default:
		return NewFIFO(capacity)
	}
}
