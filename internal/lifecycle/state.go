// Package lifecycle deploys, verifies and removes the browser service and
// reports which state it is in.
package lifecycle

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ServiceState is where the browser service stands
type ServiceState string

const (
	StateAbsent   ServiceState = "absent"
	StateStarting ServiceState = "starting"
	StateRunning  ServiceState = "running"
	StateFailed   ServiceState = "failed"
	StateRemoved  ServiceState = "removed"
)

func (s ServiceState) String() string {
	return string(s)
}

// Label returns the state for display, e.g. "Running"
func (s ServiceState) Label() string {
	return cases.Title(language.English).String(string(s))
}

// transitions lists the allowed moves between states
var transitions = map[ServiceState][]ServiceState{
	StateAbsent:   {StateStarting, StateRemoved},
	StateStarting: {StateRunning, StateFailed},
	StateRunning:  {StateStarting, StateRemoved},
	StateFailed:   {StateStarting, StateRemoved},
	StateRemoved:  {StateStarting, StateRemoved},
}

// CanTransition reports whether from may move to to
func CanTransition(from, to ServiceState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
