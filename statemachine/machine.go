package statemachine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTransition is wrapped by every rejected transition.
var ErrInvalidTransition = errors.New("invalid transition")

// Transition defines a valid state change and who can perform it
type Transition struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Actor string `json:"actor"`
}

type transitionKey struct {
	From  string
	To    string
	Actor string
}

// Machine is a closed set of states plus the transitions allowed between them.
type Machine struct {
	name        string
	initial     string
	states      []string
	actors      []string
	transitions []Transition
	index       map[transitionKey]bool
}

func newMachine(name, initial string, states []string, transitions []Transition) *Machine {
	m := &Machine{
		name:        name,
		initial:     initial,
		states:      states,
		transitions: transitions,
		index:       make(map[transitionKey]bool, len(transitions)),
	}
	seenActor := map[string]bool{}
	for _, t := range transitions {
		m.index[transitionKey{t.From, t.To, t.Actor}] = true
		if !seenActor[t.Actor] {
			seenActor[t.Actor] = true
			m.actors = append(m.actors, t.Actor)
		}
	}
	return m
}

func (m *Machine) Name() string              { return m.name }
func (m *Machine) Initial() string           { return m.initial }
func (m *Machine) States() []string          { return m.states }
func (m *Machine) Actors() []string          { return m.actors }
func (m *Machine) Transitions() []Transition { return m.transitions }

// Valid reports whether s is one of the machine's states.
func (m *Machine) Valid(s string) bool {
	for _, st := range m.states {
		if st == s {
			return true
		}
	}
	return false
}

func (m *Machine) ValidActor(actor string) bool {
	for _, a := range m.actors {
		if a == actor {
			return true
		}
	}
	return false
}

// ValidTransitionsFrom returns all valid next states from a given state
func (m *Machine) ValidTransitionsFrom(from string) []string {
	var nexts []string
	seen := map[string]bool{}
	for _, t := range m.transitions {
		if t.From == from && !seen[t.To] {
			nexts = append(nexts, t.To)
			seen[t.To] = true
		}
	}
	return nexts
}

func (m *Machine) IsTerminal(s string) bool {
	return m.Valid(s) && len(m.ValidTransitionsFrom(s)) == 0
}

// CanTransition checks if a given actor can move from one state to another
func (m *Machine) CanTransition(from, to, actor string) error {
	if m.index[transitionKey{From: from, To: to, Actor: actor}] {
		return nil
	}
	if !m.Valid(to) {
		return fmt.Errorf("%w: unknown %s status %q", ErrInvalidTransition, m.name, to)
	}
	return fmt.Errorf("%w: %s → %s is not allowed for actor '%s'. Valid transitions from %s are: %s",
		ErrInvalidTransition, from, to, actor, from, m.describeValidFrom(from))
}

func (m *Machine) describeValidFrom(from string) string {
	nexts := m.ValidTransitionsFrom(from)
	if len(nexts) == 0 {
		return "none (terminal state)"
	}
	return strings.Join(nexts, ", ")
}

// Description is the JSON form of a machine served to API clients.
type Description struct {
	Name        string       `json:"name"`
	Initial     string       `json:"initial"`
	States      []string     `json:"states"`
	Terminal    []string     `json:"terminal"`
	Transitions []Transition `json:"transitions"`
}

func (m *Machine) Describe() Description {
	d := Description{
		Name:        m.name,
		Initial:     m.initial,
		States:      m.states,
		Terminal:    []string{},
		Transitions: m.transitions,
	}
	for _, s := range m.states {
		if m.IsTerminal(s) {
			d.Terminal = append(d.Terminal, s)
		}
	}
	return d
}

// All returns every machine the API enforces.
func All() []*Machine {
	return []*Machine{Ride, Verification, Ticket}
}
