// Package workflow contains the pure business logic for workflow state
// resolution. Functions here evaluate state names against a descriptor
// without side effects and never fail; malformed input degrades to nil
// or zero values.
package workflow

import "strings"

// QueuedPrefix marks the queued counterpart of a step: a task in state
// "ready_for_<step>" satisfies the step's precondition and awaits action.
const QueuedPrefix = "ready_for_"

// StateDeferred is a reserved non-workflow hold state. It resolves to
// no step and is neither queued, active, nor terminal.
const StateDeferred = "deferred"

// OwnerKind identifies who acts on a workflow step.
type OwnerKind string

const (
	OwnerAgent OwnerKind = "agent"
	OwnerHuman OwnerKind = "human"
	OwnerNone  OwnerKind = "none"
)

// Phase is the position within a step: queued (awaiting pickup) or
// active (currently being worked). Orthogonal to step identity.
type Phase string

const (
	PhaseQueued Phase = "queued"
	PhaseActive Phase = "active"
)

// Transition is an explicit edge in a descriptor. From may be the
// wildcard "*".
type Transition struct {
	From string `mapstructure:"from"`
	To   string `mapstructure:"to"`
}

// Descriptor describes one workflow: its ordered steps, terminal state
// names, optional explicit transition edges, and step ownership.
// Descriptors are immutable after construction.
type Descriptor struct {
	ID             string               `mapstructure:"id"`
	States         []string             `mapstructure:"states"`
	TerminalStates []string             `mapstructure:"terminal_states"`
	Transitions    []Transition         `mapstructure:"transitions"`
	Owners         map[string]OwnerKind `mapstructure:"owners"`
}

// StepRef is a resolved (step, phase) pair.
type StepRef struct {
	Step  string
	Phase Phase
}

// RuntimeState is the derived runtime view of one workflow state.
type RuntimeState struct {
	State               string
	IsAgentClaimable    bool
	RequiresHumanAction bool
	NextActionOwnerKind OwnerKind
	NextActionState     string
}

// hasStep reports whether step is one of the descriptor's states.
func (d *Descriptor) hasStep(step string) bool {
	for _, s := range d.States {
		if s == step {
			return true
		}
	}
	return false
}

// Owner returns the owner kind for a step, defaulting to agent when the
// descriptor carries no entry.
func (d *Descriptor) Owner(step string) OwnerKind {
	if kind, ok := d.Owners[step]; ok && kind != "" {
		return kind
	}
	return OwnerAgent
}

// ResolveStep maps a workflow state name to its typed (step, phase)
// pair. Terminal names, "deferred", empty, and unrecognized names all
// resolve to nil. The mapping is bijective per phase: every step has
// exactly one queued name and one active name.
func ResolveStep(d *Descriptor, state string) *StepRef {
	if d == nil || state == "" {
		return nil
	}
	if rest, ok := strings.CutPrefix(state, QueuedPrefix); ok {
		if d.hasStep(rest) {
			return &StepRef{Step: rest, Phase: PhaseQueued}
		}
		return nil
	}
	if d.hasStep(state) {
		return &StepRef{Step: state, Phase: PhaseActive}
	}
	return nil
}

// QueuedName returns the queued state name for a step.
func QueuedName(step string) string {
	return QueuedPrefix + step
}

// RollbackActivePhase returns the queued counterpart of an active-phase
// state, undoing an in-flight step without losing the step identity.
// Queued, terminal, deferred, and unrecognized states pass through
// unchanged, which makes the function idempotent.
func RollbackActivePhase(d *Descriptor, state string) string {
	ref := ResolveStep(d, state)
	if ref == nil || ref.Phase != PhaseActive {
		return state
	}
	return QueuedName(ref.Step)
}

// IsTerminal reports whether state is one of the descriptor's terminal
// names.
func IsTerminal(d *Descriptor, state string) bool {
	if d == nil {
		return false
	}
	for _, t := range d.TerminalStates {
		if t == state {
			return true
		}
	}
	return false
}

// CanTransition reports whether the descriptor allows moving from one
// state to another. With no explicit edge list every transition is
// allowed; otherwise the edge (or a wildcard "*" from-edge) must exist.
func CanTransition(d *Descriptor, from, to string) bool {
	if d == nil || to == "" {
		return false
	}
	if len(d.Transitions) == 0 {
		return true
	}
	for _, tr := range d.Transitions {
		if tr.To != to {
			continue
		}
		if tr.From == "*" || tr.From == from {
			return true
		}
	}
	return false
}

// DeriveRuntimeState derives the runtime flags for a state: whether an
// agent may claim it, whether it is waiting on a human, and who acts
// next. Active-phase and unresolved states carry no next action.
func DeriveRuntimeState(d *Descriptor, state string) RuntimeState {
	rs := RuntimeState{State: state, NextActionOwnerKind: OwnerNone}
	ref := ResolveStep(d, state)
	if ref == nil || ref.Phase != PhaseQueued {
		return rs
	}
	owner := d.Owner(ref.Step)
	rs.NextActionOwnerKind = owner
	// Acting on a queued state moves the task into the step itself.
	rs.NextActionState = ref.Step
	switch owner {
	case OwnerHuman:
		rs.RequiresHumanAction = true
	default:
		rs.IsAgentClaimable = true
	}
	return rs
}

// Builtin returns the default workflow shipped with loom: planning →
// implementation → review → shipment, closing at shipped or abandoned.
// Shipment requires a human; every other step defaults to agent.
func Builtin() *Descriptor {
	return &Descriptor{
		ID:             "default",
		States:         []string{"planning", "implementation", "review", "shipment"},
		TerminalStates: []string{"shipped", "abandoned"},
		Owners: map[string]OwnerKind{
			"shipment": OwnerHuman,
		},
	}
}
