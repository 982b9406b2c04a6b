package sequencer

import (
	"fmt"

	"github.com/agrimarket/agridash/types"
)

// State is a step of the transaction sequence.
type State uint8

const (
	StateIdle State = iota
	StateAwaitingApproveSignature
	StateAwaitingApproveConfirmation
	StateAwaitingActionSignature
	StateAwaitingActionConfirmation
	StateCompleted
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:                        "idle",
	StateAwaitingApproveSignature:    "awaiting_approve_signature",
	StateAwaitingApproveConfirmation: "awaiting_approve_confirmation",
	StateAwaitingActionSignature:     "awaiting_action_signature",
	StateAwaitingActionConfirmation:  "awaiting_action_confirmation",
	StateCompleted:                   "completed",
	StateFailed:                      "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for st, name := range stateNames {
		if name == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown sequencer state %q", text)
}

// Resting reports whether a new sequence may be admitted from s.
func (s State) Resting() bool {
	return s == StateIdle || s == StateCompleted || s == StateFailed
}

// Status is a point-in-time view of the sequencer.
type Status struct {
	State   State                `json:"state"`
	Pending *types.PendingIntent `json:"pending,omitempty"`
	Approve *types.TxHandle      `json:"approve,omitempty"`
	Action  *types.TxHandle      `json:"action,omitempty"`
	Error   string               `json:"error,omitempty"`
}

func (s Status) copy() Status {
	out := s
	if s.Approve != nil {
		h := *s.Approve
		out.Approve = &h
	}
	if s.Action != nil {
		h := *s.Action
		out.Action = &h
	}
	return out
}

// Unresolved returns the submitted handles whose confirmation was never
// observed.
func (s Status) Unresolved() []types.TxHandle {
	var out []types.TxHandle
	for _, h := range []*types.TxHandle{s.Approve, s.Action} {
		if h != nil && !h.Status.Resolved() {
			out = append(out, *h)
		}
	}
	return out
}

// Result is the outcome of one Execute call.
type Result struct {
	IntentID        string               `json:"intentId"`
	State           State                `json:"state"`
	Pending         *types.PendingIntent `json:"pending,omitempty"`
	Approve         *types.TxHandle      `json:"approve,omitempty"`
	Action          *types.TxHandle      `json:"action,omitempty"`
	ApprovalSkipped bool                 `json:"approvalSkipped"`
	Err             error                `json:"-"`
}

// StateChange is the payload of EventStateChange.
type StateChange struct {
	IntentID string           `json:"intentId"`
	Kind     types.IntentKind `json:"kind"`
	From     State            `json:"from"`
	To       State            `json:"to"`
	Status   Status           `json:"status"`
}
