package chat

import "github.com/pkg/errors"

// CallState is the per-channel call signaling state of one participant.
type CallState string

const (
	CallIdle               CallState = "idle"
	CallInvitationSent     CallState = "invitation_sent"
	CallInvitationReceived CallState = "invitation_received"
	CallWaitingRoom        CallState = "waiting_room"
	CallInCall             CallState = "in_call"
)

var (
	ErrCallInProgress = errors.New("a call is already in progress")
	ErrNoIncomingCall = errors.New("there is no incoming call to accept")
)

// Call is a snapshot of a CallMachine.
type Call struct {
	State      CallState `json:"state"`
	CallID     string    `json:"call_id,omitempty"`
	Initiator  bool      `json:"initiator"`
	CallerID   string    `json:"caller_id,omitempty"`
	CallerName string    `json:"caller_name,omitempty"`
}

// CallMachine tracks call signaling for one side of a channel. Termination is
// local: each side resets to idle on its own and no message is exchanged.
// A CallMachine is not safe for concurrent use.
type CallMachine struct {
	call Call
}

// NewCallMachine returns an idle machine.
func NewCallMachine() CallMachine {
	return CallMachine{call: Call{State: CallIdle}}
}

// Snapshot returns the current state.
func (m *CallMachine) Snapshot() Call {
	return m.call
}

// Invite moves an idle caller to InvitationSent for callID.
func (m *CallMachine) Invite(callID, callerID, callerName string) error {
	if m.call.State != CallIdle {
		return ErrCallInProgress
	}
	m.call = Call{
		State:      CallInvitationSent,
		CallID:     callID,
		Initiator:  true,
		CallerID:   callerID,
		CallerName: callerName,
	}
	return nil
}

// InviteDelivered moves the caller into the waiting room once the invitation
// for callID is published. It reports whether the state changed.
func (m *CallMachine) InviteDelivered(callID string) bool {
	if m.call.State != CallInvitationSent || m.call.CallID != callID {
		return false
	}
	m.call.State = CallWaitingRoom
	return true
}

// InviteFailed returns the caller to idle when publishing callID failed.
func (m *CallMachine) InviteFailed(callID string) bool {
	if m.call.State != CallInvitationSent || m.call.CallID != callID {
		return false
	}
	m.call = Call{State: CallIdle}
	return true
}

// ReceiveInvite records an incoming invitation. Invitations arriving while
// another call is active are ignored.
func (m *CallMachine) ReceiveInvite(sig CallSignal) bool {
	if m.call.State != CallIdle || sig.CallID == "" {
		return false
	}
	m.call = Call{
		State:      CallInvitationReceived,
		CallID:     sig.CallID,
		CallerID:   sig.CallerID,
		CallerName: sig.CallerName,
	}
	return true
}

// PendingInvite returns the id of the invitation awaiting an answer.
func (m *CallMachine) PendingInvite() (string, error) {
	if m.call.State != CallInvitationReceived {
		return "", ErrNoIncomingCall
	}
	return m.call.CallID, nil
}

// Join moves the receivee into the call after its acceptance for callID was
// published.
func (m *CallMachine) Join(callID string) bool {
	if m.call.State != CallInvitationReceived || m.call.CallID != callID {
		return false
	}
	m.call.State = CallInCall
	return true
}

// ReceiveAccepted moves a waiting caller into the call when the acceptance
// carries the caller's pending call id.
func (m *CallMachine) ReceiveAccepted(sig CallSignal) bool {
	if !m.call.Initiator || !sig.Accepted || sig.CallID != m.call.CallID {
		return false
	}
	if m.call.State != CallWaitingRoom && m.call.State != CallInvitationSent {
		return false
	}
	m.call.State = CallInCall
	return true
}

// Decline drops an incoming invitation.
func (m *CallMachine) Decline() bool {
	if m.call.State != CallInvitationReceived {
		return false
	}
	m.call = Call{State: CallIdle}
	return true
}

// End resets to idle. Ending an idle machine is a no-op.
func (m *CallMachine) End() bool {
	if m.call.State == CallIdle {
		return false
	}
	m.call = Call{State: CallIdle}
	return true
}
