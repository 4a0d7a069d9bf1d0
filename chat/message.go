package chat

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Kind tags the variant carried by a Message.
type Kind string

const (
	KindText         Kind = "text"
	KindCallInvite   Kind = "call_invite"
	KindCallAccepted Kind = "call_accepted"
)

const (
	callInviteText   = "📹 Video call invitation"
	callAcceptedText = "📹 Call accepted - joining now"
)

var (
	ErrEmptyMessage = errors.New("message text is empty")
	ErrMissingCall  = errors.New("call message without call payload")
	ErrUnknownKind  = errors.New("unknown message kind")
)

// CallSignal is the structured payload of call-signaling messages.
type CallSignal struct {
	CallID      string `json:"call_id"`
	CallerID    string `json:"caller_id,omitempty"`
	CallerName  string `json:"caller_name,omitempty"`
	Accepted    bool   `json:"accepted,omitempty"`
	WaitingRoom bool   `json:"waiting_room,omitempty"`
}

// Message is a chat message. Call holds the payload of call kinds and is nil
// for text messages.
type Message struct {
	ID        string      `json:"id"`
	ChannelID string      `json:"channel_id"`
	SenderID  string      `json:"sender_id"`
	Text      string      `json:"text"`
	CreatedAt time.Time   `json:"created_at"`
	Kind      Kind        `json:"kind"`
	Call      *CallSignal `json:"call,omitempty"`
}

// NewText builds a plain text message.
func NewText(text string) Message {
	return Message{Kind: KindText, Text: strings.TrimSpace(text)}
}

// NewCallInvite builds the invitation a caller publishes when starting a call.
func NewCallInvite(callID, callerID, callerName string) Message {
	return Message{
		Kind: KindCallInvite,
		Text: callInviteText,
		Call: &CallSignal{
			CallID:      callID,
			CallerID:    callerID,
			CallerName:  callerName,
			WaitingRoom: true,
		},
	}
}

// NewCallAccepted builds the acceptance the receivee publishes for callID.
func NewCallAccepted(callID, callerID string) Message {
	return Message{
		Kind: KindCallAccepted,
		Text: callAcceptedText,
		Call: &CallSignal{CallID: callID, CallerID: callerID, Accepted: true},
	}
}

// Validate checks that the message is a well formed variant.
func (m Message) Validate() error {
	switch m.Kind {
	case KindText:
		if strings.TrimSpace(m.Text) == "" {
			return ErrEmptyMessage
		}
	case KindCallInvite, KindCallAccepted:
		if m.Call == nil || m.Call.CallID == "" {
			return ErrMissingCall
		}
	default:
		return errors.Wrapf(ErrUnknownKind, "kind %q", m.Kind)
	}
	return nil
}

// IsCall reports whether the message carries call signaling.
func (m Message) IsCall() bool {
	return m.Kind == KindCallInvite || m.Kind == KindCallAccepted
}
