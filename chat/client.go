// Package chat keeps per-user chat state (message lists, typing indicators,
// unread counters and call signaling) in sync with events delivered by the
// chat provider.
package chat

import (
	"context"
	"time"
)

// EventType names an event delivered by the chat provider.
type EventType string

const (
	EventMessageNew                 EventType = "message.new"
	EventMessageRead                EventType = "message.read"
	EventTypingStart                EventType = "typing.start"
	EventTypingStop                 EventType = "typing.stop"
	EventNotificationMessageNew     EventType = "notification.message_new"
	EventNotificationChannelUpdated EventType = "notification.channel_updated"
)

// Event is a provider event. UserID is the acting user (sender, reader or
// typist). Message is set for message events.
type Event struct {
	Type      EventType
	ChannelID string
	UserID    string
	Message   *Message
	CreatedAt time.Time
}

// Handler receives provider events. Handlers run on the client's dispatch
// goroutine and must not block.
type Handler func(Event)

// ChannelRef addresses a channel on the provider.
type ChannelRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// ChannelState is a channel as seen by the connected user.
type ChannelState struct {
	ChannelRef
	Members     []string `json:"members"`
	Unread      int      `json:"unread"`
	LastMessage *Message `json:"last_message,omitempty"`
}

// Client is one user's connection to the chat provider.
type Client interface {
	// UserID is the connected user.
	UserID() string

	CreateOrGetChannel(ctx context.Context, otherUserID string) (ChannelRef, error)
	// WatchChannel subscribes the connection to live events of a channel.
	WatchChannel(ctx context.Context, channelID string) error
	// QueryMessages returns up to limit latest messages, oldest first.
	QueryMessages(ctx context.Context, channelID string, limit int) ([]Message, error)
	SendMessage(ctx context.Context, channelID string, msg Message) (Message, error)
	StartTyping(ctx context.Context, channelID string) error
	StopTyping(ctx context.Context, channelID string) error
	// QueryChannels returns up to limit channels the user is a member of,
	// most recently active first, with per-channel unread counts.
	QueryChannels(ctx context.Context, limit int) ([]ChannelState, error)
	MarkRead(ctx context.Context, channelID string) error

	// On registers fn for events of type t and returns a function that
	// removes the registration.
	On(t EventType, fn Handler) (off func())
	Disconnect() error
}

// Connector opens provider connections.
type Connector interface {
	Connect(ctx context.Context, userID string) (Client, error)
}
