package chat

// UpdateKind names a session update pushed to observers.
type UpdateKind string

const (
	UpdateMessage UpdateKind = "chat.message"
	UpdateTyping  UpdateKind = "chat.typing"
	UpdateCall    UpdateKind = "call.state"
	UpdateUnread  UpdateKind = "unread"
)

// UnreadSnapshot is the unread state of a user. Total is always the sum of
// ByChannel.
type UnreadSnapshot struct {
	Total     int            `json:"total"`
	ByChannel map[string]int `json:"by_channel"`
}

// Update is a change of session state.
type Update struct {
	Kind      UpdateKind      `json:"kind"`
	ChannelID string          `json:"channel_id,omitempty"`
	PeerID    string          `json:"peer_id,omitempty"`
	Message   *Message        `json:"message,omitempty"`
	Typing    bool            `json:"typing,omitempty"`
	Call      *Call           `json:"call,omitempty"`
	Unread    *UnreadSnapshot `json:"unread,omitempty"`
}
