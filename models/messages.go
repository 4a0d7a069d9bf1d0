package models

// Message is the stored form of a chat message.
type Message struct {
	ChannelID string       `dynamodbav:"channel_id" json:"channel_id"` // ✅ Partition Key
	CreatedAt string       `dynamodbav:"created_at" json:"created_at"` // ✅ Sort Key (TimestampLayout)
	ID        string       `dynamodbav:"id" json:"id"`                 // UUID
	SenderID  string       `dynamodbav:"sender_id" json:"sender_id"`
	Text      string       `dynamodbav:"text,omitempty" json:"text,omitempty"`
	Kind      string       `dynamodbav:"kind" json:"kind"`                     // text, call_invite, call_accepted
	Call      *CallPayload `dynamodbav:"call,omitempty" json:"call,omitempty"` // only for call kinds
}

// CallPayload is the stored call-signaling payload of a message.
type CallPayload struct {
	CallID      string `dynamodbav:"call_id" json:"call_id"`
	CallerID    string `dynamodbav:"caller_id,omitempty" json:"caller_id,omitempty"`
	CallerName  string `dynamodbav:"caller_name,omitempty" json:"caller_name,omitempty"`
	Accepted    bool   `dynamodbav:"accepted,omitempty" json:"accepted,omitempty"`
	WaitingRoom bool   `dynamodbav:"waiting_room,omitempty" json:"waiting_room,omitempty"`
}

// Channel is a two-member conversation container.
type Channel struct {
	ID        string   `dynamodbav:"id" json:"id"`                 // ✅ Partition Key, see chat.ChannelID
	Type      string   `dynamodbav:"type" json:"type"`             // messaging
	Members   []string `dynamodbav:"members" json:"members"`       // both participants
	CreatedBy string   `dynamodbav:"created_by" json:"created_by"` // first participant to open it
	CreatedAt string   `dynamodbav:"created_at" json:"created_at"`
}

// ChannelMember tracks a user's membership and read position in a channel.
type ChannelMember struct {
	UserID     string `dynamodbav:"user_id" json:"user_id"`       // ✅ Partition Key
	ChannelID  string `dynamodbav:"channel_id" json:"channel_id"` // ✅ Sort Key
	LastReadAt string `dynamodbav:"last_read_at,omitempty" json:"last_read_at,omitempty"`
}
