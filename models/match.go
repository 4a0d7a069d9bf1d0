package models

// Match is a relation between two users. Matches are created by the swipe
// backend and are read-only here.
type Match struct {
	ID        string `dynamodbav:"id" json:"id"`                 // ✅ Partition Key
	User1ID   string `dynamodbav:"user1_id" json:"user1_id"`     // ✅ GSI user1_id-index
	User2ID   string `dynamodbav:"user2_id" json:"user2_id"`     // ✅ GSI user2_id-index
	IsActive  bool   `dynamodbav:"is_active" json:"is_active"`   // inactive matches are hidden
	CreatedAt string `dynamodbav:"created_at" json:"created_at"` // RFC3339
}

// OtherUser returns the participant that is not userID.
func (m Match) OtherUser(userID string) string {
	if m.User1ID == userID {
		return m.User2ID
	}
	return m.User1ID
}

// MatchWithProfile combines a match with the other user's profile and chat state.
type MatchWithProfile struct {
	MatchID   string      `json:"match_id"`
	MatchedAt string      `json:"matched_at"`
	Profile   UserProfile `json:"profile"`
	Age       int         `json:"age,omitempty"`
	ChannelID string      `json:"channel_id"`
	Unread    int         `json:"unread"`
}

// ChatListItem is a row on the chat list page.
type ChatListItem struct {
	MatchWithProfile
	LastMessage     string `json:"last_message,omitempty"`
	LastMessageAt   string `json:"last_message_at,omitempty"`
	LastMessageMine bool   `json:"last_message_mine,omitempty"`
}
