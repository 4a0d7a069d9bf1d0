package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"amora_server/chat"
	"amora_server/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var (
	ErrChannelNotFound  = errors.New("channel not found")
	ErrNotChannelMember = errors.New("not a member of this channel")
)

const channelCacheSize = 4096

// ChatService is the chat provider: channels and messages live in DynamoDB
// and events are fanned out in process to the connected clients of each
// channel member.
type ChatService struct {
	Dynamo *DynamoService
	Log    zerolog.Logger
	Now    func() time.Time

	members *lru.Cache[string, []string]

	mu      sync.RWMutex
	clients map[string]map[*chatClient]struct{}
}

// NewChatService returns a provider backed by dynamo.
func NewChatService(dynamo *DynamoService, log zerolog.Logger) (*ChatService, error) {
	members, err := lru.New[string, []string](channelCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "create channel cache")
	}
	return &ChatService{
		Dynamo:  dynamo,
		Log:     log.With().Str("component", "chat-provider").Logger(),
		Now:     time.Now,
		members: members,
		clients: map[string]map[*chatClient]struct{}{},
	}, nil
}

// Connect opens a client for userID.
func (s *ChatService) Connect(_ context.Context, userID string) (chat.Client, error) {
	if userID == "" {
		return nil, errors.New("connect: empty user id")
	}
	c := newChatClient(s, userID)

	s.mu.Lock()
	if s.clients[userID] == nil {
		s.clients[userID] = map[*chatClient]struct{}{}
	}
	s.clients[userID][c] = struct{}{}
	s.mu.Unlock()

	go c.loop()
	s.Log.Debug().Str("user", userID).Msg("🔌 chat client connected")
	return c, nil
}

// Connected reports the number of open clients of userID.
func (s *ChatService) Connected(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients[userID])
}

func (s *ChatService) disconnect(c *chatClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients[c.userID], c)
	if len(s.clients[c.userID]) == 0 {
		delete(s.clients, c.userID)
	}
}

// publish delivers ev to every client of userIDs. typeFor picks the event
// type per client, allowing watchers and non-watchers to see different types.
func (s *ChatService) publish(userIDs []string, ev chat.Event, typeFor func(*chatClient) chat.EventType) {
	s.mu.RLock()
	var targets []*chatClient
	for _, id := range userIDs {
		for c := range s.clients[id] {
			targets = append(targets, c)
		}
	}
	s.mu.RUnlock()

	for _, c := range targets {
		out := ev
		if typeFor != nil {
			out.Type = typeFor(c)
		}
		c.deliver(out)
	}
}

func (s *ChatService) timestamp() string {
	return s.Now().UTC().Format(models.TimestampLayout)
}

// createOrGetChannel stores the channel of the pair and both membership rows
// when missing.
func (s *ChatService) createOrGetChannel(ctx context.Context, userID, otherID string) (string, error) {
	if otherID == "" || otherID == userID {
		return "", errors.New("a channel needs two distinct users")
	}
	channelID := chat.ChannelID(userID, otherID)
	members := []string{userID, otherID}
	sort.Strings(members)
	now := s.timestamp()

	created, err := s.Dynamo.PutItemIfAbsent(ctx, models.ChannelsTable, "id", models.Channel{
		ID:        channelID,
		Type:      models.ChannelTypeMessaging,
		Members:   members,
		CreatedBy: userID,
		CreatedAt: now,
	})
	if err != nil {
		return "", errors.Wrapf(err, "create channel %s", channelID)
	}
	for _, member := range members {
		if _, err := s.Dynamo.PutItemIfAbsent(ctx, models.ChannelMembersTable, "user_id", models.ChannelMember{
			UserID:    member,
			ChannelID: channelID,
		}); err != nil {
			return "", errors.Wrapf(err, "add %s to channel %s", member, channelID)
		}
	}
	s.members.Add(channelID, members)

	if created {
		s.Log.Info().Str("channel", channelID).Str("created_by", userID).Msg("✅ channel created")
		s.publish(members, chat.Event{
			Type:      chat.EventNotificationChannelUpdated,
			ChannelID: channelID,
			UserID:    userID,
			CreatedAt: s.Now(),
		}, nil)
	}
	return channelID, nil
}

// channelMembers returns the members of channelID. Membership never changes
// once a channel exists, so lookups are cached.
func (s *ChatService) channelMembers(ctx context.Context, channelID string) ([]string, error) {
	if members, ok := s.members.Get(channelID); ok {
		return members, nil
	}
	var channel models.Channel
	err := s.Dynamo.GetItem(ctx, models.ChannelsTable, StringKey("id", channelID), &channel)
	if errors.Is(err, ErrItemNotFound) {
		return nil, ErrChannelNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get channel %s", channelID)
	}
	s.members.Add(channelID, channel.Members)
	return channel.Members, nil
}

func (s *ChatService) requireMember(ctx context.Context, channelID, userID string) ([]string, error) {
	members, err := s.channelMembers(ctx, channelID)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		if m == userID {
			return members, nil
		}
	}
	return nil, ErrNotChannelMember
}

// latestMessages returns up to limit messages of channelID, oldest first.
func (s *ChatService) latestMessages(ctx context.Context, channelID string, limit int) ([]chat.Message, error) {
	items, err := s.Dynamo.QueryLatest(ctx, models.MessagesTable, "channel_id", channelID, int32(limit))
	if err != nil {
		return nil, errors.Wrapf(err, "query messages of %s", channelID)
	}
	var stored []models.Message
	if err := attributevalue.UnmarshalListOfMaps(items, &stored); err != nil {
		return nil, errors.Wrap(err, "unmarshal messages")
	}

	out := make([]chat.Message, len(stored))
	for i, m := range stored {
		// stored newest first
		out[len(stored)-1-i] = toChatMessage(m)
	}
	return out, nil
}

func (s *ChatService) storeMessage(ctx context.Context, channelID, senderID string, msg chat.Message) (chat.Message, error) {
	if err := msg.Validate(); err != nil {
		return chat.Message{}, err
	}
	now := s.Now().UTC()
	msg.ID = uuid.NewString()
	msg.ChannelID = channelID
	msg.SenderID = senderID
	msg.CreatedAt = now

	if err := s.Dynamo.PutItem(ctx, models.MessagesTable, toStoredMessage(msg)); err != nil {
		return chat.Message{}, errors.Wrap(err, "store message")
	}
	return msg, nil
}

// unreadCount counts the messages of channelID newer than since and not sent
// by userID.
func (s *ChatService) unreadCount(ctx context.Context, channelID, userID, since string) (int, error) {
	names := map[string]string{"#c": "channel_id", "#s": "sender_id"}
	values := map[string]types.AttributeValue{
		":c":  &types.AttributeValueMemberS{Value: channelID},
		":me": &types.AttributeValueMemberS{Value: userID},
	}
	keyCondition := "#c = :c"
	if since != "" {
		keyCondition += " AND #t > :since"
		names["#t"] = "created_at"
		values[":since"] = &types.AttributeValueMemberS{Value: since}
	}

	return s.Dynamo.CountItems(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(models.MessagesTable),
		KeyConditionExpression:    aws.String(keyCondition),
		FilterExpression:          aws.String("#s <> :me"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
}

// queryChannels returns the channels of userID with unread counts and last
// message, most recently active first.
func (s *ChatService) queryChannels(ctx context.Context, userID string, limit int) ([]chat.ChannelState, error) {
	items, err := s.Dynamo.QueryItems(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(models.ChannelMembersTable),
		KeyConditionExpression:    aws.String("#u = :u"),
		ExpressionAttributeNames:  map[string]string{"#u": "user_id"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":u": &types.AttributeValueMemberS{Value: userID}},
		Limit:                     aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "query channels of %s", userID)
	}
	var memberships []models.ChannelMember
	if err := attributevalue.UnmarshalListOfMaps(items, &memberships); err != nil {
		return nil, errors.Wrap(err, "unmarshal memberships")
	}

	states := make([]chat.ChannelState, 0, len(memberships))
	for _, m := range memberships {
		members, err := s.channelMembers(ctx, m.ChannelID)
		if errors.Is(err, ErrChannelNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		unread, err := s.unreadCount(ctx, m.ChannelID, userID, m.LastReadAt)
		if err != nil {
			return nil, err
		}
		state := chat.ChannelState{
			ChannelRef: chat.ChannelRef{Type: models.ChannelTypeMessaging, ID: m.ChannelID},
			Members:    members,
			Unread:     unread,
		}
		last, err := s.latestMessages(ctx, m.ChannelID, 1)
		if err != nil {
			return nil, err
		}
		if len(last) > 0 {
			state.LastMessage = &last[0]
		}
		states = append(states, state)
	}

	sort.SliceStable(states, func(i, j int) bool {
		return lastActivity(states[i]).After(lastActivity(states[j]))
	})
	return states, nil
}

func lastActivity(st chat.ChannelState) time.Time {
	if st.LastMessage == nil {
		return time.Time{}
	}
	return st.LastMessage.CreatedAt
}

func (s *ChatService) markRead(ctx context.Context, channelID, userID string) ([]string, error) {
	members, err := s.requireMember(ctx, channelID, userID)
	if err != nil {
		return nil, err
	}
	_, err = s.Dynamo.UpdateItem(ctx, models.ChannelMembersTable,
		"SET #r = :r",
		CompositeKey("user_id", userID, "channel_id", channelID),
		map[string]types.AttributeValue{":r": &types.AttributeValueMemberS{Value: s.timestamp()}},
		map[string]string{"#r": "last_read_at"},
	)
	if err != nil {
		return nil, errors.Wrapf(err, "mark %s read", channelID)
	}
	return members, nil
}

func toStoredMessage(m chat.Message) models.Message {
	stored := models.Message{
		ChannelID: m.ChannelID,
		CreatedAt: m.CreatedAt.UTC().Format(models.TimestampLayout),
		ID:        m.ID,
		SenderID:  m.SenderID,
		Text:      m.Text,
		Kind:      string(m.Kind),
	}
	if m.Call != nil {
		stored.Call = &models.CallPayload{
			CallID:      m.Call.CallID,
			CallerID:    m.Call.CallerID,
			CallerName:  m.Call.CallerName,
			Accepted:    m.Call.Accepted,
			WaitingRoom: m.Call.WaitingRoom,
		}
	}
	return stored
}

func toChatMessage(m models.Message) chat.Message {
	createdAt, _ := time.Parse(models.TimestampLayout, m.CreatedAt)
	msg := chat.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		SenderID:  m.SenderID,
		Text:      m.Text,
		CreatedAt: createdAt,
		Kind:      chat.Kind(m.Kind),
	}
	if msg.Kind == "" {
		msg.Kind = chat.KindText
	}
	if m.Call != nil {
		msg.Call = &chat.CallSignal{
			CallID:      m.Call.CallID,
			CallerID:    m.Call.CallerID,
			CallerName:  m.Call.CallerName,
			Accepted:    m.Call.Accepted,
			WaitingRoom: m.Call.WaitingRoom,
		}
	}
	return msg
}
