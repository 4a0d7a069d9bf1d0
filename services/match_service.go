package services

import (
	"context"
	"sort"
	"time"

	"amora_server/chat"
	"amora_server/models"
	"amora_server/utils"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ErrNotMatched is returned when two users have no active match.
var ErrNotMatched = errors.New("users are not matched")

type MatchService struct {
	Dynamo   *DynamoService
	Profiles *UserProfileService
	Log      zerolog.Logger
	Now      func() time.Time
}

// NewMatchService returns a read-only view over the Matches table.
func NewMatchService(dynamo *DynamoService, profiles *UserProfileService, log zerolog.Logger) *MatchService {
	return &MatchService{
		Dynamo:   dynamo,
		Profiles: profiles,
		Log:      log.With().Str("component", "matches").Logger(),
		Now:      time.Now,
	}
}

// GetMatchesForUser returns the active matches of userID, newest first. A
// match may reference the user from either side, so both indexes are read.
func (ms *MatchService) GetMatchesForUser(ctx context.Context, userID string) ([]models.Match, error) {
	seen := map[string]struct{}{}
	var matches []models.Match

	for _, idx := range []struct{ name, attr string }{
		{models.MatchUser1Index, "user1_id"},
		{models.MatchUser2Index, "user2_id"},
	} {
		items, err := ms.Dynamo.QueryItemsWithIndex(ctx, models.MatchesTable, idx.name, idx.attr, userID)
		if err != nil {
			return nil, errors.Wrapf(err, "list matches of %s", userID)
		}
		for _, item := range items {
			if !utils.ExtractBool(item, "is_active") {
				continue
			}
			var m models.Match
			if err := attributevalue.UnmarshalMap(item, &m); err != nil {
				ms.Log.Warn().Err(err).Msg("⚠️ skipping malformed match")
				continue
			}
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			matches = append(matches, m)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].CreatedAt > matches[j].CreatedAt
	})
	return matches, nil
}

// GetMatchedProfiles returns the other side of every active match of userID
// with its age and chat channel id. Matches whose profile is gone are skipped.
func (ms *MatchService) GetMatchedProfiles(ctx context.Context, userID string) ([]models.MatchWithProfile, error) {
	matches, err := ms.GetMatchesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]models.MatchWithProfile, 0, len(matches))
	for _, m := range matches {
		item, err := ms.withProfile(ctx, userID, m)
		if errors.Is(err, ErrProfileNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	return out, nil
}

// FindMatch returns the match between userID and otherID.
func (ms *MatchService) FindMatch(ctx context.Context, userID, otherID string) (*models.MatchWithProfile, error) {
	if userID == otherID {
		return nil, ErrNotMatched
	}
	matches, err := ms.GetMatchesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, m := range matches {
		if m.OtherUser(userID) != otherID {
			continue
		}
		item, err := ms.withProfile(ctx, userID, m)
		if errors.Is(err, ErrProfileNotFound) {
			return nil, ErrNotMatched
		}
		return item, err
	}
	return nil, ErrNotMatched
}

func (ms *MatchService) withProfile(ctx context.Context, userID string, m models.Match) (*models.MatchWithProfile, error) {
	otherID := m.OtherUser(userID)
	profile, err := ms.Profiles.GetUserProfile(ctx, otherID)
	if err != nil {
		return nil, err
	}
	age, _ := utils.Age(profile.Birthdate, ms.Now())
	return &models.MatchWithProfile{
		MatchID:   m.ID,
		MatchedAt: m.CreatedAt,
		Profile:   *profile,
		Age:       age,
		ChannelID: chat.ChannelID(userID, otherID),
	}, nil
}
