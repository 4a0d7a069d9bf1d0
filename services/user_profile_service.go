package services

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"amora_server/models"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ErrProfileNotFound is returned when the user has no profile row yet.
var ErrProfileNotFound = errors.New("profile not found")

type UserProfileService struct {
	Dynamo *DynamoService
	Log    zerolog.Logger
	Now    func() time.Time
}

// NewUserProfileService returns a profile store on top of dynamo.
func NewUserProfileService(dynamo *DynamoService, log zerolog.Logger) *UserProfileService {
	return &UserProfileService{
		Dynamo: dynamo,
		Log:    log.With().Str("component", "profiles").Logger(),
		Now:    time.Now,
	}
}

// GetUserProfile retrieves a user profile by ID
func (ups *UserProfileService) GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := ups.Dynamo.GetItem(ctx, models.UserProfilesTable, StringKey("id", userID), &profile)
	if errors.Is(err, ErrItemNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get profile %s", userID)
	}
	return &profile, nil
}

// GetProfileForEdit returns the profile with the editor defaults applied. A
// user without a profile row gets an empty form.
func (ups *UserProfileService) GetProfileForEdit(ctx context.Context, userID string) (*models.UserProfile, error) {
	profile, err := ups.GetUserProfile(ctx, userID)
	if errors.Is(err, ErrProfileNotFound) {
		profile = &models.UserProfile{ID: userID}
	} else if err != nil {
		return nil, err
	}
	applyFormDefaults(profile)
	return profile, nil
}

// IsProfileCompleted reports the completion flag of userID. A missing profile
// is incomplete.
func (ups *UserProfileService) IsProfileCompleted(ctx context.Context, userID string) (bool, error) {
	profile, err := ups.GetUserProfile(ctx, userID)
	if errors.Is(err, ErrProfileNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return profile.IsProfileCompleted, nil
}

// UpdateUserProfile validates the form and writes every field in one update,
// marking the profile completed.
func (ups *UserProfileService) UpdateUserProfile(ctx context.Context, userID string, form ProfileUpdate) (*models.UserProfile, error) {
	if fields := ValidateProfile(form); len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	prefs := models.DefaultPreferences()
	if form.Preferences != nil {
		prefs = *form.Preferences
	}
	if prefs.GenderPreference == nil {
		prefs.GenderPreference = []string{}
	}
	photos := form.Photos
	if photos == nil {
		photos = []string{}
	}
	hobbies := form.HobbiesIDs
	if hobbies == nil {
		hobbies = []string{}
	}

	updates := map[string]interface{}{
		"full_name":            strings.TrimSpace(form.FullName),
		"username":             strings.TrimSpace(form.Username),
		"bio":                  strings.TrimSpace(form.Bio),
		"gender":               form.Gender,
		"birthdate":            strings.TrimSpace(form.Birthdate),
		"avatar_url":           strings.TrimSpace(form.AvatarURL),
		"photos":               photos,
		"display_address":      strings.TrimSpace(form.DisplayAddress),
		"latitude":             *form.Latitude,
		"longitude":            *form.Longitude,
		"hobbiesIds":           hobbies,
		"preferences":          prefs,
		"is_profile_completed": true,
		"updated_at":           ups.Now().UTC().Format(time.RFC3339),
	}

	item, err := ups.setAttributes(ctx, userID, updates)
	if err != nil {
		return nil, err
	}

	var updated models.UserProfile
	if err := attributevalue.UnmarshalMap(item, &updated); err != nil {
		return nil, errors.Wrap(err, "unmarshal updated profile")
	}
	ups.Log.Info().Str("user", userID).Msg("✅ profile updated")
	return &updated, nil
}

// ToggleHobby adds or removes a hobby on the stored profile.
func (ups *UserProfileService) ToggleHobby(ctx context.Context, userID, hobbyID string) ([]string, error) {
	profile, err := ups.GetProfileForEdit(ctx, userID)
	if err != nil {
		return nil, err
	}
	hobbies, err := ToggleHobby(profile.HobbiesIDs, hobbyID)
	if err != nil {
		return profile.HobbiesIDs, err
	}
	if _, err := ups.setAttributes(ctx, userID, map[string]interface{}{"hobbiesIds": hobbies}); err != nil {
		return nil, err
	}
	return hobbies, nil
}

// AddPhoto appends a photo to the stored gallery.
func (ups *UserProfileService) AddPhoto(ctx context.Context, userID, url string) ([]string, error) {
	profile, err := ups.GetProfileForEdit(ctx, userID)
	if err != nil {
		return nil, err
	}
	photos, err := AddPhoto(profile.Photos, url)
	if err != nil {
		return profile.Photos, err
	}
	if _, err := ups.setAttributes(ctx, userID, map[string]interface{}{"photos": photos}); err != nil {
		return nil, err
	}
	return photos, nil
}

// RemovePhoto drops a photo from the stored gallery.
func (ups *UserProfileService) RemovePhoto(ctx context.Context, userID, url string) ([]string, error) {
	profile, err := ups.GetProfileForEdit(ctx, userID)
	if err != nil {
		return nil, err
	}
	photos := RemovePhoto(profile.Photos, url)
	if _, err := ups.setAttributes(ctx, userID, map[string]interface{}{"photos": photos}); err != nil {
		return nil, err
	}
	return photos, nil
}

// SetOnlineStatus records presence and the last activity time.
func (ups *UserProfileService) SetOnlineStatus(ctx context.Context, userID string, online bool) error {
	_, err := ups.setAttributes(ctx, userID, map[string]interface{}{
		"is_online":   online,
		"last_active": ups.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return errors.Wrapf(err, "set online status of %s", userID)
	}
	return nil
}

// ListHobbies returns every selectable hobby.
func (ups *UserProfileService) ListHobbies(ctx context.Context) ([]models.Hobby, error) {
	hobbies := []models.Hobby{}
	if err := ups.Dynamo.ScanAll(ctx, models.HobbiesTable, &hobbies); err != nil {
		return nil, errors.Wrap(err, "list hobbies")
	}
	return hobbies, nil
}

// SeedHobbies writes the hobby catalogue.
func (ups *UserProfileService) SeedHobbies(ctx context.Context, hobbies []models.Hobby) error {
	items := make([]interface{}, 0, len(hobbies))
	for _, h := range hobbies {
		items = append(items, h)
	}
	return ups.Dynamo.BatchPutItems(ctx, models.HobbiesTable, items)
}

// setAttributes builds a SET expression over updates and applies it.
func (ups *UserProfileService) setAttributes(ctx context.Context, userID string, updates map[string]interface{}) (map[string]types.AttributeValue, error) {
	names := make(map[string]string, len(updates))
	values := make(map[string]types.AttributeValue, len(updates))
	clauses := make([]string, 0, len(updates))

	i := 0
	for attr, v := range updates {
		name := "#f" + strconv.Itoa(i)
		placeholder := ":v" + strconv.Itoa(i)
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return nil, errors.Wrapf(err, "marshal %s", attr)
		}
		names[name] = attr
		values[placeholder] = av
		clauses = append(clauses, name+" = "+placeholder)
		i++
	}
	sort.Strings(clauses)

	return ups.Dynamo.UpdateItem(ctx, models.UserProfilesTable, "SET "+strings.Join(clauses, ", "), StringKey("id", userID), values, names)
}
