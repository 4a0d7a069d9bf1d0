package services

import (
	"sort"
	"strings"
	"time"

	"amora_server/models"

	"github.com/pkg/errors"
)

var (
	ErrTooManyHobbies = errors.Errorf("you can select up to %d hobbies", models.MaxHobbies)
	ErrTooManyPhotos  = errors.Errorf("you can upload up to %d photos", models.MaxPhotos)
)

// ProfileUpdate is the profile editor form as submitted.
type ProfileUpdate struct {
	FullName       string                  `json:"full_name"`
	Username       string                  `json:"username"`
	Bio            string                  `json:"bio"`
	Gender         string                  `json:"gender"`
	Birthdate      string                  `json:"birthdate"`
	AvatarURL      string                  `json:"avatar_url"`
	Photos         []string                `json:"photos"`
	DisplayAddress string                  `json:"display_address"`
	Latitude       *float64                `json:"latitude"`
	Longitude      *float64                `json:"longitude"`
	HobbiesIDs     []string                `json:"hobbiesIds"`
	Preferences    *models.UserPreferences `json:"preferences"`
}

// ValidationError carries the invalid form fields.
type ValidationError struct {
	Fields map[string]bool
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "please fill in all required fields: " + strings.Join(names, ", ")
}

// ValidateProfile returns the set of invalid fields of p; an empty map means
// the form can be saved.
func ValidateProfile(p ProfileUpdate) map[string]bool {
	fields := map[string]bool{}
	required := map[string]string{
		"avatar_url": p.AvatarURL,
		"full_name":  p.FullName,
		"username":   p.Username,
		"bio":        p.Bio,
	}
	for name, value := range required {
		if strings.TrimSpace(value) == "" {
			fields[name] = true
		}
	}

	if !validGender(p.Gender) {
		fields["gender"] = true
	}
	if _, err := time.Parse(models.BirthdateLayout, strings.TrimSpace(p.Birthdate)); err != nil {
		fields["birthdate"] = true
	}
	if strings.TrimSpace(p.DisplayAddress) == "" || p.Latitude == nil || p.Longitude == nil {
		fields["display_address"] = true
	}
	if len(p.Photos) > models.MaxPhotos {
		fields["photos"] = true
	}
	if len(p.HobbiesIDs) > models.MaxHobbies {
		fields["hobbiesIds"] = true
	}
	return fields
}

func validGender(g string) bool {
	switch g {
	case models.GenderMale, models.GenderFemale, models.GenderOther:
		return true
	}
	return false
}

// ToggleHobby adds id to ids, or removes it when present. Adding beyond
// MaxHobbies fails and returns ids unchanged.
func ToggleHobby(ids []string, id string) ([]string, error) {
	out := make([]string, 0, len(ids)+1)
	removed := false
	for _, existing := range ids {
		if existing == id {
			removed = true
			continue
		}
		out = append(out, existing)
	}
	if removed {
		return out, nil
	}
	if len(ids) >= models.MaxHobbies {
		return ids, ErrTooManyHobbies
	}
	return append(out, id), nil
}

// AddPhoto appends url to photos unless the gallery is full.
func AddPhoto(photos []string, url string) ([]string, error) {
	for _, p := range photos {
		if p == url {
			return photos, nil
		}
	}
	if len(photos) >= models.MaxPhotos {
		return photos, ErrTooManyPhotos
	}
	out := make([]string, 0, len(photos)+1)
	out = append(out, photos...)
	return append(out, url), nil
}

// RemovePhoto drops url from photos.
func RemovePhoto(photos []string, url string) []string {
	out := make([]string, 0, len(photos))
	for _, p := range photos {
		if p != url {
			out = append(out, p)
		}
	}
	return out
}

// applyFormDefaults fills the values the editor shows for a fresh profile.
func applyFormDefaults(p *models.UserProfile) {
	if !validGender(p.Gender) {
		p.Gender = models.GenderMale
	}
	if p.Preferences == nil {
		prefs := models.DefaultPreferences()
		p.Preferences = &prefs
	}
	if p.Photos == nil {
		p.Photos = []string{}
	}
	if p.HobbiesIDs == nil {
		p.HobbiesIDs = []string{}
	}
}
