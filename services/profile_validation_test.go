package services

import (
	"testing"

	"amora_server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func float(v float64) *float64 { return &v }

func validForm() ProfileUpdate {
	return ProfileUpdate{
		FullName:       "Linh Tran",
		Username:       "linh",
		Bio:            "Coffee and climbing",
		Gender:         models.GenderFemale,
		Birthdate:      "1998-04-12",
		AvatarURL:      "https://cdn.example.com/a.png",
		Photos:         []string{"https://cdn.example.com/1.png"},
		DisplayAddress: "Hanoi, Vietnam",
		Latitude:       float(21.0285),
		Longitude:      float(105.8542),
		HobbiesIDs:     []string{"h1", "h2"},
	}
}

func TestValidateProfileAcceptsCompleteForm(t *testing.T) {
	assert.Empty(t, ValidateProfile(validForm()))
}

func TestValidateProfileFlagsExactlyTheEmptyField(t *testing.T) {
	cases := map[string]func(*ProfileUpdate){
		"full_name":       func(p *ProfileUpdate) { p.FullName = "  " },
		"username":        func(p *ProfileUpdate) { p.Username = "" },
		"bio":             func(p *ProfileUpdate) { p.Bio = "\n" },
		"avatar_url":      func(p *ProfileUpdate) { p.AvatarURL = "" },
		"gender":          func(p *ProfileUpdate) { p.Gender = "" },
		"birthdate":       func(p *ProfileUpdate) { p.Birthdate = "" },
		"display_address": func(p *ProfileUpdate) { p.DisplayAddress = "" },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			form := validForm()
			mutate(&form)
			assert.Equal(t, map[string]bool{field: true}, ValidateProfile(form))
		})
	}
}

func TestValidateProfileRejectsBadValues(t *testing.T) {
	form := validForm()
	form.Gender = "robot"
	form.Birthdate = "12/04/1998"
	form.Latitude = nil
	form.Photos = make([]string, models.MaxPhotos+1)
	form.HobbiesIDs = make([]string, models.MaxHobbies+1)

	assert.Equal(t, map[string]bool{
		"gender":          true,
		"birthdate":       true,
		"display_address": true,
		"photos":          true,
		"hobbiesIds":      true,
	}, ValidateProfile(form))
}

func TestToggleHobby(t *testing.T) {
	ids, err := ToggleHobby(nil, "h1")
	require.NoError(t, err)
	assert.Equal(t, []string{"h1"}, ids)

	ids, err = ToggleHobby(ids, "h1")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestToggleSixthHobbyIsRejected(t *testing.T) {
	five := []string{"h1", "h2", "h3", "h4", "h5"}
	ids, err := ToggleHobby(five, "h6")
	assert.ErrorIs(t, err, ErrTooManyHobbies)
	assert.Equal(t, []string{"h1", "h2", "h3", "h4", "h5"}, ids)

	// removing still works at the ceiling
	ids, err = ToggleHobby(five, "h3")
	require.NoError(t, err)
	assert.Equal(t, []string{"h1", "h2", "h4", "h5"}, ids)
}

func TestAddAndRemovePhoto(t *testing.T) {
	photos, err := AddPhoto(nil, "p1")
	require.NoError(t, err)
	photos, err = AddPhoto(photos, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, photos)

	full := []string{"p1", "p2", "p3", "p4", "p5"}
	got, err := AddPhoto(full, "p6")
	assert.ErrorIs(t, err, ErrTooManyPhotos)
	assert.Len(t, got, models.MaxPhotos)

	assert.Equal(t, []string{"p1", "p3", "p4", "p5"}, RemovePhoto(full, "p2"))
}

func TestValidationErrorMessageListsFields(t *testing.T) {
	err := &ValidationError{Fields: map[string]bool{"username": true, "bio": true}}
	assert.Equal(t, "please fill in all required fields: bio, username", err.Error())
}
