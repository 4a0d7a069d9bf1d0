package controllers

import (
	"context"
	"net/http"

	"amora_server/helpers"
	"amora_server/models"
	"amora_server/services"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// ProfileEditor is the profile store used by the editor.
type ProfileEditor interface {
	GetProfileForEdit(ctx context.Context, userID string) (*models.UserProfile, error)
	UpdateUserProfile(ctx context.Context, userID string, form services.ProfileUpdate) (*models.UserProfile, error)
	ToggleHobby(ctx context.Context, userID, hobbyID string) ([]string, error)
	AddPhoto(ctx context.Context, userID, url string) ([]string, error)
	RemovePhoto(ctx context.Context, userID, url string) ([]string, error)
	SetOnlineStatus(ctx context.Context, userID string, online bool) error
	ListHobbies(ctx context.Context) ([]models.Hobby, error)
}

// Geocoder resolves coordinates to a display address.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) string
}

// UserProfileController handles requests of the profile editor
type UserProfileController struct {
	Profiles ProfileEditor
	Geocoder Geocoder
	Log      zerolog.Logger
}

// NewUserProfileController creates a new instance of UserProfileController
func NewUserProfileController(profiles ProfileEditor, geocoder Geocoder, log zerolog.Logger) *UserProfileController {
	return &UserProfileController{
		Profiles: profiles,
		Geocoder: geocoder,
		Log:      log.With().Str("controller", "profile").Logger(),
	}
}

// GetProfile returns the caller's profile with form defaults applied.
func (c *UserProfileController) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := c.Profiles.GetProfileForEdit(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, c.Log, err, "Failed to load your profile")
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, profile)
}

// UpdateProfile validates and saves the whole form in one write.
func (c *UserProfileController) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var form services.ProfileUpdate
	if err := helpers.DecodeJSON(r, &form); err != nil {
		helpers.WriteError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	profile, err := c.Profiles.UpdateUserProfile(r.Context(), userID(r), form)
	if err != nil {
		writeServiceError(w, c.Log, err, "Failed to update profile")
		return
	}
	c.Log.Info().Str("user", profile.ID).Msg("✅ profile updated")
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"message": "Profile updated successfully",
		"profile": profile,
	})
}

// ResolveLocation turns the browser's coordinates into a display address.
// Nothing is stored; the form submits the address with the profile.
func (c *UserProfileController) ResolveLocation(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if err := helpers.DecodeJSON(r, &payload); err != nil || payload.Latitude == nil || payload.Longitude == nil {
		helpers.WriteError(w, http.StatusBadRequest, "latitude and longitude are required")
		return
	}
	lat, lon := *payload.Latitude, *payload.Longitude
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		helpers.WriteError(w, http.StatusBadRequest, "coordinates are out of range")
		return
	}

	helpers.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"latitude":        lat,
		"longitude":       lon,
		"display_address": c.Geocoder.ReverseGeocode(r.Context(), lat, lon),
	})
}

// ListHobbies returns the hobby catalogue.
func (c *UserProfileController) ListHobbies(w http.ResponseWriter, r *http.Request) {
	hobbies, err := c.Profiles.ListHobbies(r.Context())
	if err != nil {
		writeServiceError(w, c.Log, err, "Failed to load hobbies")
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, hobbies)
}

// ToggleHobby selects or deselects {hobbyId}.
func (c *UserProfileController) ToggleHobby(w http.ResponseWriter, r *http.Request) {
	hobbyID := mux.Vars(r)["hobbyId"]
	ids, err := c.Profiles.ToggleHobby(r.Context(), userID(r), hobbyID)
	if err != nil {
		writeServiceError(w, c.Log, err, "Failed to update hobbies")
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string][]string{"hobbiesIds": ids})
}

// AddPhoto appends an uploaded photo to the gallery.
func (c *UserProfileController) AddPhoto(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		URL string `json:"url"`
	}
	if err := helpers.DecodeJSON(r, &payload); err != nil || payload.URL == "" {
		helpers.WriteError(w, http.StatusBadRequest, "url is required")
		return
	}
	photos, err := c.Profiles.AddPhoto(r.Context(), userID(r), payload.URL)
	if err != nil {
		writeServiceError(w, c.Log, err, "Failed to add photo")
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string][]string{"photos": photos})
}

// RemovePhoto drops a photo from the gallery.
func (c *UserProfileController) RemovePhoto(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		helpers.WriteError(w, http.StatusBadRequest, "url is required")
		return
	}
	photos, err := c.Profiles.RemovePhoto(r.Context(), userID(r), url)
	if err != nil {
		writeServiceError(w, c.Log, err, "Failed to remove photo")
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string][]string{"photos": photos})
}

// SetOnline records the caller's presence flag.
func (c *UserProfileController) SetOnline(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Online bool `json:"online"`
	}
	if err := helpers.DecodeJSON(r, &payload); err != nil {
		helpers.WriteError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := c.Profiles.SetOnlineStatus(r.Context(), userID(r), payload.Online); err != nil {
		writeServiceError(w, c.Log, err, "Failed to update online status")
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]bool{"online": payload.Online})
}
