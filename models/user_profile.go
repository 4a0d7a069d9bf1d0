package models

// AgeRange bounds the ages a user wants to be matched with.
type AgeRange struct {
	Min int `dynamodbav:"min" json:"min"`
	Max int `dynamodbav:"max" json:"max"`
}

// UserPreferences holds matching preferences edited on the profile page.
type UserPreferences struct {
	AgeRange         AgeRange `dynamodbav:"age_range" json:"age_range"`
	Distance         int      `dynamodbav:"distance" json:"distance"`                   // km
	GenderPreference []string `dynamodbav:"gender_preference" json:"gender_preference"` // subset of male/female/other
}

// DefaultPreferences returns the preferences applied to a profile that has none yet.
func DefaultPreferences() UserPreferences {
	return UserPreferences{
		AgeRange:         AgeRange{Min: 18, Max: 50},
		Distance:         25,
		GenderPreference: []string{},
	}
}

// UserProfile defines the structure for user profiles
type UserProfile struct {
	ID                 string           `dynamodbav:"id" json:"id"`                                             // ✅ Partition Key (auth user id)
	FullName           string           `dynamodbav:"full_name,omitempty" json:"full_name"`                     // Full name of the user
	Username           string           `dynamodbav:"username,omitempty" json:"username"`                       // Display name
	Bio                string           `dynamodbav:"bio,omitempty" json:"bio"`                                 // Short biography
	Gender             string           `dynamodbav:"gender,omitempty" json:"gender"`                           // male, female, other
	Birthdate          string           `dynamodbav:"birthdate,omitempty" json:"birthdate"`                     // YYYY-MM-DD
	AvatarURL          string           `dynamodbav:"avatar_url,omitempty" json:"avatar_url"`                   // Profile picture
	Photos             []string         `dynamodbav:"photos,omitempty" json:"photos"`                           // Gallery, at most MaxPhotos
	DisplayAddress     string           `dynamodbav:"display_address,omitempty" json:"display_address"`         // Reverse geocoded place name
	Latitude           *float64         `dynamodbav:"latitude,omitempty" json:"latitude"`                       // Latitude of the user's location
	Longitude          *float64         `dynamodbav:"longitude,omitempty" json:"longitude"`                     // Longitude of the user's location
	HobbiesIDs         []string         `dynamodbav:"hobbiesIds,omitempty" json:"hobbiesIds"`                   // At most MaxHobbies
	Preferences        *UserPreferences `dynamodbav:"preferences,omitempty" json:"preferences"`                 // Matching preferences
	IsProfileCompleted bool             `dynamodbav:"is_profile_completed" json:"is_profile_completed"`         // Route gate flag
	IsOnline           bool             `dynamodbav:"is_online" json:"is_online"`                               // Presence
	LastActive         string           `dynamodbav:"last_active,omitempty" json:"last_active,omitempty"`       // RFC3339
	UpdatedAt          string           `dynamodbav:"updated_at,omitempty" json:"updated_at,omitempty"`         // RFC3339
}

// Hobby is a selectable interest shown on the profile editor.
type Hobby struct {
	ID   string `dynamodbav:"id" json:"id"`
	Name string `dynamodbav:"name" json:"name"`
	Icon string `dynamodbav:"icon" json:"icon"`
}

// DefaultHobbies is the hobby catalogue written by the seed-hobbies command.
var DefaultHobbies = []Hobby{
	{ID: "travel", Name: "Travel", Icon: "✈️"},
	{ID: "music", Name: "Music", Icon: "🎵"},
	{ID: "movies", Name: "Movies", Icon: "🎬"},
	{ID: "reading", Name: "Reading", Icon: "📚"},
	{ID: "cooking", Name: "Cooking", Icon: "🍳"},
	{ID: "coffee", Name: "Coffee", Icon: "☕"},
	{ID: "fitness", Name: "Fitness", Icon: "💪"},
	{ID: "yoga", Name: "Yoga", Icon: "🧘"},
	{ID: "hiking", Name: "Hiking", Icon: "🥾"},
	{ID: "photography", Name: "Photography", Icon: "📷"},
	{ID: "gaming", Name: "Gaming", Icon: "🎮"},
	{ID: "art", Name: "Art", Icon: "🎨"},
	{ID: "dancing", Name: "Dancing", Icon: "💃"},
	{ID: "pets", Name: "Pets", Icon: "🐶"},
	{ID: "football", Name: "Football", Icon: "⚽"},
	{ID: "karaoke", Name: "Karaoke", Icon: "🎤"},
}
