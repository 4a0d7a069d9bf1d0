package models

// ✅ DynamoDB table names
const (
	UserProfilesTable   = "Users"
	HobbiesTable        = "Hobbies"
	MatchesTable        = "Matches"
	ChannelsTable       = "Channels"
	ChannelMembersTable = "ChannelMembers"
	MessagesTable       = "Messages"
)

// ✅ Global secondary indexes on the Matches table (reverse relation lookups)
const (
	MatchUser1Index = "user1_id-index"
	MatchUser2Index = "user2_id-index"
)

// ✅ Genders accepted by the profile editor
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

// ✅ Profile editor ceilings
const (
	MaxPhotos  = 5
	MaxHobbies = 5
)

// ✅ Chat channel types
const (
	ChannelTypeMessaging = "messaging"
)

// BirthdateLayout is the stored format of UserProfile.Birthdate.
const BirthdateLayout = "2006-01-02"

// TimestampLayout is the fixed width UTC format of chat sort keys, so that
// lexical order matches time order.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
