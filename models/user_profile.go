package models

// UserProfile defines the structure for user profiles
type UserProfile struct {
	UserID        string   `dynamodbav:"userId" json:"userId"`
	Name          string   `dynamodbav:"name,omitempty" json:"name,omitempty"`
	Photo         string   `dynamodbav:"photo,omitempty" json:"photo,omitempty"`
	Bio           string   `dynamodbav:"bio,omitempty" json:"bio,omitempty"`
	SkillsOffered []string `dynamodbav:"skillsOffered,omitempty" json:"skillsOffered,omitempty"`
	SkillsWanted  []string `dynamodbav:"skillsWanted,omitempty" json:"skillsWanted,omitempty"`
	CreatedAt     string   `dynamodbav:"createdAt,omitempty" json:"createdAt,omitempty"`
}

// ProfileSummary is the trimmed-down profile embedded in pushed event
// payloads so clients need no follow-up fetch to render a sender.
type ProfileSummary struct {
	UserID        string   `json:"userId"`
	Name          string   `json:"name"`
	Photo         string   `json:"photo,omitempty"`
	SkillsOffered []string `json:"skillsOffered,omitempty"`
	SkillsWanted  []string `json:"skillsWanted,omitempty"`
}

// UserProfilesTable is the DynamoDB table name for user profiles
const UserProfilesTable = "UserProfiles"
