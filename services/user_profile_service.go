package services

import (
	"context"
	"fmt"
	"time"

	"skillxchange_server/models"
	"skillxchange_server/utils"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type UserProfileService struct {
	Dynamo DynamoAPI
}

// AddUserProfile adds a new user profile to DynamoDB
func (ups *UserProfileService) AddUserProfile(ctx context.Context, profile models.UserProfile) (*models.UserProfile, error) {
	if profile.CreatedAt == "" {
		profile.CreatedAt = time.Now().Format(time.RFC3339)
	}
	err := ups.Dynamo.PutItem(ctx, models.UserProfilesTable, profile)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetUserProfile retrieves a user profile by ID
func (ups *UserProfileService) GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	key := map[string]types.AttributeValue{
		"userId": &types.AttributeValueMemberS{Value: userID},
	}

	item, err := ups.Dynamo.GetItem(ctx, models.UserProfilesTable, key)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("profile %s: %w", userID, ErrNotFound)
	}

	var profile models.UserProfile
	err = attributevalue.UnmarshalMap(item, &profile)
	if err != nil {
		return nil, err
	}

	return &profile, nil
}

// DeleteUserProfile removes a user profile
func (ups *UserProfileService) DeleteUserProfile(ctx context.Context, userID string) error {
	key := map[string]types.AttributeValue{
		"userId": &types.AttributeValueMemberS{Value: userID},
	}
	return ups.Dynamo.DeleteItem(ctx, models.UserProfilesTable, key)
}

// GetProfileSummary returns the display fields embedded in pushed event
// payloads. A missing or unreadable profile degrades to an id-only
// summary rather than failing the mutation that asked for it.
func (ups *UserProfileService) GetProfileSummary(ctx context.Context, userID string) models.ProfileSummary {
	key := map[string]types.AttributeValue{
		"userId": &types.AttributeValueMemberS{Value: userID},
	}

	item, err := ups.Dynamo.GetItem(ctx, models.UserProfilesTable, key)
	if err != nil || item == nil {
		return models.ProfileSummary{UserID: userID}
	}

	return models.ProfileSummary{
		UserID:        userID,
		Name:          utils.ExtractString(item, "name"),
		Photo:         utils.ExtractString(item, "photo"),
		SkillsOffered: utils.ExtractStringList(item, "skillsOffered"),
		SkillsWanted:  utils.ExtractStringList(item, "skillsWanted"),
	}
}
