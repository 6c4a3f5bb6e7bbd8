package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/lanternroom/lantern-backend/internal/domain"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, email string) *domain.User {
	tb.Helper()
	u := &domain.User{
		ID:        uuid.New(),
		Email:     email,
		FirstName: "A",
		LastName:  "B",
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedConversation(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, metadata string) *domain.Conversation {
	tb.Helper()
	if metadata == "" {
		metadata = "{}"
	}
	c := &domain.Conversation{
		ID:       uuid.New(),
		UserID:   userID,
		Title:    "conversation",
		Status:   "active",
		Metadata: datatypes.JSON([]byte(metadata)),
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed conversation: %v", err)
	}
	return c
}

func SeedResource(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, filename, extractedText string) *domain.Resource {
	tb.Helper()
	r := &domain.Resource{
		ID:                 uuid.New(),
		UserID:             userID,
		Type:               domain.ResourceTypeFileUpload,
		Filename:           &filename,
		ExtractedText:      extractedText,
		ExtractionMetadata: datatypes.JSON([]byte(`{}`)),
	}
	if err := tx.WithContext(ctx).Create(r).Error; err != nil {
		tb.Fatalf("seed resource: %v", err)
	}
	return r
}

func SeedUnit(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, conversationID *uuid.UUID) *domain.Unit {
	tb.Helper()
	u := &domain.Unit{
		ID:                 uuid.New(),
		UserID:             userID,
		ConversationID:     conversationID,
		Title:              "unit",
		Status:             "draft",
		LearningObjectives: datatypes.JSON([]byte(`[]`)),
		Metadata:           datatypes.JSON([]byte(`{}`)),
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed unit: %v", err)
	}
	return u
}
