package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lanternroom/lantern-backend/internal/domain"
	"github.com/lanternroom/lantern-backend/internal/pkg/dbctx"
	errs "github.com/lanternroom/lantern-backend/internal/pkg/errors"
)

func TestCreateLearnerResourceValidation(t *testing.T) {
	userID := uuid.New()
	tests := []struct {
		name  string
		input CreateResourceInput
		ok    bool
	}{
		{
			name:  "file upload with filename",
			input: CreateResourceInput{UserID: userID, Type: domain.ResourceTypeFileUpload, Filename: "notes.pdf", ExtractedText: "body"},
			ok:    true,
		},
		{
			name:  "photo with filename",
			input: CreateResourceInput{UserID: userID, Type: domain.ResourceTypePhoto, Filename: "whiteboard.jpg"},
			ok:    true,
		},
		{
			name:  "url with source url",
			input: CreateResourceInput{UserID: userID, Type: domain.ResourceTypeURL, SourceURL: "https://example.com/article"},
			ok:    true,
		},
		{
			name:  "file upload missing filename",
			input: CreateResourceInput{UserID: userID, Type: domain.ResourceTypeFileUpload},
		},
		{
			name:  "url with filename instead",
			input: CreateResourceInput{UserID: userID, Type: domain.ResourceTypeURL, Filename: "notes.pdf"},
		},
		{
			name:  "upload with both filename and url",
			input: CreateResourceInput{UserID: userID, Type: domain.ResourceTypeFileUpload, Filename: "a", SourceURL: "https://b"},
		},
		{
			name:  "generated source rejected from learner path",
			input: CreateResourceInput{UserID: userID, Type: domain.ResourceTypeGeneratedSource},
		},
		{
			name:  "unknown type",
			input: CreateResourceInput{UserID: userID, Type: "carrier_pigeon", Filename: "a"},
		},
		{
			name:  "missing user",
			input: CreateResourceInput{Type: domain.ResourceTypeFileUpload, Filename: "a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewResourceService(nil, testLogger(t), newFakeResourceRepo())
			res, err := svc.CreateLearnerResource(dbctx.Context{Ctx: context.Background()}, tt.input)
			if tt.ok {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if res.ID == uuid.Nil {
					t.Fatal("resource id not assigned")
				}
				return
			}
			if !errs.Is(err, errs.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestCreateLearnerResourceCapsExtractedText(t *testing.T) {
	svc := NewResourceService(nil, testLogger(t), newFakeResourceRepo())
	res, err := svc.CreateLearnerResource(dbctx.Context{Ctx: context.Background()}, CreateResourceInput{
		UserID:        uuid.New(),
		Type:          domain.ResourceTypeFileUpload,
		Filename:      "big.txt",
		ExtractedText: strings.Repeat("a", MaxExtractedTextBytes+5000),
	})
	if err != nil {
		t.Fatalf("CreateLearnerResource: %v", err)
	}
	if len(res.ExtractedText) != MaxExtractedTextBytes {
		t.Fatalf("extracted text = %d bytes, want %d", len(res.ExtractedText), MaxExtractedTextBytes)
	}
}

func TestCreateGeneratedSourceMetadata(t *testing.T) {
	repo := newFakeResourceRepo()
	svc := NewResourceService(nil, testLogger(t), repo)
	userID := uuid.New()
	unitID := uuid.New()

	res, err := svc.CreateGeneratedSource(dbctx.Context{Ctx: context.Background()}, userID, unitID, "supplemental body", GeneratedSourceMetadata{
		Method:         GeneratedSourceMethodAISupplemental,
		GeneratedAt:    time.Now(),
		UncoveredLOIDs: []string{"lo_2"},
	})
	if err != nil {
		t.Fatalf("CreateGeneratedSource: %v", err)
	}
	if res.Type != domain.ResourceTypeGeneratedSource {
		t.Fatalf("type = %q", res.Type)
	}
	if res.Filename != nil || res.SourceURL != nil {
		t.Fatal("generated source must carry neither filename nor source_url")
	}

	var meta GeneratedSourceMetadata
	if err := json.Unmarshal(res.ExtractionMetadata, &meta); err != nil {
		t.Fatalf("decode extraction metadata: %v", err)
	}
	if meta.Method != GeneratedSourceMethodAISupplemental {
		t.Fatalf("method = %q", meta.Method)
	}
	if meta.GeneratedAt.IsZero() {
		t.Fatal("generated_at missing")
	}
	if len(meta.UncoveredLOIDs) != 1 || meta.UncoveredLOIDs[0] != "lo_2" {
		t.Fatalf("uncovered_lo_ids = %v", meta.UncoveredLOIDs)
	}
	if meta.UnitID != unitID.String() {
		t.Fatalf("unit_id = %q", meta.UnitID)
	}
}

func TestCreateGeneratedSourceValidation(t *testing.T) {
	svc := NewResourceService(nil, testLogger(t), newFakeResourceRepo())
	dbc := dbctx.Context{Ctx: context.Background()}
	userID := uuid.New()
	goodMeta := GeneratedSourceMetadata{
		Method:         GeneratedSourceMethodAISupplemental,
		GeneratedAt:    time.Now(),
		UncoveredLOIDs: []string{},
	}

	if _, err := svc.CreateGeneratedSource(dbc, uuid.Nil, uuid.New(), "body", goodMeta); !errs.Is(err, errs.ErrValidation) {
		t.Fatalf("missing user: %v", err)
	}
	if _, err := svc.CreateGeneratedSource(dbc, userID, uuid.New(), "", goodMeta); !errs.Is(err, errs.ErrValidation) {
		t.Fatalf("empty text: %v", err)
	}
	noMethod := goodMeta
	noMethod.Method = ""
	if _, err := svc.CreateGeneratedSource(dbc, userID, uuid.New(), "body", noMethod); !errs.Is(err, errs.ErrValidation) {
		t.Fatalf("missing method: %v", err)
	}
	noTime := goodMeta
	noTime.GeneratedAt = time.Time{}
	if _, err := svc.CreateGeneratedSource(dbc, userID, uuid.New(), "body", noTime); !errs.Is(err, errs.ErrValidation) {
		t.Fatalf("missing generated_at: %v", err)
	}
	noIDs := goodMeta
	noIDs.UncoveredLOIDs = nil
	if _, err := svc.CreateGeneratedSource(dbc, userID, uuid.New(), "body", noIDs); !errs.Is(err, errs.ErrValidation) {
		t.Fatalf("nil uncovered list: %v", err)
	}

	// Empty-but-present list is valid.
	if _, err := svc.CreateGeneratedSource(dbc, userID, uuid.New(), "body", goodMeta); err != nil {
		t.Fatalf("empty uncovered list should be accepted: %v", err)
	}
}
