package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/skole-api/internal/dto"
	"github.com/noah-isme/skole-api/internal/handler"
	"github.com/noah-isme/skole-api/internal/models"
	"github.com/noah-isme/skole-api/internal/service"
)

type stubLifecycleService struct {
	service.LessonLifecycleService
	lesson dto.PublishedLessonResponse
}

func (s stubLifecycleService) GetPublished(context.Context, string, string) (dto.PublishedLessonResponse, error) {
	return s.lesson, nil
}

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	schemaPath, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)
	return schema
}

func fetchPublished(t *testing.T, lesson dto.PublishedLessonResponse) interface{} {
	t.Helper()

	h := handler.NewLessonLifecycleHandler(stubLifecycleService{lesson: lesson}, validator.New(), zerolog.Nop())
	app := fiber.New()
	h.Register(app.Group("/api/v1/lessons"), handler.RouteGuards{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/lessons/published/"+lesson.ID, nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	return payload
}

func TestPublishedLessonContract(t *testing.T) {
	schema := compileSchema(t, "published_lesson.schema.json")

	now := time.Now().UTC()
	reviewer := "admin-1"
	signed := dto.NewPublishedLessonResponse(models.PublishedLesson{
		ID:                   "lesson-1",
		OwnerID:              "teacher-1",
		Title:                "Test",
		SourceText:           "Hello world",
		Level:                "B1",
		Language:             "norsk",
		Topics:               []string{"familie"},
		Tasks:                []models.LessonTask{{Type: "mcq", Prompt: "Velg", Options: []string{"a", "b"}}},
		IsActive:             true,
		Visibility:           models.VisibilityPublic,
		PublishState:         models.PublishStatePublished,
		ModerationStatus:     models.ModerationApproved,
		ModerationReviewedBy: &reviewer,
		ModerationReviewedAt: &now,
		SignedBy: models.SignedBy{
			UID:                "teacher-1",
			Org:                "321skole",
			AttestationVersion: "v1",
			SignedAt:           &now,
		},
		PublishedAt: &now,
		UpdatedAt:   now,
	})
	require.NoError(t, schema.Validate(fetchPublished(t, signed)))

	unsigned := dto.NewPublishedLessonResponse(models.PublishedLesson{
		ID:               "lesson-2",
		OwnerID:          "teacher-1",
		Title:            "Legacy",
		SourceText:       "Old",
		IsActive:         false,
		Visibility:       models.VisibilityUnlisted,
		PublishState:     models.PublishStateNone,
		ModerationStatus: models.ModerationPending,
		UpdatedAt:        now,
	})
	require.Nil(t, unsigned.SignedBy)
	require.NoError(t, schema.Validate(fetchPublished(t, unsigned)))
}
