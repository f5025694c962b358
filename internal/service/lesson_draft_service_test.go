package service

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/skole-api/internal/dto"
	"github.com/noah-isme/skole-api/internal/models"
)

func multipartFile(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["file"][0]
}

func TestCreateDraftRequiresContentRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.profile(t, "student")
	f.profile(t, "teacher", asApprovedTeacher())
	svc := NewLessonDraftService(f.drafts, f.profiles, testValidator(), testLogger())

	_, err := svc.Create(ctx, "student", dto.LessonDraftCreateRequest{Title: "Hei"})
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.Create(ctx, "", dto.LessonDraftCreateRequest{Title: "Hei"})
	require.ErrorIs(t, err, ErrAuthenticationRequired)

	resp, err := svc.Create(ctx, "teacher", dto.LessonDraftCreateRequest{
		Title:      "<b>Min</b> dag",
		SourceText: "  Jeg står opp.  ",
		Level:      "A2",
		Topics:     []string{"daily", "daily", " "},
		Tasks:      []dto.LessonTaskPayload{{Type: "mcq", Prompt: "Når?"}},
	})
	require.NoError(t, err)
	require.Equal(t, "Min dag", resp.Title)
	require.Equal(t, "Jeg står opp.", resp.SourceText)
	require.Equal(t, models.LessonStatusDraft, resp.Status)
	require.Equal(t, models.PublishStateNone, resp.PublishState)
	require.Equal(t, models.DraftLocationPrimary, resp.Location)
	require.Equal(t, []string{"daily"}, resp.Topics)

	mine, err := svc.ListMine(ctx, "teacher")
	require.NoError(t, err)
	require.Len(t, mine, 1)
}

func TestCreateDraftKeepsPunctuationInTitle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.profile(t, "teacher", asApprovedTeacher())
	svc := NewLessonDraftService(f.drafts, f.profiles, testValidator(), testLogger())

	resp, err := svc.Create(ctx, "teacher", dto.LessonDraftCreateRequest{Title: `<i>Per & Kari's</i> "tur"`})
	require.NoError(t, err)
	require.Equal(t, `Per & Kari's "tur"`, resp.Title)

	stored, _, err := f.drafts.Locate(ctx, resp.ID)
	require.NoError(t, err)
	require.Equal(t, `Per & Kari's "tur"`, stored.Title)
}

func TestUpdateDraftOwnerOrAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.profile(t, "teacher", asApprovedTeacher())
	f.profile(t, "other", asApprovedTeacher())
	f.profile(t, "admin", asAdmin())
	f.draft(t, "d1", "teacher", "Title", "Text")
	svc := NewLessonDraftService(f.drafts, f.profiles, testValidator(), testLogger())

	title := "Changed"
	_, err := svc.Update(ctx, "other", "d1", dto.LessonDraftUpdateRequest{Title: &title})
	require.ErrorIs(t, err, ErrNotOwner)

	resp, err := svc.Update(ctx, "admin", "d1", dto.LessonDraftUpdateRequest{Title: &title})
	require.NoError(t, err)
	require.Equal(t, "Changed", resp.Title)
	require.Equal(t, "Text", resp.SourceText)

	_, err = svc.Get(ctx, "teacher", "missing")
	require.ErrorIs(t, err, ErrDraftNotFound)
}

func TestImportSourceAcceptsPlainTextOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.profile(t, "teacher", asApprovedTeacher())
	f.profile(t, "other", asApprovedTeacher())
	f.draft(t, "d1", "teacher", "Title", "")
	svc := NewLessonDraftService(f.drafts, f.profiles, testValidator(), testLogger())

	resp, err := svc.ImportSource(ctx, "teacher", "d1", multipartFile(t, "story.txt", []byte("Det var en gang en katt.\n")))
	require.NoError(t, err)
	require.Equal(t, "Det var en gang en katt.", resp.SourceText)

	stored, _, err := f.drafts.Locate(ctx, "d1")
	require.NoError(t, err)
	require.Equal(t, "Det var en gang en katt.", stored.SourceText)

	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}
	_, err = svc.ImportSource(ctx, "teacher", "d1", multipartFile(t, "image.txt", png))
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.ImportSource(ctx, "teacher", "d1", multipartFile(t, "empty.txt", []byte("   \n")))
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.ImportSource(ctx, "other", "d1", multipartFile(t, "story.txt", []byte("Hei")))
	require.ErrorIs(t, err, ErrNotOwner)

	_, err = svc.ImportSource(ctx, "teacher", "d1", nil)
	require.ErrorIs(t, err, ErrValidation)
}
