package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

		"github.com/noah-isme/skole-api/internal/config"
	"github.com/noah-isme/skole-api/internal/database"
	"github.com/noah-isme/skole-api/internal/handler"
	"github.com/noah-isme/skole-api/internal/models"
	"github.com/noah-isme/skole-api/internal/repository"
	"github.com/noah-isme/skole-api/internal/router"
	"github.com/noah-isme/skole-api/internal/service"
	"github.com/noah-isme/skole-api/pkg/ai"
)

const (
	testSecret     = "handler-secret"
	testAdminToken = "handler-admin-token"
)

type apiEnv struct {
	app *fiber.App
	db  *gorm.DB
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
	Details json.RawMessage `json:"details"`
}

func setupAPI(t *testing.T) *apiEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	logger := zerolog.Nop()
	validate := validator.New(validator.WithRequiredStructEnabled())
	cfg := config.Config{
		AppName:               "skole-test",
		JWTSecret:             testSecret,
		AdminQueryToken:       testAdminToken,
		AdminQueryMaxPageSize: 50,
		SpaceCodeAttempts:     5,
		StreamKeepAlive:       time.Second,
	}

	profileRepo := repository.NewProfileRepository(db)
	draftRepo := repository.NewLessonDraftRepository(db)
	publishedRepo := repository.NewPublishedLessonRepository(db)
	spaceRepo := repository.NewSpaceRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	libraryRepo := repository.NewLibrarySubmissionRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	auditService := service.NewAuditService(auditRepo, logger)
	profileService := service.NewProfileService(profileRepo, auditService, validate, logger)
	draftService := service.NewLessonDraftService(draftRepo, profileRepo, validate, logger)
	generationService := service.NewContentGenerationService(draftRepo, profileRepo, ai.Disabled{}, validate, logger)
	lifecycleService := service.NewLessonLifecycleService(service.LessonLifecycleConfig{
		Drafts:    draftRepo,
		Published: publishedRepo,
		Profiles:  profileRepo,
		Audit:     auditService,
		Signing:   service.SigningConfig{Org: "321skole", AttestationVersion: "v1"},
		Validator: validate,
		Logger:    logger,
	})
	feedService := service.NewSpaceFeedService(nil, "skole-test:spaces", nil, logger)
	spaceService := service.NewSpaceService(service.SpaceServiceConfig{
		Spaces:       spaceRepo,
		Submissions:  submissionRepo,
		Published:    publishedRepo,
		Profiles:     profileRepo,
		Feed:         feedService,
		Validator:    validate,
		Logger:       logger,
		CodeAttempts: cfg.SpaceCodeAttempts,
	})
	libraryService := service.NewLibrarySubmissionService(libraryRepo, publishedRepo, auditService, cfg.AdminQueryToken, cfg.AdminQueryMaxPageSize, validate, logger)

	app := fiber.New()
	router.Register(app, cfg, router.Dependencies{
		DB:                       db,
		Profiles:                 profileRepo,
		ProfileHandler:           handler.NewProfileHandler(profileService, logger),
		LessonDraftHandler:       handler.NewLessonDraftHandler(draftService, generationService, logger),
		LessonLifecycleHandler:   handler.NewLessonLifecycleHandler(lifecycleService, validate, logger),
		LibrarySubmissionHandler: handler.NewLibrarySubmissionHandler(libraryService, logger),
		SpaceHandler:             handler.NewSpaceHandler(spaceService, feedService, logger, cfg.StreamKeepAlive),
		AuditHandler:             handler.NewAuditHandler(auditService, logger),
	})

	env := &apiEnv{app: app, db: db}
	env.seedProfile(t, "teacher-1", func(p *models.UserProfile) {
		p.Roles.Teacher = models.BoolPtr(true)
		p.TeacherStatus = models.ApprovalApproved
	})
	env.seedProfile(t, "teacher-2", func(p *models.UserProfile) {
		p.Roles.Teacher = models.BoolPtr(true)
		p.TeacherStatus = models.ApprovalApproved
	})
	env.seedProfile(t, "admin-1", func(p *models.UserProfile) {
		p.Roles.Admin = models.BoolPtr(true)
	})
	env.seedProfile(t, "student-1", func(p *models.UserProfile) {
		p.Roles.Student = models.BoolPtr(true)
	})
	return env
}

func (e *apiEnv) seedProfile(t *testing.T, uid string, mutate func(p *models.UserProfile)) {
	t.Helper()
	profile := models.UserProfile{
		UID:           uid,
		Email:         uid + "@example.com",
		DisplayName:   uid,
		TeacherStatus: models.ApprovalNone,
		CreatorStatus: models.ApprovalNone,
	}
	mutate(&profile)
	require.NoError(t, e.db.Create(&profile).Error)
}

func token(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	claims["exp"] = time.Now().Add(time.Hour).Unix()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func userToken(t *testing.T, uid string) string {
	return token(t, jwt.MapClaims{"sub": uid, "email": uid + "@example.com", "name": uid})
}

func anonToken(t *testing.T, uid string) string {
	return token(t, jwt.MapClaims{"sub": uid, "anonymous": true})
}

func (e *apiEnv) call(t *testing.T, method, path, bearer string, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func decodeData(t *testing.T, env envelope, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, target))
}

func (e *apiEnv) createDraft(t *testing.T, owner string, body map[string]interface{}) string {
	t.Helper()
	status, resp := e.call(t, http.MethodPost, "/api/v1/lessons/drafts", userToken(t, owner), body)
	require.Equal(t, http.StatusCreated, status, resp.Message)

	var draft struct {
		ID string `json:"id"`
	}
	decodeData(t, resp, &draft)
	require.NotEmpty(t, draft.ID)
	return draft.ID
}

type publishedView struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	SourceText string `json:"source_text"`
	IsActive   bool   `json:"is_active"`
	SignedBy   *struct {
		UID      string `json:"uid"`
		ViaAdmin bool   `json:"via_admin"`
	} `json:"signed_by"`
}

func TestPublishThenUnpublishKeepsContent(t *testing.T) {
	env := setupAPI(t)
	teacher := userToken(t, "teacher-1")

	draftID := env.createDraft(t, "teacher-1", map[string]interface{}{
		"title":       "Test",
		"source_text": "Hello world",
	})

	status, resp := env.call(t, http.MethodPost, "/api/v1/lessons/publish", teacher, map[string]string{"lessonId": draftID})
	require.Equal(t, http.StatusOK, status, resp.Message)

	var published struct {
		PublishedLessonID string `json:"publishedLessonId"`
	}
	decodeData(t, resp, &published)
	require.Equal(t, draftID, published.PublishedLessonID)

	status, resp = env.call(t, http.MethodGet, "/api/v1/lessons/published/"+draftID, "", nil)
	require.Equal(t, http.StatusOK, status)
	var lesson publishedView
	decodeData(t, resp, &lesson)
	require.True(t, lesson.IsActive)
	require.Equal(t, "Test", lesson.Title)
	require.NotNil(t, lesson.SignedBy)
	require.Equal(t, "teacher-1", lesson.SignedBy.UID)
	require.False(t, lesson.SignedBy.ViaAdmin)

	status, resp = env.call(t, http.MethodPost, "/api/v1/lessons/unpublish", teacher, map[string]string{"id": draftID})
	require.Equal(t, http.StatusOK, status, resp.Message)

	status, resp = env.call(t, http.MethodGet, "/api/v1/lessons/published/"+draftID, teacher, nil)
	require.Equal(t, http.StatusOK, status)
	decodeData(t, resp, &lesson)
	require.False(t, lesson.IsActive)
	require.Equal(t, "Test", lesson.Title)
	require.Equal(t, "Hello world", lesson.SourceText)

	status, resp = env.call(t, http.MethodGet, "/api/v1/lessons/published/"+draftID, "", nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "NotFound", resp.Error)
}

func TestApproveDraftWithoutTitleIsRejected(t *testing.T) {
	env := setupAPI(t)

	draftID := env.createDraft(t, "teacher-1", map[string]interface{}{"source_text": "Only text"})

	status, resp := env.call(t, http.MethodPost, "/api/v1/lessons/review", userToken(t, "admin-1"), map[string]string{
		"id":     draftID,
		"action": "approve",
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "ValidationError", resp.Error)

	status, resp = env.call(t, http.MethodGet, "/api/v1/lessons/drafts/"+draftID, userToken(t, "teacher-1"), nil)
	require.Equal(t, http.StatusOK, status)
	var draft struct {
		Status       string `json:"status"`
		PublishState string `json:"publish_state"`
	}
	decodeData(t, resp, &draft)
	require.Equal(t, models.LessonStatusDraft, draft.Status)
	require.Equal(t, models.PublishStateNone, draft.PublishState)
}

func TestAdminApprovalPublishesDraft(t *testing.T) {
	env := setupAPI(t)

	draftID := env.createDraft(t, "teacher-1", map[string]interface{}{"title": "Approved", "source_text": "Body"})

	status, resp := env.call(t, http.MethodPost, "/api/v1/lessons/review", userToken(t, "admin-1"), map[string]string{
		"id":     draftID,
		"action": "approve",
	})
	require.Equal(t, http.StatusOK, status, resp.Message)

	var result struct {
		Status       string `json:"status"`
		PublishState string `json:"publish_state"`
		IsActive     bool   `json:"is_active"`
	}
	decodeData(t, resp, &result)
	require.Equal(t, models.LessonStatusPublished, result.Status)
	require.Equal(t, models.PublishStatePublished, result.PublishState)
	require.True(t, result.IsActive)

	status, resp = env.call(t, http.MethodGet, "/api/v1/lessons/published", "", nil)
	require.Equal(t, http.StatusOK, status)
	var listing []struct {
		ID string `json:"id"`
	}
	decodeData(t, resp, &listing)
	require.Len(t, listing, 1)
	require.Equal(t, draftID, listing[0].ID)
}

func TestLifecycleErrorCodes(t *testing.T) {
	env := setupAPI(t)
	draftID := env.createDraft(t, "teacher-1", map[string]interface{}{"title": "Mine", "source_text": "Text"})

	status, resp := env.call(t, http.MethodPost, "/api/v1/lessons/publish", "", map[string]string{"id": draftID})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "MissingToken", resp.Error)

	status, resp = env.call(t, http.MethodPost, "/api/v1/lessons/review", userToken(t, "teacher-1"), map[string]string{
		"id":     draftID,
		"action": "approve",
	})
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "Unauthorized", resp.Error)

	status, resp = env.call(t, http.MethodPost, "/api/v1/lessons/publish", userToken(t, "teacher-2"), map[string]string{"id": draftID})
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "NotOwner", resp.Error)

	status, resp = env.call(t, http.MethodPost, "/api/v1/lessons/publish", userToken(t, "teacher-1"), map[string]string{"id": "missing"})
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "DraftNotFound", resp.Error)

	status, resp = env.call(t, http.MethodPost, "/api/v1/lessons/review", userToken(t, "admin-1"), map[string]string{"action": "approve"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "ValidationError", resp.Error)

	status, resp = env.call(t, http.MethodPost, "/api/v1/lessons/review", userToken(t, "admin-1"), map[string]string{
		"id":     draftID,
		"action": "publish",
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "ValidationError", resp.Error)
	var details map[string]string
	require.NoError(t, json.Unmarshal(resp.Details, &details))
	require.Equal(t, "oneof", details["Action"])
}

func TestAdminPublishesOnBehalfOfOwner(t *testing.T) {
	env := setupAPI(t)
	draftID := env.createDraft(t, "teacher-1", map[string]interface{}{"title": "Shared", "source_text": "Text"})

	status, resp := env.call(t, http.MethodPost, "/api/v1/lessons/publish", userToken(t, "admin-1"), map[string]string{"id": draftID})
	require.Equal(t, http.StatusOK, status, resp.Message)

	status, resp = env.call(t, http.MethodGet, "/api/v1/lessons/published/"+draftID, "", nil)
	require.Equal(t, http.StatusOK, status)
	var lesson publishedView
	decodeData(t, resp, &lesson)
	require.NotNil(t, lesson.SignedBy)
	require.Equal(t, "admin-1", lesson.SignedBy.UID)
	require.True(t, lesson.SignedBy.ViaAdmin)
}

func TestCreateSpaceRequiresApprovedTeacher(t *testing.T) {
	env := setupAPI(t)
	env.seedProfile(t, "pending-1", func(p *models.UserProfile) {
		p.Roles.Teacher = models.BoolPtr(true)
		p.TeacherStatus = models.ApprovalPending
	})

	status, resp := env.call(t, http.MethodPost, "/api/v1/spaces", "", map[string]interface{}{"title": "Klasse"})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "MissingToken", resp.Error)

	for _, uid := range []string{"pending-1", "admin-1"} {
		status, resp = env.call(t, http.MethodPost, "/api/v1/spaces", userToken(t, uid), map[string]interface{}{"title": "Klasse"})
		require.Equal(t, http.StatusForbidden, status, uid)
		require.Equal(t, "Unauthorized", resp.Error, uid)
	}

	var count int64
	require.NoError(t, env.db.Model(&models.Space{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestSpaceJoinSubmitAndReview(t *testing.T) {
	env := setupAPI(t)
	teacher := userToken(t, "teacher-1")

	lessonID := env.createDraft(t, "teacher-1", map[string]interface{}{"title": "Space lesson", "source_text": "Read this"})
	status, resp := env.call(t, http.MethodPost, "/api/v1/lessons/publish", teacher, map[string]string{"id": lessonID})
	require.Equal(t, http.StatusOK, status, resp.Message)

	status, resp = env.call(t, http.MethodPost, "/api/v1/spaces", userToken(t, "student-1"), map[string]interface{}{"title": "Nope"})
	require.Equal(t, http.StatusForbidden, status)

	status, resp = env.call(t, http.MethodPost, "/api/v1/spaces", teacher, map[string]interface{}{
		"title":      "Klasse 8B",
		"lesson_ids": []string{lessonID},
	})
	require.Equal(t, http.StatusCreated, status, resp.Message)
	var space struct {
		ID     string `json:"id"`
		Code   string `json:"code"`
		IsOpen bool   `json:"is_open"`
	}
	decodeData(t, resp, &space)
	require.Len(t, space.Code, 6)
	require.True(t, space.IsOpen)

	status, resp = env.call(t, http.MethodGet, "/api/v1/spaces/join/"+space.Code, "", nil)
	require.Equal(t, http.StatusOK, status, resp.Message)
	var joined struct {
		Space struct {
			ID string `json:"id"`
		} `json:"space"`
		Lessons []struct {
			ID string `json:"id"`
		} `json:"lessons"`
	}
	decodeData(t, resp, &joined)
	require.Equal(t, space.ID, joined.Space.ID)
	require.Len(t, joined.Lessons, 1)

	submitPath := fmt.Sprintf("/api/v1/spaces/%s/lessons/%s/submissions", space.ID, lessonID)
	status, resp = env.call(t, http.MethodPost, submitPath, "", map[string]interface{}{"answers": map[string]interface{}{"0": "a"}})
	require.Equal(t, http.StatusCreated, status, resp.Message)
	var anonymous struct {
		IsAnon     bool    `json:"is_anon"`
		UID        *string `json:"uid"`
		Authorship string  `json:"authorship"`
	}
	decodeData(t, resp, &anonymous)
	require.True(t, anonymous.IsAnon)
	require.Nil(t, anonymous.UID)
	require.Equal(t, "anonymous", anonymous.Authorship)

	status, resp = env.call(t, http.MethodPost, submitPath, anonToken(t, "anon-7"), map[string]interface{}{"answers": map[string]interface{}{"0": "b"}})
	require.Equal(t, http.StatusCreated, status, resp.Message)
	decodeData(t, resp, &anonymous)
	require.Equal(t, "anonymous_auth", anonymous.Authorship)

	student := userToken(t, "student-1")
	status, resp = env.call(t, http.MethodPost, submitPath, student, map[string]interface{}{"answers": map[string]interface{}{"0": "c"}})
	require.Equal(t, http.StatusCreated, status, resp.Message)
	var named struct {
		ID         string `json:"id"`
		Authorship string `json:"authorship"`
		Locked     bool   `json:"locked"`
	}
	decodeData(t, resp, &named)
	require.Equal(t, "identified", named.Authorship)
	require.False(t, named.Locked)

	status, resp = env.call(t, http.MethodGet, "/api/v1/spaces/"+space.ID+"/submissions", teacher, nil)
	require.Equal(t, http.StatusOK, status)
	var submissions []json.RawMessage
	decodeData(t, resp, &submissions)
	require.Len(t, submissions, 3)

	status, resp = env.call(t, http.MethodGet, "/api/v1/spaces/"+space.ID+"/submissions", userToken(t, "teacher-2"), nil)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "NotOwner", resp.Error)

	reviewPath := fmt.Sprintf("/api/v1/spaces/%s/submissions/%s/review", space.ID, named.ID)
	status, resp = env.call(t, http.MethodPatch, reviewPath, teacher, map[string]string{"status": "reviewed", "feedback": "Godt"})
	require.Equal(t, http.StatusOK, status, resp.Message)
	decodeData(t, resp, &named)
	require.True(t, named.Locked)

	answersPath := fmt.Sprintf("/api/v1/spaces/%s/submissions/%s/answers", space.ID, named.ID)
	status, resp = env.call(t, http.MethodPatch, answersPath, student, map[string]interface{}{"answers": map[string]interface{}{"0": "d"}})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "Locked", resp.Error)

	status, resp = env.call(t, http.MethodPatch, "/api/v1/spaces/"+space.ID, teacher, map[string]interface{}{"is_open": false})
	require.Equal(t, http.StatusOK, status, resp.Message)

	status, resp = env.call(t, http.MethodPost, submitPath, "", map[string]interface{}{"answers": map[string]interface{}{"0": "e"}})
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "SpaceClosed", resp.Error)

	status, resp = env.call(t, http.MethodGet, "/api/v1/spaces/join/ZZZZZZ", "", nil)
	require.Equal(t, http.StatusNotFound, status)
}

func TestLibrarySubmissionAndAdminQuery(t *testing.T) {
	env := setupAPI(t)

	lessonID := env.createDraft(t, "teacher-1", map[string]interface{}{
		"title":       "Library",
		"source_text": "Text",
		"tasks":       []map[string]interface{}{{"type": "mcq", "prompt": "Pick one", "options": []string{"a", "b"}}},
	})
	status, resp := env.call(t, http.MethodPost, "/api/v1/lessons/publish", userToken(t, "teacher-1"), map[string]string{"id": lessonID})
	require.Equal(t, http.StatusOK, status, resp.Message)

	status, resp = env.call(t, http.MethodPost, "/api/v1/lessons/published/"+lessonID+"/submissions", userToken(t, "student-1"), map[string]interface{}{
		"task_index": 0,
		"answer":     map[string]interface{}{"choice": "a"},
		"is_correct": true,
	})
	require.Equal(t, http.StatusCreated, status, resp.Message)
	var submission struct {
		TaskType string `json:"task_type"`
	}
	decodeData(t, resp, &submission)
	require.Equal(t, "mcq", submission.TaskType)

	status, resp = env.call(t, http.MethodGet, "/api/admin/submissions?lessonId="+lessonID, "", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "Unauthorized", resp.Error)

	status, resp = env.call(t, http.MethodGet, "/api/admin/submissions?token="+testAdminToken+"&lessonId="+lessonID, "", nil)
	require.Equal(t, http.StatusOK, status, resp.Message)
	var items []json.RawMessage
	decodeData(t, resp, &items)
	require.Len(t, items, 1)
}

func TestProfileEnsureAndMe(t *testing.T) {
	env := setupAPI(t)
	bearer := userToken(t, "new-user")

	status, resp := env.call(t, http.MethodPost, "/api/v1/profile/ensure", bearer, map[string]string{"locale": "nb"})
	require.Equal(t, http.StatusOK, status, resp.Message)

	status, resp = env.call(t, http.MethodGet, "/api/v1/profile/me", bearer, nil)
	require.Equal(t, http.StatusOK, status, resp.Message)
	var me struct {
		Profile struct {
			UID string `json:"uid"`
		} `json:"profile"`
		Modes       []string `json:"modes"`
		DefaultMode string   `json:"default_mode"`
	}
	decodeData(t, resp, &me)
	require.Equal(t, "new-user", me.Profile.UID)
	require.Contains(t, me.Modes, "student")

	status, resp = env.call(t, http.MethodPost, "/api/v1/profile/ensure", anonToken(t, "anon-1"), nil)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "Unauthorized", resp.Error)
}

func TestAuditLogRequiresAdmin(t *testing.T) {
	env := setupAPI(t)
	env.createDraft(t, "teacher-1", map[string]interface{}{"title": "Audited", "source_text": "Text"})

	status, resp := env.call(t, http.MethodGet, "/api/admin/audit", userToken(t, "teacher-1"), nil)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "Unauthorized", resp.Error)

	status, resp = env.call(t, http.MethodGet, "/api/admin/audit", userToken(t, "admin-1"), nil)
	require.Equal(t, http.StatusOK, status, resp.Message)
}

func TestHealthReportsDependencies(t *testing.T) {
	env := setupAPI(t)

	status, resp := env.call(t, http.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, http.StatusOK, status)

	var health struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	decodeData(t, resp, &health)
	require.Equal(t, "ok", health.Dependencies["database"])
	require.Equal(t, "disabled", health.Dependencies["redis"])
}
