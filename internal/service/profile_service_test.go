package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/skole-api/internal/dto"
	"github.com/noah-isme/skole-api/internal/models"
)

func newProfileService(f *fixture) *profileService {
	return NewProfileService(f.profiles, f.audit, testValidator(), testLogger()).(*profileService)
}

func TestEnsureProfileCreatesDefaults(t *testing.T) {
	f := newFixture(t)
	svc := newProfileService(f)
	ctx := context.Background()

	resp, err := svc.EnsureProfile(ctx, &Identity{UID: "u1", Email: "u1@example.com", DisplayName: "Ada"}, dto.EnsureProfileRequest{Locale: "nb"})
	require.NoError(t, err)
	require.Equal(t, "u1", resp.UID)
	require.Equal(t, map[string]bool{"student": true}, resp.Roles)
	require.Equal(t, models.ApprovalNone, resp.TeacherStatus)
	require.Equal(t, models.ApprovalNone, resp.CreatorStatus)
	require.Equal(t, map[string]bool{"publish": false, "sell": false, "pdf": true, "tts": true, "vocab": true}, resp.Caps)
	require.Equal(t, 1, resp.LoginCount)
	require.Equal(t, "nb", resp.Locale)
}

func TestEnsureProfileNeverOverwritesExistingValues(t *testing.T) {
	f := newFixture(t)
	svc := newProfileService(f)
	ctx := context.Background()

	existing := models.UserProfile{
		UID:           "u2",
		DisplayName:   "Original",
		Roles:         models.ProfileRoles{Student: models.BoolPtr(false), Teacher: models.BoolPtr(true)},
		TeacherStatus: models.ApprovalApproved,
		Caps:          models.ProfileCaps{Publish: models.BoolPtr(true), PDF: models.BoolPtr(false)},
		LoginCount:    4,
	}
	require.NoError(t, f.profiles.Create(ctx, &existing))

	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = fixedClock(first)
	resp, err := svc.EnsureProfile(ctx, &Identity{UID: "u2", Email: "new@example.com", DisplayName: "Replacement"}, dto.EnsureProfileRequest{})
	require.NoError(t, err)

	require.Equal(t, "Original", resp.DisplayName)
	require.Equal(t, "new@example.com", resp.Email)
	require.Equal(t, false, resp.Roles["student"])
	require.Equal(t, true, resp.Roles["teacher"])
	require.Equal(t, models.ApprovalApproved, resp.TeacherStatus)
	require.Equal(t, models.ApprovalNone, resp.CreatorStatus)
	require.Equal(t, true, resp.Caps["publish"])
	require.Equal(t, false, resp.Caps["pdf"])
	require.Equal(t, true, resp.Caps["tts"])
	require.Equal(t, 5, resp.LoginCount)

	second := first.Add(time.Hour)
	svc.now = fixedClock(second)
	again, err := svc.EnsureProfile(ctx, &Identity{UID: "u2"}, dto.EnsureProfileRequest{})
	require.NoError(t, err)
	require.Equal(t, resp.Roles, again.Roles)
	require.Equal(t, resp.Caps, again.Caps)
	require.Equal(t, 6, again.LoginCount)
	require.True(t, again.LastLoginAt.Equal(second))
}

func TestEnsureProfileRefusesAnonymousIdentity(t *testing.T) {
	f := newFixture(t)
	svc := newProfileService(f)

	_, err := svc.EnsureProfile(context.Background(), &Identity{UID: "anon", Anonymous: true}, dto.EnsureProfileRequest{})
	require.ErrorIs(t, err, ErrAnonymousIdentity)
	require.ErrorIs(t, err, ErrAuthenticationRequired)

	_, err = svc.Get(context.Background(), "anon")
	require.ErrorIs(t, err, ErrProfileNotFound)

	_, err = svc.EnsureProfile(context.Background(), &Identity{UID: "u3"}, dto.EnsureProfileRequest{UID: "someone-else"})
	require.ErrorIs(t, err, ErrNotOwner)
}

func TestApplyAndDecideTeacherApplication(t *testing.T) {
	f := newFixture(t)
	svc := newProfileService(f)
	ctx := context.Background()

	f.profile(t, "applicant")
	f.profile(t, "admin", asAdmin())
	f.profile(t, "student")

	resp, err := svc.Apply(ctx, &Identity{UID: "applicant"}, dto.ApplyRequest{Kind: "teacher"})
	require.NoError(t, err)
	require.Equal(t, models.ApprovalPending, resp.TeacherStatus)

	me, err := svc.Me(ctx, "applicant")
	require.NoError(t, err)
	require.Equal(t, []string{"student"}, me.Modes)

	approve := true
	_, err = svc.Decide(ctx, "student", "applicant", dto.ApplicationDecisionRequest{Kind: "teacher", Approve: &approve})
	require.ErrorIs(t, err, ErrAuthorizationDenied)

	resp, err = svc.Decide(ctx, "admin", "applicant", dto.ApplicationDecisionRequest{Kind: "teacher", Approve: &approve})
	require.NoError(t, err)
	require.Equal(t, models.ApprovalApproved, resp.TeacherStatus)

	me, err = svc.Me(ctx, "applicant")
	require.NoError(t, err)
	require.Equal(t, []string{"student", "teacher", "creator"}, me.Modes)
	require.Equal(t, "teacher", me.DefaultMode)

	events := f.auditEvents(t, AuditActionProfileDecision)
	require.Len(t, events, 2)
	outcomes := []string{events[0].Outcome, events[1].Outcome}
	require.ElementsMatch(t, []string{models.AuditOutcomeBlocked, models.AuditOutcomeSucceeded}, outcomes)

	_, err = svc.Apply(ctx, &Identity{UID: "applicant"}, dto.ApplyRequest{Kind: "teacher"})
	require.NoError(t, err)
	profile, err := svc.Get(ctx, "applicant")
	require.NoError(t, err)
	require.Equal(t, models.ApprovalApproved, profile.TeacherStatus)
}
