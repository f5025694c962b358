package service

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/skole-api/internal/models"
	"github.com/noah-isme/skole-api/internal/repository"
)

// Identity is the verified caller as established by the bearer token. A nil *Identity means
// no token was presented.
type Identity struct {
	UID         string
	Anonymous   bool
	Email       string
	DisplayName string
}

// SignedIn reports whether the identity carries a uid.
func (i *Identity) SignedIn() bool {
	return i != nil && strings.TrimSpace(i.UID) != ""
}

// Named reports whether the identity is a signed-in, non-anonymous user.
func (i *Identity) Named() bool {
	return i.SignedIn() && !i.Anonymous
}

// loadActor fetches the caller's profile. A missing profile yields nil so the evaluator denies.
func loadActor(ctx context.Context, profiles repository.ProfileRepository, uid string) (*models.UserProfile, error) {
	if strings.TrimSpace(uid) == "" {
		return nil, ErrAuthenticationRequired
	}

	profile, err := profiles.Get(ctx, uid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

func stringPtr(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
