package persistence

import (
	"context"
	"errors"
	"log/slog"

	"innersight/internal/auth"
	"innersight/internal/core"
)

// ProfilePersonalization loads the personalization of the user in ctx from
// stored profiles.
type ProfilePersonalization struct {
	profiles ProfileRepository
	log      *slog.Logger
}

func NewProfilePersonalization(profiles ProfileRepository, log *slog.Logger) *ProfilePersonalization {
	if log == nil {
		log = slog.Default()
	}
	return &ProfilePersonalization{profiles: profiles, log: log}
}

// Personalization reports false when there is no user, no profile, or the
// profile has nothing useful in it. Lookup errors are logged, not returned.
func (p *ProfilePersonalization) Personalization(ctx context.Context) (*core.PersonalizationContext, bool) {
	userID, err := auth.UserIDFromContext(ctx)
	if err != nil {
		return nil, false
	}

	profile, err := p.profiles.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			p.log.Warn("Failed to load profile for personalization", "user_id", userID, "error", err)
		}
		return nil, false
	}

	pctx := profile.Personalization
	if pctx.IsEmpty() {
		return nil, false
	}
	return &pctx, true
}
