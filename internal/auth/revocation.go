package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/meduzzen/messenger/internal/cache"
	"github.com/meduzzen/messenger/internal/models"
)

// Revocations tracks revoked token ids.
type Revocations interface {
	Revoke(ctx context.Context, tokenID string, userID uint, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error)
	Prune(ctx context.Context, now time.Time) (int64, error)
}

type dbRevocations struct {
	db *gorm.DB
}

func NewDBRevocations(db *gorm.DB) Revocations {
	return &dbRevocations{db: db}
}

// Revoke is idempotent: revoking the same jti twice keeps one row.
func (r *dbRevocations) Revoke(ctx context.Context, tokenID string, userID uint, expiresAt time.Time) error {
	row := models.BlacklistedToken{TokenID: tokenID, UserID: userID, ExpiresAt: expiresAt.UTC()}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "token_id"}}, DoNothing: true}).
		Create(&row).Error
}

func (r *dbRevocations) IsRevoked(ctx context.Context, tokenID string, _ time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.BlacklistedToken{}).Where("token_id = ?", tokenID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to query blacklist: %w", err)
	}
	return count > 0, nil
}

func (r *dbRevocations) Prune(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at < ?", now.UTC()).Delete(&models.BlacklistedToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune blacklist: %w", res.Error)
	}
	return res.RowsAffected, nil
}

const (
	revokedKeyPrefix = "revoked:"
	revokedYes       = "1"
	revokedNo        = "0"

	// Negative answers expire quickly in case a revoke on another
	// instance failed to reach the cache.
	negativeTTL = time.Minute
)

// cachedRevocations answers lookups from the cache and falls back to the
// store on a miss or a cache failure. Entries live no longer than the token.
type cachedRevocations struct {
	store Revocations
	cache cache.Cache
	now   func() time.Time
}

func NewCachedRevocations(store Revocations, c cache.Cache) Revocations {
	return &cachedRevocations{store: store, cache: c, now: time.Now}
}

func (r *cachedRevocations) Revoke(ctx context.Context, tokenID string, userID uint, expiresAt time.Time) error {
	if err := r.store.Revoke(ctx, tokenID, userID, expiresAt); err != nil {
		return err
	}
	r.remember(ctx, tokenID, revokedYes, expiresAt)
	return nil
}

func (r *cachedRevocations) IsRevoked(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error) {
	val, err := r.cache.Get(ctx, revokedKeyPrefix+tokenID)
	switch {
	case err == nil:
		return val == revokedYes, nil
	case !errors.Is(err, cache.ErrMiss):
		log.Warn("revocation cache lookup failed", "err", err)
	}

	revoked, err := r.store.IsRevoked(ctx, tokenID, expiresAt)
	if err != nil {
		return false, err
	}
	if revoked {
		r.remember(ctx, tokenID, revokedYes, expiresAt)
	} else {
		r.rememberAbsent(ctx, tokenID, minTime(expiresAt, r.now().Add(negativeTTL)))
	}
	return revoked, nil
}

func (r *cachedRevocations) Prune(ctx context.Context, now time.Time) (int64, error) {
	return r.store.Prune(ctx, now)
}

func (r *cachedRevocations) remember(ctx context.Context, tokenID, value string, expiresAt time.Time) {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return
	}
	if err := r.cache.Set(ctx, revokedKeyPrefix+tokenID, value, ttl); err != nil {
		log.Warn("revocation cache write failed", "err", err)
	}
}

// rememberAbsent caches a negative answer without replacing an entry a
// concurrent Revoke wrote after the store was read.
func (r *cachedRevocations) rememberAbsent(ctx context.Context, tokenID string, expiresAt time.Time) {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return
	}
	if _, err := r.cache.SetNX(ctx, revokedKeyPrefix+tokenID, revokedNo, ttl); err != nil {
		log.Warn("revocation cache write failed", "err", err)
	}
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
