package repository

import (
	"errors"
	"sync"
	"time"

	"github.com/stockrhythm/gatewayapi/internal/models"
	"gorm.io/gorm"
)

const tokenRowID = 1

const defaultTokenLifetime = 24 * time.Hour

// TokenRepository persists a single provider access token with its expiry.
// Safe for concurrent use across sessions.
type TokenRepository struct {
	db  *gorm.DB
	mu  sync.Mutex
	now func() time.Time
}

// NewTokenRepository creates a new repository for provider tokens
func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db, now: time.Now}
}

// Save writes or overwrites the token row. When expiresAt is zero it is
// computed from expiresIn, defaulting to 24 hours.
func (r *TokenRepository) Save(accessToken string, expiresIn int64, expiresAt int64, refreshToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().Unix()
	if expiresAt == 0 {
		lifetime := int64(defaultTokenLifetime / time.Second)
		if expiresIn > 0 {
			lifetime = expiresIn
		}
		expiresAt = now + lifetime
	}

	token := models.TokenModel{
		ID:           tokenRowID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		CreatedAt:    now,
	}

	return r.db.Save(&token).Error
}

// GetValidToken returns the stored token only while it has not expired.
// An empty string means no valid token is available.
func (r *TokenRepository) GetValidToken() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var token models.TokenModel
	result := r.db.Where("id = ?", tokenRowID).First(&token)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", result.Error
	}

	if token.ExpiresAt <= r.now().Unix() {
		return "", nil
	}
	return token.AccessToken, nil
}

// SetClock overrides the repository clock. Used by tests to simulate expiry.
func (r *TokenRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}
