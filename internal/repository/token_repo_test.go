package repository

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stockrhythm/gatewayapi/internal/config"
)

func testDB(t *testing.T) *TokenRepository {
	t.Helper()
	cfg := &config.Config{
		DBDriver: "sqlite",
		DBDsn:    filepath.Join(t.TempDir(), "gateway.db"),
	}
	db, err := Connect(cfg)
	require.NoError(t, err)
	return NewTokenRepository(db)
}

func TestTokenSaveAndGet(t *testing.T) {
	t.Parallel()
	repo := testDB(t)

	require.NoError(t, repo.Save("tok-1", 3600, 0, "refresh-1"))

	token, err := repo.GetValidToken()
	require.NoError(t, err)
	require.Equal(t, "tok-1", token)
}

func TestTokenEmptyWhenMissing(t *testing.T) {
	t.Parallel()
	repo := testDB(t)

	token, err := repo.GetValidToken()
	require.NoError(t, err)
	require.Empty(t, token)
}

func TestTokenSaveOverwrites(t *testing.T) {
	t.Parallel()
	repo := testDB(t)

	require.NoError(t, repo.Save("tok-1", 3600, 0, ""))
	require.NoError(t, repo.Save("tok-2", 3600, 0, ""))

	token, err := repo.GetValidToken()
	require.NoError(t, err)
	require.Equal(t, "tok-2", token)
}

func TestTokenExpires(t *testing.T) {
	t.Parallel()
	repo := testDB(t)

	start := time.Now()
	require.NoError(t, repo.Save("tok-1", 3600, 0, ""))

	// Advance the clock past the one hour lifetime
	repo.SetClock(func() time.Time { return start.Add(2 * time.Hour) })

	token, err := repo.GetValidToken()
	require.NoError(t, err)
	require.Empty(t, token)
}

func TestTokenExplicitExpiresAt(t *testing.T) {
	t.Parallel()
	repo := testDB(t)

	expiresAt := time.Now().Add(time.Minute).Unix()
	require.NoError(t, repo.Save("tok-1", 0, expiresAt, ""))

	token, err := repo.GetValidToken()
	require.NoError(t, err)
	require.Equal(t, "tok-1", token)
}

func TestTokenDefaultLifetime(t *testing.T) {
	t.Parallel()
	repo := testDB(t)

	start := time.Now()
	repo.SetClock(func() time.Time { return start })
	require.NoError(t, repo.Save("tok-1", 0, 0, ""))

	// Just under 24 hours: still valid
	repo.SetClock(func() time.Time { return start.Add(23 * time.Hour) })
	token, err := repo.GetValidToken()
	require.NoError(t, err)
	require.Equal(t, "tok-1", token)

	// Past 24 hours: expired
	repo.SetClock(func() time.Time { return start.Add(25 * time.Hour) })
	token, err = repo.GetValidToken()
	require.NoError(t, err)
	require.Empty(t, token)
}
