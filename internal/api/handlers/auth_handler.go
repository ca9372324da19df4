package handlers

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stockrhythm/gatewayapi/internal/config"
	"github.com/stockrhythm/gatewayapi/internal/provider"
	"github.com/stockrhythm/gatewayapi/pkg/utils/response"
	"github.com/stockrhythm/gatewayapi/pkg/utils/zaplogger"
)

const (
	upstoxDialogURL = "https://api.upstox.com/v2/login/authorization/dialog"
	stateTTL        = 600 * time.Second
)

// StateStore issues and validates short-lived OAuth state tokens. Expired
// states are pruned on each issue and by the scheduled sweep job.
type StateStore struct {
	mu     sync.Mutex
	states map[string]time.Time
	ttl    time.Duration
}

// NewStateStore creates a state store with the default 600 s TTL
func NewStateStore() *StateStore {
	return &StateStore{states: make(map[string]time.Time), ttl: stateTTL}
}

// Issue mints a fresh state token
func (s *StateStore) Issue() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.prune(now)

	state := uuid.NewString()
	s.states[state] = now
	return state
}

// Prune drops expired states, reporting how many were removed
func (s *StateStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prune(time.Now())
}

func (s *StateStore) prune(now time.Time) int {
	removed := 0
	for state, issued := range s.states {
		if now.Sub(issued) > s.ttl {
			delete(s.states, state)
			removed++
		}
	}
	return removed
}

// Validate consumes a state token, reporting whether it was live
func (s *StateStore) Validate(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	issued, ok := s.states[state]
	if !ok {
		return false
	}
	delete(s.states, state)
	return time.Since(issued) <= s.ttl
}

// TokenSaver persists an exchanged access token
type TokenSaver interface {
	Save(accessToken string, expiresIn int64, expiresAt int64, refreshToken string) error
}

// AuthHandler implements the Upstox OAuth redirect flow
type AuthHandler struct {
	cfg    *config.Config
	tokens TokenSaver
	states *StateStore

	// TokenURL overrides the exchange endpoint. Used by tests.
	TokenURL string
}

// NewAuthHandler creates a new OAuth handler sharing the given state store
func NewAuthHandler(cfg *config.Config, tokens TokenSaver, states *StateStore) *AuthHandler {
	return &AuthHandler{cfg: cfg, tokens: tokens, states: states}
}

// Authorize redirects the browser to the broker authorization dialog with a
// freshly issued state.
func (h *AuthHandler) Authorize(c echo.Context) error {
	if h.cfg.UpstoxAPIKey == "" || h.cfg.UpstoxRedirectURI == "" {
		return response.ErrorResponse(c, http.StatusBadRequest, "InputException", "UPSTOX_API_KEY and UPSTOX_REDIRECT_URI must be configured")
	}

	query := url.Values{}
	query.Set("response_type", "code")
	query.Set("client_id", h.cfg.UpstoxAPIKey)
	query.Set("redirect_uri", h.cfg.UpstoxRedirectURI)
	query.Set("state", h.states.Issue())

	return c.Redirect(http.StatusFound, upstoxDialogURL+"?"+query.Encode())
}

// Callback validates the state, exchanges the code and persists the token
func (h *AuthHandler) Callback(c echo.Context) error {
	code := c.QueryParam("code")
	state := c.QueryParam("state")
	if code == "" {
		return response.ErrorResponse(c, http.StatusBadRequest, "InputException", "Missing code parameter")
	}
	if !h.states.Validate(state) {
		return response.ErrorResponse(c, http.StatusBadRequest, "TokenException", "Invalid or expired state")
	}

	token, err := provider.ExchangeAuthCode(c.Request().Context(), h.TokenURL,
		h.cfg.UpstoxAPIKey, h.cfg.UpstoxAPISecret, code, h.cfg.UpstoxRedirectURI)
	if err != nil {
		zaplogger.Error("OAuth token exchange failed", zaplogger.Fields{"error": err.Error()})
		return response.ErrorResponse(c, http.StatusBadGateway, "TokenException", "Token exchange failed")
	}

	if err := h.tokens.Save(token.AccessToken, token.ExpiresIn, 0, token.RefreshToken); err != nil {
		zaplogger.Error("Failed to persist access token", zaplogger.Fields{"error": err.Error()})
		return response.ErrorResponse(c, http.StatusInternalServerError, "GeneralException", "Failed to persist token")
	}

	zaplogger.Info("Upstox access token stored")
	return c.String(http.StatusOK, "Authorization complete. You can close this window.")
}
