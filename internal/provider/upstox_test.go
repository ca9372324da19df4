package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockrhythm/gatewayapi/internal/errs"
)

type fakeTokenStore struct {
	token string

	savedToken     string
	savedExpiresIn int64
	savedRefresh   string
}

func (s *fakeTokenStore) Save(accessToken string, expiresIn int64, expiresAt int64, refreshToken string) error {
	s.savedToken = accessToken
	s.savedExpiresIn = expiresIn
	s.savedRefresh = refreshToken
	return nil
}

func (s *fakeTokenStore) GetValidToken() (string, error) {
	return s.token, nil
}

type fakeKeyResolver map[string]string

func (r fakeKeyResolver) UpstoxKey(symbol string) (string, bool) {
	key, ok := r[symbol]
	return key, ok
}

func TestUpstoxConnectExplicitTokenWins(t *testing.T) {
	t.Parallel()
	store := &fakeTokenStore{token: "stored"}
	p := NewUpstoxProvider(UpstoxCredentials{AccessToken: "explicit"}, store, nil)

	require.NoError(t, p.Connect(context.Background()))
	require.Equal(t, "explicit", p.accessToken)
}

func TestUpstoxConnectUsesStoredToken(t *testing.T) {
	t.Parallel()
	store := &fakeTokenStore{token: "stored"}
	p := NewUpstoxProvider(UpstoxCredentials{}, store, nil)

	require.NoError(t, p.Connect(context.Background()))
	require.Equal(t, "stored", p.accessToken)
}

func TestUpstoxConnectExchangesAuthCode(t *testing.T) {
	t.Parallel()

	var form map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/login/authorization/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "fresh", "expires_in": 86400, "refresh_token": "refresh",
		})
	}))
	defer srv.Close()

	store := &fakeTokenStore{}
	p := NewUpstoxProvider(UpstoxCredentials{
		APIKey:      "key",
		APISecret:   "secret",
		RedirectURI: "http://localhost/upstox/callback",
		AuthCode:    "the-code",
	}, store, nil)
	p.SetBaseURL(srv.URL)

	require.NoError(t, p.Connect(context.Background()))
	require.Equal(t, "fresh", p.accessToken)

	require.Equal(t, []string{"the-code"}, form["code"])
	require.Equal(t, []string{"key"}, form["client_id"])
	require.Equal(t, []string{"secret"}, form["client_secret"])
	require.Equal(t, []string{"authorization_code"}, form["grant_type"])

	require.Equal(t, "fresh", store.savedToken)
	require.Equal(t, int64(86400), store.savedExpiresIn)
	require.Equal(t, "refresh", store.savedRefresh)
}

func TestUpstoxConnectNoCredentials(t *testing.T) {
	t.Parallel()
	p := NewUpstoxProvider(UpstoxCredentials{}, &fakeTokenStore{}, nil)

	err := p.Connect(context.Background())
	require.Error(t, err)
	require.True(t, errs.IsAuthError(err))
}

func TestUpstoxInstrumentKeyForm(t *testing.T) {
	t.Parallel()
	require.Equal(t, "NSE_EQ|RELIANCE", upstoxInstrumentKey("RELIANCE"))
	require.Equal(t, "NSE_EQ|INE002A01018", upstoxInstrumentKey("NSE_EQ|INE002A01018"))
}

func TestUpstoxPollNormalizesQuotes(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.Equal(t, "NSE_EQ|RELIANCE,NSE_EQ|TCS", r.URL.Query().Get("instrument_key"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"NSE_EQ:RELIANCE": map[string]interface{}{
					"last_price":       2885.5,
					"volume":           120,
					"instrument_token": "NSE_EQ|RELIANCE",
				},
				"NSE_EQ:TCS": map[string]interface{}{
					"ltp":            3900.0,
					"volume_traded":  55,
					"last_trade_time": 1700000000,
				},
			},
		})
	}))
	defer srv.Close()

	p := NewUpstoxProvider(UpstoxCredentials{AccessToken: "tok"}, nil, nil)
	p.SetBaseURL(srv.URL)
	require.NoError(t, p.Connect(context.Background()))
	p.Subscribe([]string{"RELIANCE", "TCS"})

	ticks, err := p.poll(context.Background())
	require.NoError(t, err)
	require.Len(t, ticks, 2)

	bys := map[string]float64{}
	for _, tick := range ticks {
		bys[tick.Symbol] = tick.Price
		require.Equal(t, "upstox", tick.Provider)
	}
	require.Equal(t, 2885.5, bys["NSE_EQ|RELIANCE"])
	require.Equal(t, 3900.0, bys["NSE_EQ:TCS"])
}

func TestUpstoxSnapshotIndexedByRequestSymbol(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"NSE_EQ:RELIANCE": map[string]interface{}{"last_price": 2885.5, "volume": 120},
			},
		})
	}))
	defer srv.Close()

	p := NewUpstoxProvider(UpstoxCredentials{AccessToken: "tok"}, nil, nil)
	p.SetBaseURL(srv.URL)

	snap, err := p.Snapshot(context.Background(), []string{"RELIANCE", "MISSING"})
	require.NoError(t, err)
	require.Len(t, snap, 1)
	require.Equal(t, 2885.5, snap["RELIANCE"]["last_price"])
	require.Equal(t, 120.0, snap["RELIANCE"]["volume"])
}

func TestUpstoxHistoricalCandles(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"candles": [][]interface{}{
					{"2024-06-03T09:15:00+05:30", 100.0, 105.0, 99.0, 104.0, 1200.0},
					{"2024-06-03T09:16:00+05:30", 104.0, 104.5, 101.0, 102.5, 800.0},
				},
			},
		})
	}))
	defer srv.Close()

	p := NewUpstoxProvider(UpstoxCredentials{AccessToken: "tok"}, nil, fakeKeyResolver{
		"RELIANCE": "NSE_EQ|INE002A01018",
	})
	p.SetBaseURL(srv.URL)

	ticks, err := p.Historical(context.Background(), []string{"RELIANCE"}, "2024-06-01", "2024-06-04", "1m")
	require.NoError(t, err)
	require.Len(t, ticks, 2)
	require.Equal(t, "RELIANCE", ticks[0].Symbol)
	require.Equal(t, 104.0, ticks[0].Price)
	require.Equal(t, 1200.0, ticks[0].Volume)
	require.Equal(t, 102.5, ticks[1].Price)
}

func TestUpstoxHistoricalShortCandleSkipped(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"candles": [][]interface{}{
					{"2024-06-03T09:15:00+05:30", 100.0},
				},
			},
		})
	}))
	defer srv.Close()

	p := NewUpstoxProvider(UpstoxCredentials{AccessToken: "tok"}, nil, nil)
	p.SetBaseURL(srv.URL)

	ticks, err := p.Historical(context.Background(), []string{"TCS"}, "2024-06-01", "2024-06-04", "day")
	require.NoError(t, err)
	require.Empty(t, ticks)
}
