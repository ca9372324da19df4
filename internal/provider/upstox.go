package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/stockrhythm/gatewayapi/internal/errs"
	"github.com/stockrhythm/gatewayapi/internal/models"
	"github.com/stockrhythm/gatewayapi/pkg/utils/zaplogger"
)

const upstoxDefaultBaseURL = "https://api.upstox.com/v2"

// UpstoxTokenResponse is the OAuth token exchange response
type UpstoxTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// ExchangeAuthCode exchanges an Upstox authorization code for an access
// token. tokenURL defaults to the production endpoint when empty.
func ExchangeAuthCode(ctx context.Context, tokenURL, apiKey, apiSecret, authCode, redirectURI string) (*UpstoxTokenResponse, error) {
	if tokenURL == "" {
		tokenURL = upstoxDefaultBaseURL + "/login/authorization/token"
	}

	var token UpstoxTokenResponse
	resp, err := resty.New().SetTimeout(requestTimeout).R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"code":          authCode,
			"client_id":     apiKey,
			"client_secret": apiSecret,
			"redirect_uri":  redirectURI,
			"grant_type":    "authorization_code",
		}).
		SetResult(&token).
		Post(tokenURL)
	if err != nil {
		return nil, fmt.Errorf("upstox token exchange failed: %v", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("upstox token exchange failed: %d - %s", resp.StatusCode(), resp.String())
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("upstox token exchange returned no access_token")
	}
	return &token, nil
}

// UpstoxCredentials holds the Upstox Uplink API credentials
type UpstoxCredentials struct {
	APIKey      string
	APISecret   string
	RedirectURI string
	AccessToken string
	AuthCode    string
}

// TokenStore is the persistence contract the Upstox provider needs for its
// OAuth token lifecycle.
type TokenStore interface {
	Save(accessToken string, expiresIn int64, expiresAt int64, refreshToken string) error
	GetValidToken() (string, error)
}

// SymbolKeyResolver maps a user symbol to an Upstox instrument key,
// e.g. "RELIANCE" -> "NSE_EQ|INE002A01018".
type SymbolKeyResolver interface {
	UpstoxKey(symbol string) (string, bool)
}

// UpstoxProvider polls the Upstox Uplink LTP API with a Bearer token
// resolved through the OAuth token lifecycle: an explicit token wins, then
// a cached valid token, then an authorization-code exchange.
type UpstoxProvider struct {
	creds  UpstoxCredentials
	tokens TokenStore
	master SymbolKeyResolver
	client *resty.Client

	mu          sync.Mutex
	baseURL     string
	accessToken string
	subscribed  []string
}

// NewUpstoxProvider creates a new Upstox provider. tokens and master may be
// nil; without a token store only an explicit token or auth code works, and
// without a master historical symbols pass through unresolved.
func NewUpstoxProvider(creds UpstoxCredentials, tokens TokenStore, master SymbolKeyResolver) *UpstoxProvider {
	return &UpstoxProvider{
		creds:   creds,
		tokens:  tokens,
		master:  master,
		client:  resty.New().SetTimeout(requestTimeout),
		baseURL: upstoxDefaultBaseURL,
	}
}

// SetBaseURL overrides the API base. Used by tests.
func (p *UpstoxProvider) SetBaseURL(baseURL string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.baseURL = strings.TrimRight(baseURL, "/")
}

// Name identifies the provider
func (p *UpstoxProvider) Name() string { return "upstox" }

// Connect resolves an access token in priority order: explicit constructor
// value, cached valid token, authorization-code exchange. An exchanged
// token is persisted with its expiry.
func (p *UpstoxProvider) Connect(ctx context.Context) error {
	if p.creds.AccessToken != "" {
		p.setToken(p.creds.AccessToken)
		return nil
	}

	if p.tokens != nil {
		token, err := p.tokens.GetValidToken()
		if err != nil {
			zaplogger.Warn("Token store lookup failed", zaplogger.Fields{"error": err.Error()})
		} else if token != "" {
			p.setToken(token)
			return nil
		}
	}

	c := p.creds
	if c.APIKey != "" && c.APISecret != "" && c.RedirectURI != "" && c.AuthCode != "" {
		p.mu.Lock()
		tokenURL := p.baseURL + "/login/authorization/token"
		p.mu.Unlock()

		token, err := ExchangeAuthCode(ctx, tokenURL, c.APIKey, c.APISecret, c.AuthCode, c.RedirectURI)
		if err != nil {
			return errs.NewAuthError(p.Name(), "authorization code exchange rejected", err)
		}
		if p.tokens != nil {
			if err := p.tokens.Save(token.AccessToken, token.ExpiresIn, 0, token.RefreshToken); err != nil {
				zaplogger.Warn("Failed to persist Upstox token", zaplogger.Fields{"error": err.Error()})
			}
		}
		p.setToken(token.AccessToken)
		return nil
	}

	return errs.NewAuthError(p.Name(), "no access token: set UPSTOX_ACCESS_TOKEN, or complete the OAuth flow, or provide api key/secret/redirect/auth code", nil)
}

func (p *UpstoxProvider) setToken(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accessToken = token
}

// Subscribe replaces the tracked symbol list
func (p *UpstoxProvider) Subscribe(symbols []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribed = append([]string(nil), symbols...)
}

// SetSubscriptions is an alias for Subscribe
func (p *UpstoxProvider) SetSubscriptions(symbols []string) {
	p.Subscribe(symbols)
}

// upstoxInstrumentKey normalizes a symbol for the LTP API: "X|Y" passes
// through, bare "X" becomes "NSE_EQ|X".
func upstoxInstrumentKey(symbol string) string {
	if strings.Contains(symbol, "|") {
		return symbol
	}
	return "NSE_EQ|" + symbol
}

// Stream polls the LTP endpoint once per second for all subscribed symbols
func (p *UpstoxProvider) Stream(ctx context.Context) <-chan models.Tick {
	out := make(chan models.Tick)

	go func() {
		defer close(out)

		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = pollInterval
		bo.MaxInterval = 30 * time.Second
		bo.MaxElapsedTime = 0

		for {
			wait := pollInterval
			ticks, err := p.poll(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				wait = bo.NextBackOff()
				zaplogger.Error("Upstox LTP poll failed", zaplogger.Fields{
					"error":      err.Error(),
					"next_retry": wait.String(),
				})
			} else {
				bo.Reset()
				for _, tick := range ticks {
					select {
					case <-ctx.Done():
						return
					case out <- tick:
					}
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
	}()

	return out
}

func (p *UpstoxProvider) fetchLTP(ctx context.Context, symbols []string) (map[string]map[string]interface{}, error) {
	p.mu.Lock()
	base := p.baseURL
	token := p.accessToken
	p.mu.Unlock()

	keys := make([]string, len(symbols))
	for i, s := range symbols {
		keys[i] = upstoxInstrumentKey(s)
	}

	var ltp struct {
		Data map[string]map[string]interface{} `json:"data"`
	}
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+token).
		SetHeader("Accept", "application/json").
		SetQueryParam("instrument_key", strings.Join(keys, ",")).
		SetResult(&ltp).
		Get(base + "/market-quote/ltp")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("ltp poll returned %d: %s", resp.StatusCode(), resp.String())
	}
	return ltp.Data, nil
}

func (p *UpstoxProvider) poll(ctx context.Context) ([]models.Tick, error) {
	p.mu.Lock()
	symbols := append([]string(nil), p.subscribed...)
	p.mu.Unlock()

	if len(symbols) == 0 {
		return nil, nil
	}

	data, err := p.fetchLTP(ctx, symbols)
	if err != nil {
		return nil, err
	}

	ticks := make([]models.Tick, 0, len(data))
	for key, row := range data {
		ticks = append(ticks, p.normalizeQuote(key, row))
	}
	return ticks, nil
}

// normalizeQuote maps one LTP response row onto a Tick with the documented
// field fallbacks.
func (p *UpstoxProvider) normalizeQuote(key string, row map[string]interface{}) models.Tick {
	price, _ := numberField(row, "last_price", "ltp", "close", "last_traded_price")
	volume, _ := numberField(row, "volume", "volume_traded")

	symbol := stringField(row, "instrument_token")
	if symbol == "" {
		symbol = key
	}

	timestamp := time.Now()
	for _, field := range []string{"exchange_timestamp", "last_trade_time", "timestamp"} {
		if v, ok := row[field]; ok && v != nil {
			timestamp = ParseTimestamp(v)
			break
		}
	}

	return models.Tick{
		Symbol:    symbol,
		Price:     price,
		Volume:    volume,
		Timestamp: timestamp,
		Provider:  p.Name(),
	}
}

// Snapshot serves filter conditions from a single LTP poll
func (p *UpstoxProvider) Snapshot(ctx context.Context, symbols []string) (map[string]models.SnapshotRow, error) {
	if len(symbols) == 0 {
		return map[string]models.SnapshotRow{}, nil
	}

	data, err := p.fetchLTP(ctx, symbols)
	if err != nil {
		return nil, err
	}

	// LTP response keys use ":" between exchange segment and symbol while
	// request keys use "|"; index rows by both so callers find their symbol.
	byKey := make(map[string]map[string]interface{}, len(data))
	for key, row := range data {
		byKey[key] = row
		byKey[strings.Replace(key, ":", "|", 1)] = row
		if token := stringField(row, "instrument_token"); token != "" {
			byKey[token] = row
		}
	}

	snap := make(map[string]models.SnapshotRow, len(symbols))
	for _, symbol := range symbols {
		row, ok := byKey[upstoxInstrumentKey(symbol)]
		if !ok {
			if row, ok = byKey[symbol]; !ok {
				continue
			}
		}
		price, _ := numberField(row, "last_price", "ltp", "close", "last_traded_price")
		volume, _ := numberField(row, "volume", "volume_traded")
		snap[symbol] = models.SnapshotRow{
			"last_price": price,
			"volume":     volume,
		}
	}
	return snap, nil
}

// Historical fetches candles for each symbol and emits one tick per candle
// with price = close.
func (p *UpstoxProvider) Historical(ctx context.Context, symbols []string, start, end, interval string) ([]models.Tick, error) {
	p.mu.Lock()
	base := p.baseURL
	token := p.accessToken
	p.mu.Unlock()

	normalized := NormalizeInterval(interval)

	var ticks []models.Tick
	for _, symbol := range symbols {
		key := symbol
		if p.master != nil {
			if resolved, ok := p.master.UpstoxKey(symbol); ok {
				key = resolved
			}
		}

		candleURL := fmt.Sprintf("%s/historical-candle/%s/%s/%s/%s",
			base, url.PathEscape(upstoxInstrumentKey(key)), normalized, end, start)

		var result struct {
			Data struct {
				Candles [][]interface{} `json:"candles"`
			} `json:"data"`
		}
		resp, err := p.client.R().
			SetContext(ctx).
			SetHeader("Authorization", "Bearer "+token).
			SetHeader("Accept", "application/json").
			SetResult(&result).
			Get(candleURL)
		if err != nil {
			return nil, fmt.Errorf("historical fetch for %s failed: %v", symbol, err)
		}
		if resp.StatusCode() != 200 {
			return nil, fmt.Errorf("historical fetch for %s returned %d: %s", symbol, resp.StatusCode(), resp.String())
		}

		for _, candle := range result.Data.Candles {
			// Candle shape: [timestamp, open, high, low, close, volume, ...]
			if len(candle) < 6 {
				continue
			}
			closePrice, ok := candleNumber(candle[4])
			if !ok {
				continue
			}
			volume, _ := candleNumber(candle[5])

			ticks = append(ticks, models.Tick{
				Symbol:    symbol,
				Price:     closePrice,
				Volume:    volume,
				Timestamp: ParseTimestamp(candle[0]),
				Provider:  p.Name(),
			})
		}
	}
	return ticks, nil
}

func candleNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
