package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/pquerna/otp/totp"
	"github.com/stockrhythm/gatewayapi/internal/errs"
	"github.com/stockrhythm/gatewayapi/internal/models"
	"github.com/stockrhythm/gatewayapi/pkg/utils/zaplogger"
)

const kotakDefaultBaseURL = "https://mis.kotaksecurities.com"

// KotakCredentials holds the Kotak Neo trade API credentials. AccessToken is
// the long-lived token from the NEO dashboard; the rest feed the 2-step
// login.
type KotakCredentials struct {
	AccessToken string
	Mobile      string
	UCC         string
	MPIN        string
	TotpSecret  string
}

// KotakProvider polls the Kotak Neo quotes REST API. Authentication is a
// 2-step flow: TOTP login yields a view token, MPIN validation yields the
// session token and may redirect the base URL.
type KotakProvider struct {
	creds  KotakCredentials
	client *resty.Client

	mu           sync.Mutex
	baseURL      string
	sessionToken string
	sessionSID   string
	subscribed   []string
}

// NewKotakProvider creates a new Kotak provider
func NewKotakProvider(creds KotakCredentials) *KotakProvider {
	return &KotakProvider{
		creds:   creds,
		client:  resty.New().SetTimeout(requestTimeout),
		baseURL: kotakDefaultBaseURL,
	}
}

// SetBaseURL overrides the login and quote endpoint base. Used by tests.
func (p *KotakProvider) SetBaseURL(baseURL string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.baseURL = strings.TrimRight(baseURL, "/")
}

// Name identifies the provider
func (p *KotakProvider) Name() string { return "kotak" }

type kotakAuthResponse struct {
	Data struct {
		Token   string `json:"token"`
		SID     string `json:"sid"`
		BaseURL string `json:"baseUrl"`
	} `json:"data"`
}

// Connect executes the 2-step auth flow:
//  1. TOTP login -> view token + sid
//  2. MPIN validate -> session token, sid and redirected base URL
func (p *KotakProvider) Connect(ctx context.Context) error {
	c := p.creds
	if c.AccessToken == "" || c.Mobile == "" || c.UCC == "" || c.MPIN == "" || c.TotpSecret == "" {
		return errs.NewAuthError(p.Name(), "missing credentials (KOTAK_ACCESS_TOKEN, KOTAK_MOBILE, KOTAK_UCC, KOTAK_MPIN, KOTAK_TOTP_SECRET)", nil)
	}

	totpValue, err := totp.GenerateCode(c.TotpSecret, time.Now())
	if err != nil {
		return errs.NewAuthError(p.Name(), "failed to generate TOTP, check KOTAK_TOTP_SECRET", err)
	}

	p.mu.Lock()
	base := p.baseURL
	p.mu.Unlock()

	zaplogger.Info("Connecting to Kotak Securities")

	// Step 1: Login with TOTP
	var login kotakAuthResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Authorization", c.AccessToken).
		SetHeader("neo-fin-key", "neotradeapi").
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{
			"mobileNumber": c.Mobile,
			"ucc":          c.UCC,
			"totp":         totpValue,
		}).
		SetResult(&login).
		Post(base + "/login/1.0/tradeApiLogin")
	if err != nil {
		return errs.NewAuthError(p.Name(), "login request failed", err)
	}
	if resp.StatusCode() != 200 {
		return errs.NewAuthError(p.Name(), fmt.Sprintf("login step 1 failed: %s", resp.String()), nil)
	}

	// Step 2: Validate MPIN
	var validate kotakAuthResponse
	resp, err = p.client.R().
		SetContext(ctx).
		SetHeader("Authorization", c.AccessToken).
		SetHeader("neo-fin-key", "neotradeapi").
		SetHeader("sid", login.Data.SID).
		SetHeader("Auth", login.Data.Token).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"mpin": c.MPIN}).
		SetResult(&validate).
		Post(base + "/login/1.0/tradeApiValidate")
	if err != nil {
		return errs.NewAuthError(p.Name(), "validate request failed", err)
	}
	if resp.StatusCode() != 200 {
		return errs.NewAuthError(p.Name(), fmt.Sprintf("login step 2 failed: %s", resp.String()), nil)
	}

	p.mu.Lock()
	p.sessionToken = validate.Data.Token
	p.sessionSID = validate.Data.SID
	if validate.Data.BaseURL != "" {
		p.baseURL = strings.TrimRight(validate.Data.BaseURL, "/")
	}
	base = p.baseURL
	p.mu.Unlock()

	zaplogger.Info("Connected to Kotak", zaplogger.Fields{"base_url": base})
	return nil
}

// Subscribe replaces the tracked symbol list. The quotes API has no
// server-side subscription; the list feeds the poll loop.
func (p *KotakProvider) Subscribe(symbols []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribed = append([]string(nil), symbols...)
}

// SetSubscriptions is an alias for Subscribe
func (p *KotakProvider) SetSubscriptions(symbols []string) {
	p.Subscribe(symbols)
}

// Stream polls the quotes endpoint once per second for all subscribed
// symbols. Poll failures are logged and backed off; they never end the
// stream.
func (p *KotakProvider) Stream(ctx context.Context) <-chan models.Tick {
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
				zaplogger.Error("Kotak quote poll failed", zaplogger.Fields{
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

// kotakQuoteSymbol rewrites a bare symbol into the neosymbol form,
// e.g. "RELIANCE" -> "nse_cm|RELIANCE-EQ".
func kotakQuoteSymbol(symbol string) string {
	if strings.Contains(symbol, "|") {
		return symbol
	}
	return fmt.Sprintf("nse_cm|%s-EQ", symbol)
}

func (p *KotakProvider) poll(ctx context.Context) ([]models.Tick, error) {
	p.mu.Lock()
	base := p.baseURL
	symbols := append([]string(nil), p.subscribed...)
	p.mu.Unlock()

	if len(symbols) == 0 {
		return nil, nil
	}

	queryParts := make([]string, len(symbols))
	for i, s := range symbols {
		queryParts[i] = kotakQuoteSymbol(s)
	}

	quoteURL := fmt.Sprintf("%s/script-details/1.0/quotes/neosymbol/%s/all", base, strings.Join(queryParts, ","))

	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Authorization", p.creds.AccessToken).
		SetHeader("Content-Type", "application/json").
		Get(quoteURL)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("quote poll returned %d: %s", resp.StatusCode(), resp.String())
	}

	return p.parseQuotes(resp.Body())
}

// parseQuotes normalizes a quote poll response. The endpoint usually
// responds with a list of quote objects; dict-shaped error responses carry
// stat == "Not_Ok" and are skipped.
func (p *KotakProvider) parseQuotes(body []byte) ([]models.Tick, error) {
	var items []map[string]interface{}
	if err := json.Unmarshal(body, &items); err != nil {
		var dict map[string]interface{}
		if dictErr := json.Unmarshal(body, &dict); dictErr == nil {
			if stat, _ := dict["stat"].(string); stat == "Not_Ok" {
				zaplogger.Warn("Kotak quote response Not_Ok", zaplogger.Fields{"body": string(body)})
				return nil, nil
			}
			return nil, fmt.Errorf("unexpected quote response shape")
		}
		return nil, err
	}

	now := time.Now()
	ticks := make([]models.Tick, 0, len(items))
	for _, item := range items {
		price, ok := numberField(item, "ltp")
		if !ok {
			continue
		}
		volume, _ := numberField(item, "last_volume")
		symbol := stringField(item, "display_symbol", "exchange_token")
		if symbol == "" {
			continue
		}

		ticks = append(ticks, models.Tick{
			Symbol:    symbol,
			Price:     price,
			Volume:    volume,
			Timestamp: now,
			Provider:  p.Name(),
		})
	}
	return ticks, nil
}

// Snapshot is not supported by the Kotak quotes API
func (p *KotakProvider) Snapshot(ctx context.Context, symbols []string) (map[string]models.SnapshotRow, error) {
	return nil, errs.ErrNotSupported
}

// Historical is not supported by the Kotak provider
func (p *KotakProvider) Historical(ctx context.Context, symbols []string, start, end, interval string) ([]models.Tick, error) {
	return nil, errs.ErrNotSupported
}
