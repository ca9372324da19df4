package provider

import (
	"time"

	"github.com/stockrhythm/gatewayapi/internal/config"
	"github.com/stockrhythm/gatewayapi/internal/errs"
	"github.com/stockrhythm/gatewayapi/internal/repository"
	"github.com/stockrhythm/gatewayapi/internal/service"
)

// Factory builds market data providers from the loaded configuration
type Factory struct {
	cfg    *config.Config
	master *service.InstrumentService
	tokens *repository.TokenRepository
}

// NewFactory creates a provider factory
func NewFactory(cfg *config.Config, master *service.InstrumentService, tokens *repository.TokenRepository) *Factory {
	return &Factory{cfg: cfg, master: master, tokens: tokens}
}

// Provider returns a fresh provider instance. An empty override selects the
// configured ACTIVE provider; an unknown name is a configuration error.
func (f *Factory) Provider(override string) (MarketDataProvider, error) {
	name := override
	if name == "" {
		name = f.cfg.ActiveProvider
	}

	switch name {
	case "mock":
		return NewMockProvider(f.mockParams()), nil
	case "kotak":
		return NewKotakProvider(KotakCredentials{
			AccessToken: f.cfg.KotakAccessToken,
			Mobile:      f.cfg.KotakMobile,
			UCC:         f.cfg.KotakUCC,
			MPIN:        f.cfg.KotakMPIN,
			TotpSecret:  f.cfg.KotakTotpSecret,
		}), nil
	case "upstox":
		var tokens TokenStore
		if f.tokens != nil {
			tokens = f.tokens
		}
		var master SymbolKeyResolver
		if f.master != nil {
			master = f.master
		}
		return NewUpstoxProvider(UpstoxCredentials{
			APIKey:      f.cfg.UpstoxAPIKey,
			APISecret:   f.cfg.UpstoxAPISecret,
			RedirectURI: f.cfg.UpstoxRedirectURI,
			AccessToken: f.cfg.UpstoxAccessToken,
			AuthCode:    f.cfg.UpstoxAuthCode,
		}, tokens, master), nil
	default:
		return nil, errs.NewConfigError("unknown provider: " + name)
	}
}

func (f *Factory) mockParams() MockParams {
	params := MockParams{
		Symbols:       f.cfg.MockSymbolList(),
		BasePrice:     config.Float(f.cfg.MockBasePrice, 100),
		MaxDeviation:  config.Float(f.cfg.MockMaxDeviation, 5),
		Volatility:    config.Float(f.cfg.MockVolatility, 0.5),
		MeanReversion: config.Float(f.cfg.MockMeanReversion, 0.1),
		Interval:      time.Duration(config.Int(f.cfg.MockIntervalMs, 500)) * time.Millisecond,
		VolumeMin:     config.Int(f.cfg.MockVolumeMin, 100),
		VolumeMax:     config.Int(f.cfg.MockVolumeMax, 1000),
	}
	if f.cfg.MockSeed != "" {
		params.Seed = config.Int(f.cfg.MockSeed, 0)
		params.Seeded = true
	}
	return params
}
