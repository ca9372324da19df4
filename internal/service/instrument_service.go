// Package service contains the service layer for the Gateway API
package service

import (
	"encoding/csv"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/stockrhythm/gatewayapi/internal/models"
	"github.com/stockrhythm/gatewayapi/pkg/utils/zaplogger"
)

// InstrumentService is the instrument master: an in-memory map from symbol
// to canonical token, loaded once from CSV. A missing file is surfaced as a
// warning; every resolve then misses, but session setup never fails.
type InstrumentService struct {
	csvPath  string
	loadOnce sync.Once
	rows     []models.InstrumentRow
	bySymbol map[string]models.InstrumentRow
}

// NewInstrumentService creates a new instrument master for the given CSV
func NewInstrumentService(csvPath string) *InstrumentService {
	return &InstrumentService{
		csvPath:  csvPath,
		bySymbol: make(map[string]models.InstrumentRow),
	}
}

// Load reads the CSV into memory. Called implicitly on first use.
func (s *InstrumentService) Load() {
	s.loadOnce.Do(s.load)
}

func (s *InstrumentService) load() {
	f, err := os.Open(s.csvPath)
	if err != nil {
		zaplogger.Warn("Instrument master not found", zaplogger.Fields{
			"path":  s.csvPath,
			"error": err.Error(),
		})
		return
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		zaplogger.Error("Failed to read instrument master header", zaplogger.Fields{
			"path":  s.csvPath,
			"error": err.Error(),
		})
		return
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}

	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			zaplogger.Warn("Skipping malformed instrument row", zaplogger.Fields{"error": err.Error()})
			continue
		}

		row := models.InstrumentRow{
			Symbol:       strings.ToUpper(field(record, "symbol")),
			Exchange:     field(record, "exchange"),
			Series:       field(record, "series"),
			ISIN:         field(record, "isin"),
			NSEScripCode: field(record, "nse_scrip_code"),
			BSECode:      field(record, "bse_code"),
		}
		if row.Exchange == "" {
			row.Exchange = "NSE"
		}
		if row.Symbol == "" || row.NSEScripCode == "" {
			continue
		}

		s.rows = append(s.rows, row)
		s.bySymbol[row.Symbol] = row
	}

	zaplogger.Info("Instrument master loaded", zaplogger.Fields{
		"path":    s.csvPath,
		"symbols": len(s.bySymbol),
	})
}

// Resolve returns the canonical token for a symbol name,
// e.g. "RELIANCE" -> "nse_cm|2885".
func (s *InstrumentService) Resolve(symbol string) (string, bool) {
	s.Load()
	row, ok := s.bySymbol[strings.ToUpper(symbol)]
	if !ok {
		return "", false
	}
	return row.CanonicalToken(), true
}

// UpstoxKey returns the Upstox instrument key for a symbol name,
// e.g. "RELIANCE" -> "NSE_EQ|INE002A01018".
func (s *InstrumentService) UpstoxKey(symbol string) (string, bool) {
	s.Load()
	row, ok := s.bySymbol[strings.ToUpper(symbol)]
	if !ok || row.ISIN == "" {
		return "", false
	}
	return row.UpstoxKey(), true
}

// SymbolsFor enumerates canonical tokens for all instruments on the given
// exchange and segment. The master carries cash-market rows only, so any
// segment other than "cm" yields nothing.
func (s *InstrumentService) SymbolsFor(exchange, segment string) []string {
	s.Load()
	if segment != "" && !strings.EqualFold(segment, "cm") {
		return nil
	}

	tokens := make([]string, 0, len(s.rows))
	for _, row := range s.rows {
		if exchange != "" && !strings.EqualFold(row.Exchange, exchange) {
			continue
		}
		tokens = append(tokens, row.CanonicalToken())
	}
	return tokens
}
