package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const masterCSV = `symbol,exchange,series,isin,nse_scrip_code,bse_code
RELIANCE,NSE,EQ,INE002A01018,2885,500325
TCS,NSE,EQ,INE467B01029,11536,532540
NOISIN,NSE,EQ,,1234,
NOSCRIP,NSE,EQ,INE000000000,,
`

func writeMasterCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "instruments.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestInstrumentResolve(t *testing.T) {
	t.Parallel()
	s := NewInstrumentService(writeMasterCSV(t, masterCSV))

	token, ok := s.Resolve("RELIANCE")
	require.True(t, ok)
	require.Equal(t, "nse_cm|2885", token)

	// Lookup is case-insensitive
	token, ok = s.Resolve("tcs")
	require.True(t, ok)
	require.Equal(t, "nse_cm|11536", token)

	_, ok = s.Resolve("UNKNOWN")
	require.False(t, ok)
}

func TestInstrumentRowsWithoutScripCodeSkipped(t *testing.T) {
	t.Parallel()
	s := NewInstrumentService(writeMasterCSV(t, masterCSV))

	_, ok := s.Resolve("NOSCRIP")
	require.False(t, ok)
}

func TestInstrumentUpstoxKey(t *testing.T) {
	t.Parallel()
	s := NewInstrumentService(writeMasterCSV(t, masterCSV))

	key, ok := s.UpstoxKey("RELIANCE")
	require.True(t, ok)
	require.Equal(t, "NSE_EQ|INE002A01018", key)

	// Rows without an ISIN cannot produce an Upstox key
	_, ok = s.UpstoxKey("NOISIN")
	require.False(t, ok)
}

func TestInstrumentSymbolsFor(t *testing.T) {
	t.Parallel()
	s := NewInstrumentService(writeMasterCSV(t, masterCSV))

	tokens := s.SymbolsFor("NSE", "cm")
	require.Equal(t, []string{"nse_cm|2885", "nse_cm|11536", "nse_cm|1234"}, tokens)

	require.Empty(t, s.SymbolsFor("NSE", "fo"))
	require.Empty(t, s.SymbolsFor("BSE", "cm"))
}

func TestInstrumentMissingFileYieldsEmptyMaster(t *testing.T) {
	t.Parallel()
	s := NewInstrumentService(filepath.Join(t.TempDir(), "missing.csv"))

	_, ok := s.Resolve("RELIANCE")
	require.False(t, ok)
	require.Empty(t, s.SymbolsFor("NSE", "cm"))
}

func TestInstrumentHeaderOrderIndependent(t *testing.T) {
	t.Parallel()
	csv := `nse_scrip_code,symbol,isin
2885,RELIANCE,INE002A01018
`
	s := NewInstrumentService(writeMasterCSV(t, csv))

	token, ok := s.Resolve("RELIANCE")
	require.True(t, ok)
	require.Equal(t, "nse_cm|2885", token)
}
