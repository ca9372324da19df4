package models

import (
	"fmt"
	"strings"
)

// InstrumentRow represents one row of the instrument master CSV.
// CSV header: symbol,exchange,series,isin,nse_scrip_code,bse_code
type InstrumentRow struct {
	Symbol       string `csv:"symbol" json:"symbol"`
	Exchange     string `csv:"exchange" json:"exchange"`
	Series       string `csv:"series" json:"series"`
	ISIN         string `csv:"isin" json:"isin"`
	NSEScripCode string `csv:"nse_scrip_code" json:"nse_scrip_code"`
	BSECode      string `csv:"bse_code" json:"bse_code"`
}

// CanonicalToken returns the provider-native symbol identifier for the row,
// e.g. "nse_cm|2885". The cash-market segment is implied by the master CSV.
func (r InstrumentRow) CanonicalToken() string {
	return fmt.Sprintf("%s_cm|%s", strings.ToLower(r.Exchange), r.NSEScripCode)
}

// UpstoxKey returns the Upstox instrument key for the row, e.g.
// "NSE_EQ|INE002A01018".
func (r InstrumentRow) UpstoxKey() string {
	return fmt.Sprintf("NSE_EQ|%s", r.ISIN)
}
