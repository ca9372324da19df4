package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stockrhythm/gatewayapi/pkg/utils/zaplogger"
)

var nseIndicesBaseURL = "https://raw.githubusercontent.com/nsvirk/nseindicesdata/refs/heads/main/csvfiles/"

var nseIndicesFileMap = map[string]string{
	"NIFTY 50":         "ind_nifty50list.csv",
	"NIFTY NEXT 50":    "ind_niftynext50list.csv",
	"NIFTY 100":        "ind_nifty100list.csv",
	"NIFTY 200":        "ind_nifty200list.csv",
	"NIFTY 500":        "ind_nifty500list.csv",
	"NIFTY BANK":       "ind_niftybanklist.csv",
	"NIFTY IT":         "ind_niftyitlist.csv",
	"NIFTY AUTO":       "ind_niftyautolist.csv",
	"NIFTY PHARMA":     "ind_niftypharmalist.csv",
	"NIFTY FMCG":       "ind_niftyfmcglist.csv",
	"NIFTY METAL":      "ind_niftymetallist.csv",
	"NIFTY MIDCAP 50":  "ind_niftymidcap50list.csv",
	"NIFTY MIDCAP 100": "ind_niftymidcap100list.csv",
}

// fallbackConstituents keeps index resolution working when the constituent
// mirror is unreachable. Deliberately small; the fetched list wins whenever
// available.
var fallbackConstituents = map[string][]string{
	"NIFTY 50":   {"RELIANCE", "TCS", "HDFCBANK", "INFY", "ICICIBANK"},
	"NIFTY BANK": {"HDFCBANK", "ICICIBANK", "SBIN", "KOTAKBANK", "AXISBANK"},
}

var indexCacheTTL = 24 * time.Hour

// IndexService resolves NSE index names to their constituent trading
// symbols. Fetched lists are cached in Redis when available.
type IndexService struct {
	client      *http.Client
	redisClient *redis.Client
}

// NewIndexService creates a new IndexService. redisClient may be nil.
func NewIndexService(redisClient *redis.Client) *IndexService {
	return &IndexService{
		client:      &http.Client{Timeout: 10 * time.Second},
		redisClient: redisClient,
	}
}

// IndexNames returns the names of all known indices
func (s *IndexService) IndexNames() []string {
	names := make([]string, 0, len(nseIndicesFileMap))
	for name := range nseIndicesFileMap {
		names = append(names, name)
	}
	return names
}

// Constituents returns the trading symbols of the given index, fetching the
// constituent CSV and falling back to the built-in list on failure.
func (s *IndexService) Constituents(indexName string) ([]string, error) {
	if cached, ok := s.cacheGet(indexName); ok {
		return cached, nil
	}

	symbols, err := s.fetchNSEIndexConstituents(indexName)
	if err != nil {
		if fallback, ok := fallbackConstituents[indexName]; ok {
			zaplogger.Warn("Index fetch failed, using fallback constituents", zaplogger.Fields{
				"index": indexName,
				"error": err.Error(),
			})
			return fallback, nil
		}
		return nil, err
	}

	s.cacheSet(indexName, symbols)
	return symbols, nil
}

// fetchNSEIndexConstituents fetches the constituent CSV for a given NSE index
func (s *IndexService) fetchNSEIndexConstituents(indexName string) ([]string, error) {
	indexCsvFile, ok := nseIndicesFileMap[indexName]
	if !ok {
		return nil, fmt.Errorf("invalid index: %s", indexName)
	}

	url := fmt.Sprintf("%s%s", nseIndicesBaseURL, indexCsvFile)

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for index %s: %v", indexName, err)
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Referer", "https://niftyindices.com/")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download CSV for index %s: %v", indexName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("index CSV request for %s returned %d", indexName, resp.StatusCode)
	}

	reader := csv.NewReader(resp.Body)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV for index %s: %v", indexName, err)
	}

	if len(records) < 2 {
		return nil, fmt.Errorf("index CSV for %s is empty", indexName)
	}

	symbols := make([]string, 0, len(records))
	for _, record := range records[1:] { // Skip header row
		// record : [Company Name, Industry, Symbol, Series, ISIN Code]
		if len(record) < 5 {
			continue
		}
		symbols = append(symbols, record[2])
	}

	return symbols, nil
}

func (s *IndexService) cacheKey(indexName string) string {
	return "GATEWAY:INDEX:" + indexName
}

func (s *IndexService) cacheGet(indexName string) ([]string, bool) {
	if s.redisClient == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := s.redisClient.Get(ctx, s.cacheKey(indexName)).Result()
	if err != nil {
		return nil, false
	}
	var symbols []string
	if err := json.Unmarshal([]byte(raw), &symbols); err != nil {
		return nil, false
	}
	return symbols, true
}

func (s *IndexService) cacheSet(indexName string, symbols []string) {
	if s.redisClient == nil {
		return
	}
	raw, err := json.Marshal(symbols)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.redisClient.Set(ctx, s.cacheKey(indexName), raw, indexCacheTTL).Err(); err != nil {
		zaplogger.Warn("Failed to cache index constituents", zaplogger.Fields{
			"index": indexName,
			"error": err.Error(),
		})
	}
}
