package s0_data

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/profitmonk/high-intent-signals/internal/contracts"
	"github.com/profitmonk/high-intent-signals/internal/external/fmp"
	"github.com/profitmonk/high-intent-signals/pkg/logger"
)

// ErrNoCacheFile is returned when no cache file matches a ticker
var ErrNoCacheFile = errors.New("no price cache file")

// cachePatterns are tried in order; the largest match wins
var cachePatterns = []string{
	"_historical-price-full_%s_*.json",
	"historical_%s_*.json",
}

// FileCache reads and writes per-ticker JSON price files.
// ⭐ SSOT: data/cache 디렉터리 포맷은 여기서만 해석
type FileCache struct {
	dir    string
	logger *logger.Logger
}

// NewFileCache creates a cache rooted at dir
func NewFileCache(dir string, log *logger.Logger) *FileCache {
	if log == nil {
		log = logger.Nop()
	}
	return &FileCache{dir: dir, logger: log.WithField("module", "price_cache")}
}

// Dir returns the cache directory
func (c *FileCache) Dir() string {
	return c.dir
}

// LoadTicker reads the richest cache file for ticker
func (c *FileCache) LoadTicker(ticker string) ([]contracts.Bar, error) {
	path, err := c.find(ticker)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	resp, err := fmp.DecodeHistorical(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return resp.Bars(), nil
}

// Load reads every ticker it can and builds an oracle.
// 파일이 없거나 깨진 종목은 missing 으로 반환 (에러 아님)
func (c *FileCache) Load(tickers []string) (*MemoryOracle, []string) {
	series := make(map[string][]contracts.Bar, len(tickers))
	var missing []string

	for _, ticker := range uniqueSorted(tickers) {
		bars, err := c.LoadTicker(ticker)
		if err != nil {
			if !errors.Is(err, ErrNoCacheFile) {
				c.logger.WithError(err).WithField("ticker", ticker).Warn("Skipping unreadable price file")
			}
			missing = append(missing, ticker)
			continue
		}
		if len(bars) == 0 {
			missing = append(missing, ticker)
			continue
		}
		series[ticker] = bars
	}

	oracle := NewMemoryOracle(series)
	c.logger.WithFields(map[string]interface{}{
		"requested": len(series) + len(missing),
		"loaded":    len(series),
		"missing":   len(missing),
		"bars":      oracle.BarCount(),
	}).Info("Price cache loaded")

	return oracle, missing
}

// Save writes bars in the vendor envelope format, named like a vendor response
func (c *FileCache) Save(ticker string, bars []contracts.Bar) (string, error) {
	if len(bars) == 0 {
		return "", fmt.Errorf("save %s: no bars", ticker)
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}

	first := bars[0].Date.Format(contracts.DateLayout)
	last := bars[len(bars)-1].Date.Format(contracts.DateLayout)
	name := fmt.Sprintf("_historical-price-full_%s_from=%s_to=%s.json", ticker, first, last)
	path := filepath.Join(c.dir, name)

	data, err := marshalIndent(fmp.FromBars(ticker, bars))
	if err != nil {
		return "", err
	}

	// tmp 파일에 쓰고 rename (부분 파일 방지)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("rename %s: %w", tmp, err)
	}
	return path, nil
}

func (c *FileCache) find(ticker string) (string, error) {
	for _, pattern := range cachePatterns {
		matches, err := filepath.Glob(filepath.Join(c.dir, fmt.Sprintf(pattern, ticker)))
		if err != nil {
			return "", fmt.Errorf("glob %s: %w", ticker, err)
		}
		if len(matches) == 0 {
			continue
		}

		best, bestSize := "", int64(-1)
		sort.Strings(matches)
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				continue
			}
			if info.Size() > bestSize {
				best, bestSize = m, info.Size()
			}
		}
		if best != "" {
			return best, nil
		}
	}
	return "", fmt.Errorf("%s in %s: %w", ticker, c.dir, ErrNoCacheFile)
}

func marshalIndent(v interface{}) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal price cache: %w", err)
	}
	return data, nil
}

func uniqueSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
