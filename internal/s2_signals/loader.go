package s2_signals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/profitmonk/high-intent-signals/internal/contracts"
	"github.com/profitmonk/high-intent-signals/pkg/logger"
)

// ErrUnknownDataset is returned for a dataset name outside Datasets
var ErrUnknownDataset = errors.New("unknown dataset")

// Datasets maps dataset names to files under DATA_DIR
var Datasets = map[string]string{
	"1b":          "signals_history_1b_2023.json",
	"micro-small": "signals_history_micro_small.json",
	"small-cap":   "signals_history_small_cap.json",
}

// DatasetNames returns the known dataset names, sorted
func DatasetNames() []string {
	names := make([]string, 0, len(Datasets))
	for n := range Datasets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ResolveDataset returns the signal file path for a dataset name
func ResolveDataset(dataDir, name string) (string, error) {
	file, ok := Datasets[name]
	if !ok {
		return "", fmt.Errorf("%w: %q (known: %v)", ErrUnknownDataset, name, DatasetNames())
	}
	return filepath.Join(dataDir, file), nil
}

// LoadStats reports what ingestion kept and rejected
type LoadStats struct {
	Total        int            `json:"total"`
	Loaded       int            `json:"loaded"`
	Invalid      int            `json:"invalid"`
	UnknownTypes map[string]int `json:"unknown_types,omitempty"`
}

// FileSource loads a signal feed from a JSON file.
// ⭐ SSOT: 시그널 피드 파싱/검증은 여기서만
type FileSource struct {
	path   string
	logger *logger.Logger
	stats  LoadStats
}

// NewFileSource creates a source for path
func NewFileSource(path string, log *logger.Logger) *FileSource {
	if log == nil {
		log = logger.Nop()
	}
	return &FileSource{path: path, logger: log.WithField("module", "signals")}
}

// Path returns the file path
func (s *FileSource) Path() string {
	return s.path
}

// Stats returns the counts of the last Load
func (s *FileSource) Stats() LoadStats {
	return s.stats
}

// Load implements contracts.SignalSource. Output is sorted by date then ticker.
func (s *FileSource) Load(ctx context.Context) ([]contracts.Signal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open signals: %w", err)
	}
	defer f.Close()

	signals, stats, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(s.path), err)
	}
	s.stats = stats

	fields := map[string]interface{}{
		"path":    s.path,
		"total":   stats.Total,
		"loaded":  stats.Loaded,
		"invalid": stats.Invalid,
	}
	if len(stats.UnknownTypes) > 0 {
		fields["unknown_types"] = stats.UnknownTypes
	}
	if stats.Invalid > 0 {
		s.logger.WithFields(fields).Warn("Signals loaded with rejected records")
	} else {
		s.logger.WithFields(fields).Info("Signals loaded")
	}

	return signals, nil
}

// Decode parses a JSON array of signal records.
// Invalid records are skipped and counted; a malformed document is an error.
func Decode(r io.Reader) ([]contracts.Signal, LoadStats, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, LoadStats{}, fmt.Errorf("decode signals: %w", err)
	}

	stats := LoadStats{Total: len(raw)}
	signals := make([]contracts.Signal, 0, len(raw))

	for _, item := range raw {
		var rec record
		if err := json.Unmarshal(item, &rec); err != nil {
			stats.Invalid++
			continue
		}
		sig, unknown, err := rec.toSignal()
		if err != nil {
			stats.Invalid++
			continue
		}
		for _, u := range unknown {
			if stats.UnknownTypes == nil {
				stats.UnknownTypes = make(map[string]int)
			}
			stats.UnknownTypes[u]++
		}
		signals = append(signals, sig)
	}

	stats.Loaded = len(signals)
	contracts.SortSignals(signals)
	return signals, stats, nil
}

// Tickers returns the distinct tickers in signals, sorted
func Tickers(signals []contracts.Signal) []string {
	seen := make(map[string]struct{})
	for _, s := range signals {
		seen[s.Ticker] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// FilterScore keeps signals with min <= score <= max
func FilterScore(signals []contracts.Signal, min, max int) []contracts.Signal {
	out := make([]contracts.Signal, 0, len(signals))
	for _, s := range signals {
		if s.Score >= min && s.Score <= max {
			out = append(out, s)
		}
	}
	return out
}

var _ contracts.SignalSource = (*FileSource)(nil)
