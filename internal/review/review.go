// Package review records human verdicts on slides the gate flagged for
// manual inspection, and feeds confirmed verdicts back into the support
// catalog.
package review

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"slidegauge/internal/catalog"
)

// Version is the review store format version.
const Version = 1

// Verdict values a reviewer can assign.
const (
	VerdictSupported   = "supported"
	VerdictUnsupported = "unsupported"
	VerdictUnsure      = "unsure"
)

// ValidVerdict reports whether v is an accepted reviewer verdict.
func ValidVerdict(v string) bool {
	switch v {
	case VerdictSupported, VerdictUnsupported, VerdictUnsure:
		return true
	}
	return false
}

// Key identifies one reviewed slide as "<case>#<slideIdx>".
func Key(caseName string, slideIdx int) string {
	return fmt.Sprintf("%s#%d", caseName, slideIdx)
}

// Entry is one recorded human verdict.
type Entry struct {
	Key       string `json:"key"`
	TestFile  string `json:"test_file"`
	SlideIdx  int    `json:"slide_idx"`
	Verdict   string `json:"verdict"`
	Note      string `json:"note,omitempty"`
	UpdatedAt string `json:"updated_at"`
}

// Store is the on-disk review ledger.
type Store struct {
	Version   int              `json:"version"`
	Entries   map[string]Entry `json:"entries"`
	UpdatedAt string           `json:"updated_at,omitempty"`

	now func() time.Time
}

// NewStore returns an empty review store.
func NewStore() *Store {
	return &Store{Version: Version, Entries: map[string]Entry{}, now: time.Now}
}

// Load reads the store at path; a missing file is an empty store.
func Load(path string) (*Store, error) {
	s := NewStore()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("review: read %q: %w", path, err)
	}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("review: parse %q: %w", path, err)
	}
	if s.Entries == nil {
		s.Entries = map[string]Entry{}
	}
	s.now = time.Now
	return s, nil
}

// Save writes the store, refreshing its timestamp.
func (s *Store) Save(path string) error {
	s.Version = Version
	s.UpdatedAt = s.now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("review: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("review: create dir: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("review: write %q: %w", path, err)
	}
	return nil
}

// Record stores or replaces the verdict for one slide of a case.
func (s *Store) Record(caseName string, slideIdx int, verdict, note string) (Entry, error) {
	if !ValidVerdict(verdict) {
		return Entry{}, fmt.Errorf("review: invalid verdict %q (want supported, unsupported or unsure)", verdict)
	}
	if slideIdx < 1 {
		return Entry{}, fmt.Errorf("review: slide index %d out of range (slides are 1-based)", slideIdx)
	}
	e := Entry{
		Key:       Key(caseName, slideIdx),
		TestFile:  caseName,
		SlideIdx:  slideIdx,
		Verdict:   verdict,
		Note:      strings.TrimSpace(note),
		UpdatedAt: s.now().UTC().Format(time.RFC3339),
	}
	s.Entries[e.Key] = e
	return e, nil
}

// ByCase lists the recorded verdicts for one case, sorted by slide index.
func (s *Store) ByCase(caseName string) []Entry {
	var out []Entry
	for _, e := range s.Entries {
		if e.TestFile == caseName {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlideIdx < out[j].SlideIdx })
	return out
}

// caseVerdict folds a case's slide verdicts into one: any unsupported
// slide makes the case unsupported; otherwise any supported slide makes
// it supported; a case with only unsure verdicts stays undecided.
func caseVerdict(entries []Entry) (string, string) {
	verdict := ""
	note := ""
	for _, e := range entries {
		switch e.Verdict {
		case VerdictUnsupported:
			return VerdictUnsupported, e.Note
		case VerdictSupported:
			verdict = VerdictSupported
			note = e.Note
		}
	}
	return verdict, note
}

// SyncCatalog applies confirmed verdicts to the support catalog. Unsure
// verdicts stay in the review ledger only. The catalog reason records the
// human origin as "manual:<verdict>" with the note appended when present.
func (s *Store) SyncCatalog(cat *catalog.Catalog) []string {
	byCase := map[string][]Entry{}
	for _, e := range s.Entries {
		byCase[e.TestFile] = append(byCase[e.TestFile], e)
	}
	var synced []string
	for caseName, entries := range byCase {
		verdict, note := caseVerdict(entries)
		if verdict == "" {
			continue
		}
		status := catalog.StatusSupported
		if verdict == VerdictUnsupported {
			status = catalog.StatusUnsupported
		}
		reason := "manual:" + verdict
		if note != "" {
			reason += ":" + note
		}
		cat.SetStatus(caseName, status, reason)
		synced = append(synced, caseName)
	}
	sort.Strings(synced)
	return synced
}
