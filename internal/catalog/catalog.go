// Package catalog persists what the run history says about each case:
// whether the rendering engine supports it, and what the last evaluation
// concluded. The catalog is a plain JSON file committed alongside testdata.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Version is the catalog file format version.
const Version = 1

// Status is the support classification of a case.
type Status string

const (
	StatusSupported   Status = "supported"
	StatusUnsupported Status = "unsupported"
	StatusUnknown     Status = "unknown"
)

func validStatus(s Status) bool {
	switch s {
	case StatusSupported, StatusUnsupported, StatusUnknown:
		return true
	}
	return false
}

// Entry is the catalog record for one case.
type Entry struct {
	Status        Status   `json:"status"`
	LastRunPassed *bool    `json:"last_run_passed,omitempty"`
	LastReasons   []string `json:"last_reasons,omitempty"`
	LastSeenAt    string   `json:"last_seen_at,omitempty"`
}

// Catalog maps case names to their support records.
type Catalog struct {
	Version   int              `json:"version"`
	Cases     map[string]Entry `json:"cases"`
	UpdatedAt string           `json:"updated_at,omitempty"`

	now func() time.Time
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{Version: Version, Cases: map[string]Entry{}, now: time.Now}
}

// LoadOrInit reads the catalog at path, or starts an empty one if it does
// not exist, then reconciles it against the case descriptors in casesDir:
// every descriptor gets an entry, and entries with unrecognized statuses
// are normalized to unknown rather than rejected.
func LoadOrInit(path, casesDir string) (*Catalog, error) {
	c := New()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("catalog: parse %q: %w", path, err)
		}
		if c.Cases == nil {
			c.Cases = map[string]Entry{}
		}
		c.now = time.Now
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("catalog: read %q: %w", path, err)
	}

	for name, e := range c.Cases {
		if !validStatus(e.Status) {
			e.Status = StatusUnknown
			c.Cases[name] = e
		}
	}

	names, err := scanCaseNames(casesDir)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		if _, ok := c.Cases[name]; !ok {
			c.Cases[name] = Entry{Status: StatusUnknown}
		}
	}
	c.Version = Version
	c.UpdatedAt = c.now().UTC().Format(time.RFC3339)
	return c, nil
}

func scanCaseNames(casesDir string) ([]string, error) {
	if casesDir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(casesDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: scan cases dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}
	sort.Strings(names)
	return names, nil
}

// Save writes the catalog, stamping the update time in UTC.
func (c *Catalog) Save(path string) error {
	c.UpdatedAt = c.now().UTC().Format(time.RFC3339)
	c.Version = Version
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("catalog: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("catalog: create dir: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("catalog: write %q: %w", path, err)
	}
	return nil
}

// Select returns the case names in scope, sorted. Valid scopes are "all",
// "unsupported" and "unknown"; anything else is an error rather than an
// accidental empty selection. "unsupported" means not known to be
// supported, so unknown cases are in scope too.
func (c *Catalog) Select(scope string) ([]string, error) {
	var keep func(Entry) bool
	switch scope {
	case "all":
		keep = func(Entry) bool { return true }
	case "unsupported":
		keep = func(e Entry) bool { return e.Status != StatusSupported }
	case "unknown":
		keep = func(e Entry) bool { return e.Status == StatusUnknown }
	default:
		return nil, fmt.Errorf("catalog: unknown scope %q (want all, unsupported or unknown)", scope)
	}
	var names []string
	for name, e := range c.Cases {
		if keep(e) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// RunResult is the per-case outcome of one evaluation run.
type RunResult struct {
	Passed  bool
	Reasons []string
}

// Merge folds run results into the catalog: a passing case becomes
// supported, a failing one unsupported, and each touched entry records
// the run's verdict and timestamp. Cases the run did not touch keep their
// records.
func (c *Catalog) Merge(results map[string]RunResult) {
	stamp := c.now().UTC().Format(time.RFC3339)
	for name, res := range results {
		e := c.Cases[name]
		if res.Passed {
			e.Status = StatusSupported
		} else {
			e.Status = StatusUnsupported
		}
		passed := res.Passed
		e.LastRunPassed = &passed
		e.LastReasons = append([]string{}, res.Reasons...)
		e.LastSeenAt = stamp
		c.Cases[name] = e
	}
}

// SetStatus pins a case to a status with an explanatory reason, as manual
// review does. The reason replaces the last run's reasons.
func (c *Catalog) SetStatus(name string, status Status, reason string) {
	e := c.Cases[name]
	e.Status = status
	if reason != "" {
		e.LastReasons = []string{reason}
	}
	e.LastSeenAt = c.now().UTC().Format(time.RFC3339)
	c.Cases[name] = e
}
