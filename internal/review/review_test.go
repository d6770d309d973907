package review

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"slidegauge/internal/catalog"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
}

func TestRecord_KeyAndValidation(t *testing.T) {
	s := NewStore()
	s.now = fixedNow

	e, err := s.Record("smartart-cycle", 2, VerdictSupported, " looks right ")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if e.Key != "smartart-cycle#2" {
		t.Errorf("key = %q, want smartart-cycle#2", e.Key)
	}
	if e.Note != "looks right" {
		t.Errorf("note not trimmed: %q", e.Note)
	}
	if e.UpdatedAt != "2026-03-14T09:26:53Z" {
		t.Errorf("updated_at = %q", e.UpdatedAt)
	}

	if _, err := s.Record("x", 1, "meh", ""); err == nil {
		t.Error("invalid verdict must be rejected")
	}
	if _, err := s.Record("x", 0, VerdictSupported, ""); err == nil {
		t.Error("slide indices are 1-based; zero must be rejected")
	}
}

func TestRecord_ReplacesPriorVerdict(t *testing.T) {
	s := NewStore()
	s.now = fixedNow
	mustRecord(t, s, "c", 1, VerdictUnsure, "")
	mustRecord(t, s, "c", 1, VerdictSupported, "checked again")

	entries := s.ByCase("c")
	if len(entries) != 1 {
		t.Fatalf("want 1 entry after re-record, got %d", len(entries))
	}
	if entries[0].Verdict != VerdictSupported {
		t.Errorf("verdict = %q, want supported", entries[0].Verdict)
	}
}

func TestByCase_SortedBySlide(t *testing.T) {
	s := NewStore()
	s.now = fixedNow
	mustRecord(t, s, "c", 3, VerdictUnsure, "")
	mustRecord(t, s, "c", 1, VerdictSupported, "")
	mustRecord(t, s, "other", 2, VerdictSupported, "")

	entries := s.ByCase("c")
	var idxs []int
	for _, e := range entries {
		idxs = append(idxs, e.SlideIdx)
	}
	if diff := cmp.Diff([]int{1, 3}, idxs); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "review.json")
	s := NewStore()
	s.now = fixedNow
	mustRecord(t, s, "c", 1, VerdictUnsupported, "text clipped")
	if err := s.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(s.Entries, again.Entries); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if again.UpdatedAt != "2026-03-14T09:26:53Z" {
		t.Errorf("store updated_at = %q", again.UpdatedAt)
	}
}

func TestLoad_MissingFileIsEmptyStore(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(s.Entries) != 0 {
		t.Errorf("want empty store, got %d entries", len(s.Entries))
	}
}

func TestSyncCatalog(t *testing.T) {
	s := NewStore()
	s.now = fixedNow
	mustRecord(t, s, "good-case", 1, VerdictSupported, "")
	mustRecord(t, s, "bad-case", 1, VerdictSupported, "")
	mustRecord(t, s, "bad-case", 2, VerdictUnsupported, "arrow missing")
	mustRecord(t, s, "fuzzy-case", 1, VerdictUnsure, "cannot tell")

	cat := catalog.New()
	synced := s.SyncCatalog(cat)
	if diff := cmp.Diff([]string{"bad-case", "good-case"}, synced); diff != "" {
		t.Errorf("synced cases (-want +got):\n%s", diff)
	}

	if got := cat.Cases["good-case"]; got.Status != catalog.StatusSupported {
		t.Errorf("good-case status = %q", got.Status)
	}
	bad := cat.Cases["bad-case"]
	if bad.Status != catalog.StatusUnsupported {
		t.Errorf("any unsupported slide must fail the case, got %q", bad.Status)
	}
	if diff := cmp.Diff([]string{"manual:unsupported:arrow missing"}, bad.LastReasons); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	// Unsure verdicts never touch the catalog.
	if _, ok := cat.Cases["fuzzy-case"]; ok {
		t.Error("unsure verdict must stay in the review ledger only")
	}
}

func mustRecord(t *testing.T, s *Store, caseName string, slide int, verdict, note string) {
	t.Helper()
	if _, err := s.Record(caseName, slide, verdict, note); err != nil {
		t.Fatalf("Record(%s#%d): %v", caseName, slide, err)
	}
}
