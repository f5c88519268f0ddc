package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/claimcheck/internal/model"
)

// mockChecker implements Checker
type mockChecker struct {
	failOn string
	delay  time.Duration
}

func (m *mockChecker) CheckSource(ctx context.Context, source string) (*model.Report, error) {
	time.Sleep(m.delay)
	if source == m.failOn {
		return nil, errors.New("check error")
	}
	return &model.Report{Source: source}, nil
}

func TestBatchProcessor_Process(t *testing.T) {
	processor := NewBatchProcessor(&mockChecker{failOn: "b.txt", delay: 5 * time.Millisecond}, 2)

	sources := []string{"a.txt", "b.txt", "https://example.com/c"}
	results := processor.Process(context.Background(), sources)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	for i, res := range results {
		if res.Source != sources[i] {
			t.Errorf("result %d out of order: %s", i, res.Source)
		}
	}

	if results[1].Error == nil {
		t.Error("expected error for b.txt")
	}
	if results[0].Report == nil || results[2].Report == nil {
		t.Error("expected reports for successful sources")
	}
}

func TestBatchProcessor_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	processor := NewBatchProcessor(&mockChecker{}, 2)
	results := processor.Process(ctx, []string{"a", "b"})

	for _, res := range results {
		if !errors.Is(res.Error, context.Canceled) {
			t.Errorf("expected context.Canceled for %s, got %v", res.Source, res.Error)
		}
	}
}

func TestBatchProcessor_Empty(t *testing.T) {
	processor := NewBatchProcessor(&mockChecker{}, 2)
	if got := processor.Process(context.Background(), nil); len(got) != 0 {
		t.Errorf("expected no results, got %d", len(got))
	}
}

func TestReadSourcesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.txt")
	content := strings.Join([]string{
		"# articles to check",
		"drafts/one.md",
		"",
		"https://example.com/post",
		"drafts/one.md",
		"   ",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	sources, err := ReadSourcesFromFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d: %v", len(sources), sources)
	}
	if sources[0] != "drafts/one.md" || sources[1] != "https://example.com/post" {
		t.Errorf("unexpected sources: %v", sources)
	}
}

func TestReadSourcesFromFile_Missing(t *testing.T) {
	if _, err := ReadSourcesFromFile(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}
