package indexer

import (
	"context"
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type recordingObserver struct {
	reports []Report
	err     error
}

func (o *recordingObserver) IndexBuilt(_ context.Context, r Report) error {
	o.reports = append(o.reports, r)
	return o.err
}

func TestEngineRunWritesSegment(t *testing.T) {
	dir := t.TempDir()
	m := metrics.New(prometheus.NewRegistry())
	obs := &recordingObserver{}
	failing := &recordingObserver{err: errors.New("broker down")}
	e, err := NewEngine(EngineConfig{IndexDir: dir}, m, failing, obs)
	if err != nil {
		t.Fatal(err)
	}

	idx, report, err := e.Run(context.Background(), seqOf(
		doc("a.txt", "beautiful girl"),
		doc("b.txt", "beautiful day"),
	))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Docs != 2 || report.Terms != 3 || report.Analyzer != "plain" {
		t.Errorf("unexpected report %+v", report)
	}
	if len(obs.reports) != 1 || len(failing.reports) != 1 {
		t.Fatalf("observers not notified: %d %d", len(obs.reports), len(failing.reports))
	}

	reopened, info, err := segment.OpenLatest(dir)
	if err != nil {
		t.Fatalf("OpenLatest: %v", err)
	}
	if info.Path != report.Path || reopened.DocCount() != idx.DocCount() {
		t.Errorf("reopened %+v does not match report %+v", info, report)
	}
	if got := testutil.ToFloat64(m.DocsIndexedTotal); got != 2 {
		t.Errorf("docs indexed = %v", got)
	}
	if got := testutil.ToFloat64(m.IndexFlushesTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("flushes = %v", got)
	}
}

func TestEngineRunPrunesOlderSegments(t *testing.T) {
	dir := t.TempDir()
	keep, err := NewEngine(EngineConfig{IndexDir: dir, KeepSegments: true}, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if _, _, err := keep.Run(context.Background(), seqOf(doc("a.txt", "one"))); err != nil {
			t.Fatal(err)
		}
	}
	if names, _ := segment.List(dir); len(names) < 1 {
		t.Fatalf("expected segments to be kept, got %v", names)
	}

	prune, _ := NewEngine(EngineConfig{IndexDir: dir}, nil)
	_, report, err := prune.Run(context.Background(), seqOf(doc("b.txt", "two")))
	if err != nil {
		t.Fatal(err)
	}
	names, err := segment.List(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != report.Segment {
		t.Fatalf("expected only %s, got %v", report.Segment, names)
	}
}

func TestEngineRunDuplicateAborts(t *testing.T) {
	dir := t.TempDir()
	obs := &recordingObserver{}
	e, _ := NewEngine(EngineConfig{IndexDir: dir}, nil, obs)
	_, _, err := e.Run(context.Background(), seqOf(doc("a.txt", "x"), doc("a.txt", "y")))
	var dup *DuplicateDocumentError
	if !errors.As(err, &dup) || dup.ID != "a.txt" {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if names, _ := segment.List(dir); len(names) != 0 {
		t.Errorf("no segment may be written on failure, got %v", names)
	}
	if len(obs.reports) != 0 {
		t.Error("observer notified for a failed build")
	}
}

func TestEngineRunCancelled(t *testing.T) {
	e, _ := NewEngine(EngineConfig{IndexDir: t.TempDir()}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := e.Run(ctx, seqOf(doc("a.txt", "x"))); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewEngineRequiresDir(t *testing.T) {
	if _, err := NewEngine(EngineConfig{}, nil); err == nil {
		t.Fatal("expected error for empty index directory")
	}
}
