package catalog

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/postgres"
)

// openTestStore connects to the database named by TS_TEST_POSTGRES_HOST
// and skips when it is unset.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	host := os.Getenv("TS_TEST_POSTGRES_HOST")
	if host == "" {
		t.Skip("TS_TEST_POSTGRES_HOST not set")
	}
	cfg := config.PostgresConfig{
		Host:            host,
		Port:            5432,
		Database:        "textsearch",
		User:            "textsearch",
		Password:        os.Getenv("TS_TEST_POSTGRES_PASSWORD"),
		SSLMode:         "disable",
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := postgres.New(ctx, cfg)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	store := NewStore(client)
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatal(err)
	}
	return store
}

func TestRecordAndListRuns(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	segment := fmt.Sprintf("seg_%d.tsx", time.Now().UnixNano())
	report := indexer.Report{
		Segment:   segment,
		Path:      "/var/index/" + segment,
		Analyzer:  "plain",
		Docs:      12,
		Terms:     340,
		StartedAt: time.Now(),
		Took:      1500 * time.Millisecond,
	}
	if err := store.IndexBuilt(ctx, report); err != nil {
		t.Fatalf("IndexBuilt: %v", err)
	}
	if err := store.IndexBuilt(ctx, report); err != nil {
		t.Fatalf("recording the same segment twice must succeed: %v", err)
	}

	runs, err := store.Recent(ctx, 50)
	if err != nil {
		t.Fatal(err)
	}
	found := 0
	for _, r := range runs {
		if r.Segment == segment {
			found++
			if r.Docs != 12 || r.Terms != 340 || r.Took != 1500*time.Millisecond {
				t.Errorf("unexpected row %+v", r)
			}
		}
	}
	if found != 1 {
		t.Fatalf("segment recorded %d times, want 1", found)
	}
}
