package velocity

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/opengov-labs/kestrel/internal/cache"
	"github.com/opengov-labs/kestrel/internal/domain"
	"github.com/opengov-labs/kestrel/internal/repository"
)

func newTestDeps(t *testing.T) (*repository.SQLRepository, *cache.LRUCache) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "kestrel-velocity-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	c := cache.NewLRUCache(100)
	t.Cleanup(func() { c.Close() })
	return repo, c
}

func classifyComplaint(t *testing.T, repo *repository.SQLRepository, id, entity string, processedAt time.Time) {
	t.Helper()
	ctx := context.Background()

	err := repo.SaveFeedback(ctx, &domain.FeedbackRecord{
		ID:          id,
		Entity:      entity,
		Type:        "complaint",
		DislikeText: "nobody answered my request",
		CreatedAt:   processedAt,
	})
	if err != nil {
		t.Fatalf("save feedback: %v", err)
	}

	cls := &domain.Classification{
		Sentiment:   domain.SentimentNegative,
		IsComplaint: true,
		Severity:    domain.SeverityMedium,
		Category:    domain.CategoryComplaintHandling,
	}
	if err := repo.SetClassification(ctx, id, cls, nil, processedAt); err != nil {
		t.Fatalf("set classification: %v", err)
	}
}

func TestRecord(t *testing.T) {
	_, c := newTestDeps(t)
	svc := NewService(nil, c)
	ctx := context.Background()

	t.Run("CountsPerEntity", func(t *testing.T) {
		for want := int64(1); want <= 3; want++ {
			got, err := svc.Record(ctx, "Ministry of Interior")
			if err != nil {
				t.Fatalf("Record() error: %v", err)
			}
			if got != want {
				t.Errorf("running count = %d, want %d", got, want)
			}
		}

		got, err := svc.Record(ctx, "Ministry of Health")
		if err != nil {
			t.Fatal(err)
		}
		if got != 1 {
			t.Errorf("other entity count = %d, want 1", got)
		}
	})

	t.Run("RequiresEntity", func(t *testing.T) {
		if _, err := svc.Record(ctx, ""); err == nil {
			t.Error("expected error for empty entity")
		}
	})

	t.Run("RequiresCache", func(t *testing.T) {
		bare := NewService(nil, nil)
		if _, err := bare.Record(ctx, "e"); err == nil {
			t.Error("expected error without a cache")
		}
	})
}

func TestCount(t *testing.T) {
	repo, c := newTestDeps(t)
	svc := NewService(repo, c)
	ctx := context.Background()

	now := time.Now().UTC()
	classifyComplaint(t, repo, "fb-1", "Ministry of Interior", now.Add(-time.Hour))
	classifyComplaint(t, repo, "fb-2", "Ministry of Interior", now.Add(-48*time.Hour))
	// Outside the 30-day window.
	classifyComplaint(t, repo, "fb-3", "Ministry of Interior", now.Add(-45*24*time.Hour))
	classifyComplaint(t, repo, "fb-4", "Ministry of Health", now.Add(-time.Hour))

	t.Run("WindowedPerEntity", func(t *testing.T) {
		got, err := svc.Count(ctx, "Ministry of Interior")
		if err != nil {
			t.Fatalf("Count() error: %v", err)
		}
		if got != 2 {
			t.Errorf("Count() = %d, want 2", got)
		}
	})

	t.Run("UnknownEntityIsZero", func(t *testing.T) {
		got, err := svc.Count(ctx, "Ministry of Nothing")
		if err != nil {
			t.Fatal(err)
		}
		if got != 0 {
			t.Errorf("Count() = %d, want 0", got)
		}
	})

	t.Run("RequiresEntity", func(t *testing.T) {
		if _, err := svc.Count(ctx, ""); err == nil {
			t.Error("expected error for empty entity")
		}
	})
}
