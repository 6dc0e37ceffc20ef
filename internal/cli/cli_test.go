package cli

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"quiz-mastery-service/internal/catalog"
	"quiz-mastery-service/internal/config"
)

func TestRootRegistersCommands(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"start", "migrate", "seed"} {
		found, _, err := cmd.Find([]string{name})
		if err != nil || found.Name() != name {
			t.Fatalf("expected %s command, got %v %v", name, found, err)
		}
	}
}

func TestSettingsFromConfig(t *testing.T) {
	var cfg config.Config
	cfg.Economy.ExtraAttemptCost = 25
	cfg.Revision.Size = 4

	s := settingsFromConfig(cfg)
	if s.Rules.ExtraAttemptCost != 25 || s.RevisionSize != 4 {
		t.Fatalf("expected overrides applied, got %+v", s)
	}
	if s.Rules.BaseAttempts != 3 || s.RevisionPassingScore != 70 || s.RevisionTimeLimitMinutes != 15 {
		t.Fatalf("expected defaults kept, got %+v", s)
	}
}

func TestLoadCatalogFallsBackToSample(t *testing.T) {
	cat, err := loadCatalog("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cat.Quizzes) != 3 {
		t.Fatalf("expected sample catalog, got %d quizzes", len(cat.Quizzes))
	}
	if _, err := loadCatalog("does-not-exist.yaml"); err == nil {
		t.Fatalf("expected error for missing catalog")
	}
}

func TestSeedEvictsCachedQuizzes(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	for _, key := range []string{"quiz:addition:content", "quiz:capitals:content", "quiz:other:content"} {
		if err := mr.Set(key, "{}"); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}
	if err := evictSeededQuizzes(context.Background(), client, catalog.Sample()); err != nil {
		t.Fatalf("evict: %v", err)
	}
	if mr.Exists("quiz:addition:content") || mr.Exists("quiz:capitals:content") {
		t.Fatalf("expected seeded quizzes evicted, keys left: %v", mr.Keys())
	}
	if !mr.Exists("quiz:other:content") {
		t.Fatalf("quizzes outside the catalog must stay cached")
	}
}
