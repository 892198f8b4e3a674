package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestSQLite(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "nested", "belai.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return repo
}

func TestRepositories(t *testing.T) {
	impls := map[string]func(t *testing.T) Repository{
		"sqlite": newTestSQLite,
		"memory": func(*testing.T) Repository { return NewMemory() },
	}

	for name, newRepo := range impls {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := newRepo(t)

			if err := repo.Ping(ctx); err != nil {
				t.Fatalf("Ping: %v", err)
			}

			if _, err := repo.Get(ctx, KeyCurrentStreak); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}

			if err := repo.Set(ctx, KeyCurrentStreak, []byte("1")); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if err := repo.Set(ctx, KeyCurrentStreak, []byte("2")); err != nil {
				t.Fatalf("Set overwrite: %v", err)
			}
			got, err := repo.Get(ctx, KeyCurrentStreak)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if string(got) != "2" {
				t.Errorf("expected 2, got %s", got)
			}

			err = repo.SetMany(ctx, map[string][]byte{
				KeyMessagesSent:     []byte("5"),
				KeyLastPracticeDate: []byte(`"2026-10-19"`),
			})
			if err != nil {
				t.Fatalf("SetMany: %v", err)
			}
			got, err = repo.Get(ctx, KeyLastPracticeDate)
			if err != nil {
				t.Fatalf("Get after SetMany: %v", err)
			}
			if string(got) != `"2026-10-19"` {
				t.Errorf("unexpected date value %s", got)
			}
		})
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "belai.db")

	repo, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	if err := SaveJSON(ctx, repo, KeyScenariosCompleted, 3); err != nil {
		t.Fatalf("SaveJSON: %v", err)
	}
	if err := repo.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	var completed int
	ok, err := LoadJSON(ctx, reopened, KeyScenariosCompleted, &completed)
	if err != nil || !ok {
		t.Fatalf("LoadJSON ok=%v err=%v", ok, err)
	}
	if completed != 3 {
		t.Errorf("expected 3, got %d", completed)
	}
}

func TestLoadJSONMissingAndCorrupt(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()

	streak := 7
	ok, err := LoadJSON(ctx, repo, KeyCurrentStreak, &streak)
	if err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
	if streak != 7 {
		t.Errorf("destination modified on missing key: %d", streak)
	}

	if err := repo.Set(ctx, KeyCurrentStreak, []byte("{not json")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	ok, err = LoadJSON(ctx, repo, KeyCurrentStreak, &streak)
	if err != nil || ok {
		t.Fatalf("corrupt value: ok=%v err=%v", ok, err)
	}
}

func TestSaveManyJSON(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()

	err := SaveManyJSON(ctx, repo, map[string]any{
		KeyCurrentStreak:    4,
		KeyLastPracticeDate: "2026-10-19",
	})
	if err != nil {
		t.Fatalf("SaveManyJSON: %v", err)
	}

	var date string
	if ok, _ := LoadJSON(ctx, repo, KeyLastPracticeDate, &date); !ok || date != "2026-10-19" {
		t.Errorf("unexpected date %q (ok=%v)", date, ok)
	}
}
