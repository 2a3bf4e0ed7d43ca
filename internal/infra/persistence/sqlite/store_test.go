package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"containercore/internal/infra/persistence/memory"
	"containercore/pkg/domain"
)

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")

	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if store.Path() != path {
		t.Fatalf("unexpected path %q", store.Path())
	}

	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateContainer(domain.Container{Base: domain.Base{ID: "box-1"}, Name: "pantry", Children: []string{"box-2"}}); err != nil {
			return err
		}
		_, err := tx.CreateContainer(domain.Container{Base: domain.Base{ID: "box-2"}, Name: "shelf"})
		return err
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	if got := len(reopened.ListContainers()); got != 2 {
		t.Fatalf("expected 2 hydrated containers, got %d", got)
	}
	c, ok := reopened.GetContainer("box-1")
	if !ok || c.Name != "pantry" || !c.HasChild("box-2") {
		t.Fatalf("hydrated container mismatch: %+v", c)
	}
}

func TestStoreRollbackNotPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	boom := errors.New("boom")
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateContainer(domain.Container{Base: domain.Base{ID: "box-1"}}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("unexpected error %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	if got := len(reopened.ListContainers()); got != 0 {
		t.Fatalf("rolled back state persisted: %d containers", got)
	}
}

func TestStoreBlockedCommitNotPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	engine := domain.NewRulesEngine()
	engine.Register(rejectAll{})
	store, err := NewStore(path, engine)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer func() { _ = store.Close() }()

	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateContainer(domain.Container{Base: domain.Base{ID: "box-1"}})
		return err
	})
	var rve domain.RuleViolationError
	if !errors.As(err, &rve) {
		t.Fatalf("expected rule violation, got %v", err)
	}

	var count int
	row := store.DB().QueryRow(`SELECT COUNT(*) FROM state`)
	if err := row.Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("blocked commit wrote %d snapshot rows", count)
	}
}

type rejectAll struct{}

func (rejectAll) Name() string { return "reject-all" }
func (rejectAll) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	for range changes {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "reject-all",
			Severity: domain.SeverityBlock,
			Message:  "rejected",
			Entity:   domain.EntityContainer,
		})
	}
	return res, nil
}

func TestStoreDefaultsBucketEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer func() { _ = store.Close() }()
	if got := len(store.ListContainers()); got != 0 {
		t.Fatalf("fresh store not empty: %d", got)
	}
	var snapshot memory.Snapshot = store.ExportState()
	if len(snapshot.Containers) != 0 {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
}
