// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments. Transactions run against a
// cloned copy of the state and commit all-or-nothing under a store-wide lock,
// which gives each batch read-your-writes consistency and isolation from
// concurrent batches.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"containercore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain
// persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Container aliases domain.Container for in-memory persistence operations.
	Container = domain.Container
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	containers map[string]Container
}

func newMemoryState() memoryState {
	return memoryState{containers: make(map[string]Container)}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.containers {
		cloned.containers[k] = v.Clone()
	}
	return cloned
}

// Snapshot captures a point-in-time clone of the store state as the document
// persisted by durable backends.
type Snapshot struct {
	Containers map[string]Container `json:"containers"`
}

// Store provides an in-memory transactional store for the container graph.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
// A nil engine disables rule evaluation.
func NewStore(engine *RulesEngine) *Store {
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// SetNow overrides the transaction clock, for tests.
func (s *Store) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now != nil {
		s.nowFn = now
	}
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

type transaction struct {
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

// ListContainers returns all containers within the snapshot, ordered by id.
func (v transactionView) ListContainers() []Container {
	out := make([]Container, 0, len(v.state.containers))
	for _, c := range v.state.containers {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FindContainer retrieves a container by id from the snapshot.
func (v transactionView) FindContainer(id string) (Container, bool) {
	c, ok := v.state.containers[id]
	if !ok {
		return Container{}, false
	}
	return c.Clone(), true
}

// RunInTransaction executes fn within a transactional copy of the store state.
// Registered rules are evaluated against the candidate state before commit;
// blocking violations abort the transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := transactionView{state: &tx.state}
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	return fn(transactionView{state: &snapshot})
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return transactionView{state: &tx.state}
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// CreateContainer stores a new container within the transaction.
func (tx *transaction) CreateContainer(c Container) (Container, error) {
	if c.ID == "" {
		c.ID = newID()
	}
	if _, exists := tx.state.containers[c.ID]; exists {
		return Container{}, fmt.Errorf("container %q already exists", c.ID)
	}
	c.CreatedAt = tx.now
	c.UpdatedAt = tx.now
	tx.state.containers[c.ID] = c.Clone()
	tx.recordChange(Change{Entity: domain.EntityContainer, Action: domain.ActionCreate, After: c.Clone()})
	return c.Clone(), nil
}

// UpdateContainer mutates a container using the provided mutator function.
func (tx *transaction) UpdateContainer(id string, mutator func(*Container) error) (Container, error) {
	current, ok := tx.state.containers[id]
	if !ok {
		return Container{}, fmt.Errorf("container %q not found", id)
	}
	before := current.Clone()
	working := current.Clone()
	if err := mutator(&working); err != nil {
		return Container{}, err
	}
	working.ID = id
	working.UpdatedAt = tx.now
	tx.state.containers[id] = working.Clone()
	tx.recordChange(Change{Entity: domain.EntityContainer, Action: domain.ActionUpdate, Before: before, After: working.Clone()})
	return working.Clone(), nil
}

// DeleteContainer removes a container from the transaction state.
func (tx *transaction) DeleteContainer(id string) error {
	current, ok := tx.state.containers[id]
	if !ok {
		return fmt.Errorf("container %q not found", id)
	}
	delete(tx.state.containers, id)
	tx.recordChange(Change{Entity: domain.EntityContainer, Action: domain.ActionDelete, Before: current.Clone()})
	return nil
}

// FindContainer retrieves a container by id from the transactional state.
func (tx *transaction) FindContainer(id string) (Container, bool) {
	c, ok := tx.state.containers[id]
	if !ok {
		return Container{}, false
	}
	return c.Clone(), true
}

// GetContainer retrieves a container by id from committed state.
func (s *Store) GetContainer(id string) (Container, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.state.containers[id]
	if !ok {
		return Container{}, false
	}
	return c.Clone(), true
}

// ListContainers returns all containers from committed state, ordered by id.
func (s *Store) ListContainers() []Container {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Container, 0, len(s.state.containers))
	for _, c := range s.state.containers {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	containers := make(map[string]Container, len(s.state.containers))
	for k, v := range s.state.containers {
		containers[k] = v.Clone()
	}
	return Snapshot{Containers: containers}
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := newMemoryState()
	for k, v := range snapshot.Containers {
		state.containers[k] = v.Clone()
	}
	s.state = state
}
