package domain

import "context"

// Transaction exposes the container operations that a persistence
// implementation must support within an atomic scope. It is the working model
// a batch executes against: seeded from persisted state, committed
// all-or-nothing.
type Transaction interface {
	Snapshot() TransactionView
	CreateContainer(Container) (Container, error)
	UpdateContainer(id string, mutator func(*Container) error) (Container, error)
	DeleteContainer(id string) error
	FindContainer(id string) (Container, bool)
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView interface {
	ListContainers() []Container
	FindContainer(id string) (Container, bool)
}

// PersistentStore is a minimal abstraction over durable backends. The entity
// graph is saved as an opaque document after each successful transaction;
// indexing and replication are the backend's concern.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetContainer(id string) (Container, bool)
	ListContainers() []Container
}
