package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"containercore/pkg/domain"
)

// Service coordinates batch processing: it validates the incoming batch,
// populates a request-scoped placeholder registry, rewrites the batch, applies
// it instruction by instruction inside one store transaction, and returns the
// placeholder mapping on success. Request-scoped state never outlives one
// ApplyBatch call; the persistence handle is passed in explicitly at
// construction.
type Service struct {
	store    domain.PersistentStore
	ids      IdentifierGenerator
	executor *Executor
	logger   Logger
	metrics  MetricsRecorder
	tracer   Tracer
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithLogger installs a structured logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics installs a metrics recorder observing each batch.
func WithMetrics(rec MetricsRecorder) Option {
	return func(s *Service) {
		s.metrics = rec
	}
}

// WithTracer installs a tracer spanning each batch.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithDeletePolicy selects how dangling relations are handled on delete.
func WithDeletePolicy(policy DeletePolicy) Option {
	return func(s *Service) {
		s.executor = NewExecutor(policy)
	}
}

// WithIdentifierGenerator swaps the real identifier source, mainly for tests.
func WithIdentifierGenerator(ids IdentifierGenerator) Option {
	return func(s *Service) {
		if ids != nil {
			s.ids = ids
		}
	}
}

// NewService constructs a batch coordinator backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:    store,
		ids:      NewULIDGenerator(),
		executor: NewExecutor(DeletePrune),
		logger:   noopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying persistence implementation.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

// ApplyBatch processes one ordered batch of instructions. On any failure the
// working model is discarded, nothing is persisted, and the specific error is
// surfaced as a domain.BatchError; on success the commit has already been made
// durable by the store and the full placeholder mapping is returned.
func (s *Service) ApplyBatch(ctx context.Context, batch Batch) (result BatchResult, err error) {
	started := time.Now()
	if s.tracer != nil {
		var span TraceSpan
		ctx, span = s.tracer.Start(ctx, "apply_batch")
		defer func() { span.End(err) }()
	}
	defer func() {
		if s.metrics != nil {
			s.metrics.Observe(ctx, "apply_batch", err == nil, time.Since(started))
		}
	}()

	result, err = s.applyBatch(ctx, batch)
	if err != nil {
		be, _ := domain.AsBatchError(err)
		s.logger.Warn("batch rejected",
			"instructions", len(batch),
			"index", be.Index,
			"kind", string(be.Kind),
			"ref", be.Ref,
		)
		return BatchResult{}, err
	}
	s.logger.Info("batch applied",
		"instructions", len(batch),
		"placeholders", len(result.PlaceholderMapping),
	)
	return result, nil
}

func (s *Service) applyBatch(ctx context.Context, batch Batch) (BatchResult, error) {
	if err := validateBatch(batch); err != nil {
		return BatchResult{}, err
	}

	registry := NewPlaceholderRegistry(s.ids)
	if err := registry.Collect(batch); err != nil {
		return BatchResult{}, err
	}

	rewritten, err := RewriteBatch(batch, registry)
	if err != nil {
		return BatchResult{}, err
	}

	applied := make([]domain.InstructionSummary, 0, len(rewritten))
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		for i, in := range rewritten {
			if err := s.executor.Apply(tx, i, in); err != nil {
				return err
			}
			applied = append(applied, domain.InstructionSummary{Index: i, Action: in.Action, Target: in.Target})
		}
		return nil
	})
	if err != nil {
		if be, ok := domain.AsBatchError(err); ok {
			return BatchResult{}, be
		}
		// Rule violations and adapter failures surface without an instruction
		// index; both abort the batch before anything is persisted.
		kind := KindPersistence
		var rve RuleViolationError
		if errors.As(err, &rve) {
			kind = KindInvalidInstruction
		}
		return BatchResult{}, BatchError{Index: -1, Kind: kind, Err: err}
	}

	return BatchResult{
		Applied:            applied,
		PlaceholderMapping: registry.Snapshot(),
		Rules:              res,
	}, nil
}

func validateBatch(batch Batch) error {
	for i, in := range batch {
		if !domain.KnownAction(in.Action) {
			return BatchError{Index: i, Kind: KindInvalidInstruction, Ref: string(in.Action),
				Err: fmt.Errorf("unknown action")}
		}
		if in.Target == "" {
			return BatchError{Index: i, Kind: KindInvalidInstruction,
				Err: fmt.Errorf("instruction target required")}
		}
	}
	return nil
}
