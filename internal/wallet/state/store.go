package state

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/shandysiswandi/gosats/internal/pkg/pkgerror"
	"github.com/shandysiswandi/gosats/internal/wallet/entity"
	"github.com/shandysiswandi/gosats/internal/wallet/gateway"
)

// Revisioner stamps committed ledger mutations with a monotonically
// increasing number so the snapshot writer can drop stale snapshots.
type Revisioner interface {
	Generate() int64
}

type Dependency struct {
	Gateway gateway.Gateway
	Key     string
	Rev     Revisioner
	Writer  *SnapshotWriter
}

// Store owns the in-memory transaction ledger. It is the only component
// allowed to mutate it; flow controllers submit Append/Update calls and
// never touch entries directly. Every committed mutation notifies the
// registered observers synchronously and mirrors the ledger to the
// persistence gateway asynchronously when its serialized form changed.
type Store struct {
	gw     gateway.Gateway
	key    string
	rev    Revisioner
	writer *SnapshotWriter

	mu        sync.Mutex
	ledger    []entity.Transaction // newest first
	index     map[string]int
	lastSaved []byte
	observers map[int]func()
	nextObs   int
}

func New(dep Dependency) *Store {
	return &Store{
		gw:        dep.Gateway,
		key:       dep.Key,
		rev:       dep.Rev,
		writer:    dep.Writer,
		index:     make(map[string]int),
		observers: make(map[int]func()),
	}
}

// Append inserts tx at the head of the ledger. A transaction whose ID is
// already present is rejected with ErrDuplicateID; callers that mean to
// change an existing record must use Update.
func (s *Store) Append(tx entity.Transaction) error {
	if err := validate(tx); err != nil {
		return err
	}

	s.mu.Lock()
	if _, exists := s.index[tx.ID]; exists {
		s.mu.Unlock()
		return pkgerror.ErrDuplicateID
	}

	s.ledger = append([]entity.Transaction{tx}, s.ledger...)
	for id := range s.index {
		s.index[id]++
	}
	s.index[tx.ID] = 0

	s.commitAndUnlock()

	return nil
}

// Update replaces the record with tx.ID in place, keeping its position.
// An unknown ID returns ErrNotFound. Receive records enforce the
// lifecycle: once claimed or canceled they are frozen, and a state change
// must follow the lifecycle graph.
func (s *Store) Update(tx entity.Transaction) error {
	if err := validate(tx); err != nil {
		return err
	}

	s.mu.Lock()
	pos, ok := s.index[tx.ID]
	if !ok {
		s.mu.Unlock()
		return pkgerror.ErrNotFound
	}

	current := s.ledger[pos]
	if current.Kind == entity.TxKindReceive {
		if current.ReceiveState.Terminal() {
			s.mu.Unlock()
			return pkgerror.NewBusiness("transaction is final", pkgerror.CodeConflict)
		}
		if tx.ReceiveState != current.ReceiveState && !current.ReceiveState.CanTransition(tx.ReceiveState) {
			s.mu.Unlock()
			return pkgerror.NewBusiness("invalid receive state transition", pkgerror.CodeConflict)
		}
	}

	s.ledger[pos] = tx

	s.commitAndUnlock()

	return nil
}

// Load replaces the in-memory ledger with the snapshot held by the
// gateway. It must run before any reader is served so a restart does not
// present an empty history. A missing snapshot yields an empty ledger.
func (s *Store) Load(ctx context.Context) error {
	value, ok, err := s.gw.Get(ctx, s.key)
	if err != nil {
		return err
	}

	var ledger []entity.Transaction
	if ok {
		if err := json.Unmarshal(value, &ledger); err != nil {
			return err
		}
	}

	index := make(map[string]int, len(ledger))
	deduped := ledger[:0]
	for _, tx := range ledger {
		if _, seen := index[tx.ID]; seen {
			continue
		}
		index[tx.ID] = len(deduped)
		deduped = append(deduped, tx)
	}

	s.mu.Lock()
	s.ledger = deduped
	s.index = index
	s.lastSaved = value
	observers := s.observersLocked()
	s.mu.Unlock()

	for _, fn := range observers {
		fn()
	}

	return nil
}

// Subscribe registers an observer called synchronously after every
// committed mutation. The returned function removes the observer and is
// safe to call more than once.
func (s *Store) Subscribe(fn func()) func() {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// Transactions returns a copy of the ledger, newest first.
func (s *Store) Transactions() []entity.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]entity.Transaction, len(s.ledger))
	copy(out, s.ledger)

	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.ledger)
}

// commitAndUnlock serializes the ledger, releases s.mu (which the caller
// must hold), then queues a persistence write when the snapshot changed
// and notifies observers outside the lock.
func (s *Store) commitAndUnlock() {
	snapshot, err := json.Marshal(s.ledger)
	if err != nil {
		// Transaction contains only marshalable fields, so this cannot
		// happen with well-formed records. Keep the in-memory commit.
		snapshot = nil
	}

	dirty := snapshot != nil && string(snapshot) != string(s.lastSaved)
	if dirty {
		s.lastSaved = snapshot
	}

	observers := s.observersLocked()
	s.mu.Unlock()

	if dirty && s.writer != nil {
		rev := int64(0)
		if s.rev != nil {
			rev = s.rev.Generate()
		}
		s.writer.Enqueue(rev, snapshot)
	}

	for _, fn := range observers {
		fn()
	}
}

func (s *Store) observersLocked() []func() {
	out := make([]func(), 0, len(s.observers))
	for _, fn := range s.observers {
		out = append(out, fn)
	}
	return out
}

func validate(tx entity.Transaction) error {
	if tx.ID == "" {
		return pkgerror.NewInvalidInput(errors.New("transaction id is required"))
	}
	if tx.Amount < 0 {
		return pkgerror.NewInvalidInput(errors.New("amount must not be negative"))
	}
	if tx.Kind != entity.TxKindSend && tx.Kind != entity.TxKindReceive {
		return pkgerror.NewInvalidInput(errors.New("unknown transaction kind"))
	}
	if tx.Kind == entity.TxKindReceive && !tx.ReceiveState.Valid() {
		return pkgerror.NewInvalidInput(errors.New("unknown receive state"))
	}
	return nil
}
