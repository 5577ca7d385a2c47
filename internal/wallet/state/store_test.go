package state

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/gosats/internal/pkg/pkgerror"
	"github.com/shandysiswandi/gosats/internal/wallet/entity"
	"github.com/shandysiswandi/gosats/internal/wallet/gateway"
)

type counterRev struct {
	mu sync.Mutex
	n  int64
}

func (c *counterRev) Generate() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.n
}

type countingGateway struct {
	gateway.Gateway

	mu   sync.Mutex
	sets int
}

func (c *countingGateway) Set(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	c.sets++
	c.mu.Unlock()
	return c.Gateway.Set(ctx, key, value)
}

func (c *countingGateway) setCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}

func receiveTx(id string, amount int64, st entity.ReceiveState) entity.Transaction {
	return entity.Transaction{
		ID:           id,
		Kind:         entity.TxKindReceive,
		Amount:       amount,
		Timestamp:    1700000000000,
		Invoice:      "lnbc1" + id,
		ReceiveState: st,
	}
}

func TestStoreAppendRejectsDuplicateID(t *testing.T) {
	t.Parallel()

	store := New(Dependency{Gateway: gateway.NewMemory(), Key: "ledger"})

	if err := store.Append(receiveTx("op-1", 1000, entity.ReceiveStateCreated)); err != nil {
		t.Fatalf("Append() err = %v", err)
	}

	err := store.Append(receiveTx("op-1", 2000, entity.ReceiveStateCreated))
	if !errors.Is(err, pkgerror.ErrDuplicateID) {
		t.Fatalf("Append() duplicate err = %v, want ErrDuplicateID", err)
	}

	if store.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", store.Len())
	}
}

func TestStoreOrderingAndUpdatePosition(t *testing.T) {
	t.Parallel()

	store := New(Dependency{Gateway: gateway.NewMemory(), Key: "ledger"})

	for _, id := range []string{"op-1", "op-2", "op-3"} {
		if err := store.Append(receiveTx(id, 100, entity.ReceiveStateCreated)); err != nil {
			t.Fatalf("Append(%s) err = %v", id, err)
		}
	}

	txs := store.Transactions()
	gotOrder := []string{txs[0].ID, txs[1].ID, txs[2].ID}
	wantOrder := []string{"op-3", "op-2", "op-1"}
	if !reflect.DeepEqual(gotOrder, wantOrder) {
		t.Fatalf("order = %v, want %v", gotOrder, wantOrder)
	}

	// updating the oldest record must not move it
	if err := store.Update(receiveTx("op-1", 100, entity.ReceiveStateFunded)); err != nil {
		t.Fatalf("Update() err = %v", err)
	}

	txs = store.Transactions()
	if txs[2].ID != "op-1" || txs[2].ReceiveState != entity.ReceiveStateFunded {
		t.Fatalf("updated record = %+v, want op-1 funded at position 2", txs[2])
	}
}

func TestStoreUpdateUnknownID(t *testing.T) {
	t.Parallel()

	store := New(Dependency{Gateway: gateway.NewMemory(), Key: "ledger"})

	err := store.Update(receiveTx("ghost", 1, entity.ReceiveStateFunded))
	if !errors.Is(err, pkgerror.ErrNotFound) {
		t.Fatalf("Update() err = %v, want ErrNotFound", err)
	}
}

func TestStoreUpdateEnforcesLifecycle(t *testing.T) {
	t.Parallel()

	store := New(Dependency{Gateway: gateway.NewMemory(), Key: "ledger"})

	if err := store.Append(receiveTx("op-1", 100, entity.ReceiveStateCreated)); err != nil {
		t.Fatalf("Append() err = %v", err)
	}
	if err := store.Update(receiveTx("op-1", 100, entity.ReceiveStateClaimed)); err != nil {
		t.Fatalf("Update() to claimed err = %v", err)
	}

	// frozen after claimed, even for a re-delivered claimed
	if err := store.Update(receiveTx("op-1", 100, entity.ReceiveStateClaimed)); err == nil {
		t.Fatal("Update() after claimed expected error")
	}
	if err := store.Update(receiveTx("op-1", 100, entity.ReceiveStateCanceled)); err == nil {
		t.Fatal("Update() claimed->canceled expected error")
	}

	// backwards transition rejected before terminal
	if err := store.Append(receiveTx("op-2", 100, entity.ReceiveStateFunded)); err != nil {
		t.Fatalf("Append() err = %v", err)
	}
	if err := store.Update(receiveTx("op-2", 100, entity.ReceiveStateCreated)); err == nil {
		t.Fatal("Update() funded->created expected error")
	}
}

func TestStoreObservers(t *testing.T) {
	t.Parallel()

	store := New(Dependency{Gateway: gateway.NewMemory(), Key: "ledger"})

	var first, second int
	unsubFirst := store.Subscribe(func() { first++ })
	store.Subscribe(func() { second++ })

	if err := store.Append(receiveTx("op-1", 100, entity.ReceiveStateCreated)); err != nil {
		t.Fatalf("Append() err = %v", err)
	}
	if first != 1 || second != 1 {
		t.Fatalf("observer calls = %d/%d, want 1/1", first, second)
	}

	unsubFirst()
	unsubFirst() // unsubscribing twice is a no-op

	if err := store.Update(receiveTx("op-1", 100, entity.ReceiveStateClaimed)); err != nil {
		t.Fatalf("Update() err = %v", err)
	}
	if first != 1 || second != 2 {
		t.Fatalf("observer calls = %d/%d, want 1/2", first, second)
	}
}

func TestStorePersistsOnlyWhenChanged(t *testing.T) {
	t.Parallel()

	gw := &countingGateway{Gateway: gateway.NewMemory()}
	writer := NewSnapshotWriter(gw, "ledger", WriterConfig{BaseBackoff: time.Millisecond})
	writer.Start()

	store := New(Dependency{Gateway: gw, Key: "ledger", Rev: &counterRev{}, Writer: writer})

	tx := receiveTx("op-1", 100, entity.ReceiveStateCreated)
	if err := store.Append(tx); err != nil {
		t.Fatalf("Append() err = %v", err)
	}

	// identical replacement does not change the serialized form
	if err := store.Update(tx); err != nil {
		t.Fatalf("Update() identity err = %v", err)
	}

	if err := writer.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() err = %v", err)
	}

	if got := gw.setCount(); got != 1 {
		t.Fatalf("gateway sets = %d, want 1", got)
	}
}

func TestStoreLoadRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gw := gateway.NewMemory()

	writer := NewSnapshotWriter(gw, "ledger", WriterConfig{BaseBackoff: time.Millisecond})
	writer.Start()

	source := New(Dependency{Gateway: gw, Key: "ledger", Rev: &counterRev{}, Writer: writer})

	want := []entity.Transaction{
		receiveTx("op-1", 1000, entity.ReceiveStateCreated),
		receiveTx("op-2", 2500, entity.ReceiveStateClaimed),
		{ID: "op-3", Kind: entity.TxKindSend, Amount: 42, Timestamp: 1700000000001, Invoice: "lnbc1send", Preimage: "00ff", FeeMsat: 12},
	}
	for _, tx := range want {
		if err := source.Append(tx); err != nil {
			t.Fatalf("Append(%s) err = %v", tx.ID, err)
		}
	}

	if err := writer.Stop(ctx); err != nil {
		t.Fatalf("Stop() err = %v", err)
	}

	// a fresh store on the same gateway reconstructs the same ledger
	restored := New(Dependency{Gateway: gw, Key: "ledger"})
	if err := restored.Load(ctx); err != nil {
		t.Fatalf("Load() err = %v", err)
	}

	if !reflect.DeepEqual(restored.Transactions(), source.Transactions()) {
		t.Fatalf("restored ledger = %+v, want %+v", restored.Transactions(), source.Transactions())
	}
}

func TestStoreLoadMissingSnapshot(t *testing.T) {
	t.Parallel()

	store := New(Dependency{Gateway: gateway.NewMemory(), Key: "ledger"})

	notified := 0
	store.Subscribe(func() { notified++ })

	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("Load() err = %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", store.Len())
	}
	if notified != 1 {
		t.Fatalf("observer calls = %d, want 1", notified)
	}
}

func TestStoreValidation(t *testing.T) {
	t.Parallel()

	store := New(Dependency{Gateway: gateway.NewMemory(), Key: "ledger"})

	cases := []entity.Transaction{
		{Kind: entity.TxKindSend, Amount: 1},                                                   // missing id
		{ID: "a", Kind: entity.TxKindSend, Amount: -1},                                         // negative amount
		{ID: "b", Kind: entity.TxKind("swap"), Amount: 1},                                      // unknown kind
		{ID: "c", Kind: entity.TxKindReceive, Amount: 1, ReceiveState: entity.ReceiveState("")}, // invalid state
	}
	for _, tx := range cases {
		if err := store.Append(tx); err == nil {
			t.Fatalf("Append(%+v) expected validation error", tx)
		}
	}
}
