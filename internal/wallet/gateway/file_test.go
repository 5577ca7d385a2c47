package gateway

import (
	"bytes"
	"context"
	"testing"
)

func TestFileRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gw, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("NewFile() err = %v", err)
	}

	if _, ok, err := gw.Get(ctx, "ledger"); err != nil || ok {
		t.Fatalf("Get() before any write = ok %v, err %v", ok, err)
	}

	snapshot := []byte(`[{"id":"op-1","kind":"receive"}]`)
	if err := gw.Set(ctx, "ledger", snapshot); err != nil {
		t.Fatalf("Set() err = %v", err)
	}

	value, ok, err := gw.Get(ctx, "ledger")
	if err != nil || !ok {
		t.Fatalf("Get() = ok %v, err %v", ok, err)
	}
	if !bytes.Equal(value, snapshot) {
		t.Fatalf("Get() value = %s, want %s", value, snapshot)
	}

	if err := gw.Set(ctx, "ledger", []byte(`[]`)); err != nil {
		t.Fatalf("Set() overwrite err = %v", err)
	}
	value, _, _ = gw.Get(ctx, "ledger")
	if !bytes.Equal(value, []byte(`[]`)) {
		t.Fatalf("Get() after overwrite = %s", value)
	}
}

func TestFileRejectsBadKeys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gw, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("NewFile() err = %v", err)
	}

	for _, key := range []string{"", "../escape", "a/b", "dot.dot"} {
		if err := gw.Set(ctx, key, []byte("x")); err == nil {
			t.Fatalf("Set(%q) expected error", key)
		}
		if _, _, err := gw.Get(ctx, key); err == nil {
			t.Fatalf("Get(%q) expected error", key)
		}
	}
}
