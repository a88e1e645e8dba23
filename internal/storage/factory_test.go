package storage

import "testing"

func TestNewStoreDefaultsToMemory(t *testing.T) {
	store, err := NewStore("", "")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
	if err := CloseIfSupported(store); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestNewStoreRejectsUnknownKind(t *testing.T) {
	if _, err := NewStore("postgres", ""); err == nil {
		t.Fatal("expected error for unsupported backend")
	}
}
