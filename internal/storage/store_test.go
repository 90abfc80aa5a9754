package storage

import (
	"errors"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetDelete(t *testing.T) {
	s := openTestStore(t)

	if err := s.Put([]byte("doc:1"), []byte(`{"title":"hello"}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := s.Get([]byte("doc:1"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `{"title":"hello"}` {
		t.Errorf("Get = %q", got)
	}

	if err := s.Delete([]byte("doc:1")); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get([]byte("doc:1")); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get after Delete = %v, want ErrKeyNotFound", err)
	}

	// Deleting an absent key is fine.
	if err := s.Delete([]byte("doc:missing")); err != nil {
		t.Errorf("Delete of absent key = %v", err)
	}
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Get([]byte("nope")); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get missing = %v, want ErrKeyNotFound", err)
	}
}

func TestPutBatch(t *testing.T) {
	s := openTestStore(t)

	pairs := map[string][]byte{
		"doc:a": []byte("1"),
		"doc:b": []byte("2"),
		"doc:c": []byte("3"),
	}
	if err := s.PutBatch(pairs); err != nil {
		t.Fatalf("PutBatch failed: %v", err)
	}

	for k, want := range pairs {
		got, err := s.Get([]byte(k))
		if err != nil {
			t.Fatalf("Get(%s) failed: %v", k, err)
		}
		if string(got) != string(want) {
			t.Errorf("Get(%s) = %q, want %q", k, got, want)
		}
	}
}
