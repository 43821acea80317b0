package jsonstore

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type doc struct {
	Value int `json:"value"`
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "doc.json")

	if err := WriteJSON(path, &doc{Value: 7}); err != nil {
		t.Fatal(err)
	}
	var got doc
	if err := ReadJSON(path, &got); err != nil {
		t.Fatal(err)
	}
	if got.Value != 7 {
		t.Errorf("got %d, want 7", got.Value)
	}
}

func TestReadMissingFileIsNotError(t *testing.T) {
	dir := t.TempDir()
	var got doc
	if err := ReadJSON(filepath.Join(dir, "missing.json"), &got); err != nil {
		t.Fatal(err)
	}
	if got.Value != 0 {
		t.Errorf("expected zero value, got %+v", got)
	}
}

func TestReadCorruptFileReturnsCorrupt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	var got doc
	err := ReadJSON(path, &got)
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := err.(*Corrupt); !ok {
		t.Fatalf("expected *Corrupt, got %T", err)
	}
}

func TestWithLockSerializesWriters(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "counter.json")
	if err := WriteJSON(path, &doc{Value: 0}); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	var successes int64
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := WithLock(path, LockExclusive, func() error {
				var d doc
				if err := ReadJSON(path, &d); err != nil {
					return err
				}
				d.Value++
				return WriteJSON(path, &d)
			})
			if err == nil {
				atomic.AddInt64(&successes, 1)
			}
		}()
	}
	wg.Wait()

	var final doc
	if err := ReadJSON(path, &final); err != nil {
		t.Fatal(err)
	}
	if final.Value != 20 {
		t.Errorf("expected 20 serialized increments, got %d", final.Value)
	}
}

func TestWithLockRetryConflict(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "held.json")
	if err := WriteJSON(path, &doc{}); err != nil {
		t.Fatal(err)
	}

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		WithLock(path, LockExclusive, func() error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	err := WithLockRetry(path, LockExclusive, 30*time.Millisecond, func() error {
		return nil
	})
	if err != ErrConflict {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}
