package storage

import (
	"io"
	"strings"
	"testing"
)

func TestPutGetDelete(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	key, err := s.Put("attachments/a1/report.pdf", strings.NewReader("hello"))
	if err != nil {
		t.Fatal(err)
	}
	rc, err := s.Get(key)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	if string(b) != "hello" {
		t.Errorf("got %q", b)
	}
	if err := s.Delete(key); err != nil {
		t.Fatal(err)
	}
	// Deleting again is a no-op.
	if err := s.Delete(key); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestRejectsTraversal(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"../escape", "/abs/path", "a/../../b", "."} {
		if _, err := s.Put(key, strings.NewReader("x")); err == nil {
			t.Errorf("Put(%q) must fail", key)
		}
	}
}
