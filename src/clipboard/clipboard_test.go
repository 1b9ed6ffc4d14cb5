package clipboard

import (
	"errors"
	"testing"
)

func TestWriteRead(t *testing.T) {
	// Needs a desktop session; headless runs only check the error path.
	if err := Write("test text"); err != nil {
		if !errors.Is(err, ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
		t.Skipf("clipboard not available: %v", err)
	}
	got, err := Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != "test text" {
		t.Logf("clipboard returned %q (another process may own it)", got)
	}
}

func TestInitIsStable(t *testing.T) {
	first := Init()
	if second := Init(); second != first {
		t.Errorf("Init returned %v then %v", first, second)
	}
}
