package rollback

import "testing"

func TestRunExecutesCleanup(t *testing.T) {
	ran := false
	g := New(func() { ran = true })

	g.Run()

	if !ran {
		t.Error("cleanup did not run")
	}
	if !g.Ran() {
		t.Error("Ran() should report true after cleanup executed")
	}
}

func TestDismissPreventsCleanup(t *testing.T) {
	ran := false
	g := New(func() { ran = true })

	g.Dismiss()
	g.Run()

	if ran {
		t.Error("cleanup ran despite dismissal")
	}
	if !g.Dismissed() {
		t.Error("Dismissed() should report true")
	}
	if g.Ran() {
		t.Error("Ran() should report false for a dismissed guard")
	}
}

func TestRunIsIdempotent(t *testing.T) {
	count := 0
	g := New(func() { count++ })

	g.Run()
	g.Run()

	if count != 1 {
		t.Errorf("cleanup ran %d times, want 1", count)
	}
}

func TestRunSwallowsPanic(t *testing.T) {
	g := New(func() { panic("cleanup exploded") })

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("panic escaped the guard: %v", r)
		}
	}()
	g.Run()
}

func TestNilCleanup(t *testing.T) {
	g := New(nil)
	g.Run() // must not panic
}
