package core

import (
	"testing"
	"time"
)

func TestThrottleWindow(t *testing.T) {
	th := NewThrottle()
	base := time.Unix(0, 0)

	steps := []struct {
		at   time.Duration
		want bool
	}{
		{0, true},
		{10 * time.Second, false},
		{70 * time.Second, true},
		{129 * time.Second, false},
		{130 * time.Second, true},
	}
	for _, s := range steps {
		if got := th.ShouldEmit("status", base.Add(s.at)); got != s.want {
			t.Fatalf("ShouldEmit at %v = %v, want %v", s.at, got, s.want)
		}
	}
}

func TestThrottleKeysAreIndependent(t *testing.T) {
	th := NewThrottle()
	now := time.Unix(1000, 0)
	if !th.ShouldEmit("status", now) {
		t.Fatalf("first status emission should pass")
	}
	if !th.ShouldEmit("http:/api/status", now) {
		t.Fatalf("other key must not be affected")
	}
	if th.ShouldEmit("status", now.Add(59*time.Second)) {
		t.Fatalf("emission inside window must be suppressed")
	}
}
