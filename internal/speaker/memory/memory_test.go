package memory

import (
	"context"
	"errors"
	"testing"

	"kefctl/internal/speaker"
)

func TestVolumeRoundTrip(t *testing.T) {
	ctx := context.Background()
	dev := New()
	if err := dev.SetVolume(ctx, 0.5); err != nil {
		t.Fatalf("set volume: %v", err)
	}
	v, err := dev.Volume(ctx)
	if err != nil {
		t.Fatalf("get volume: %v", err)
	}
	if v != 0.5 {
		t.Fatalf("volume = %v, want 0.5", v)
	}
	v, err = dev.IncreaseVolume(ctx)
	if err != nil {
		t.Fatalf("increase: %v", err)
	}
	if v < 0.549 || v > 0.551 {
		t.Fatalf("volume after increase = %v, want 0.55", v)
	}
}

func TestFailureInjectionAndTrace(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	dev := New(WithFailure(speaker.OpGetMode, boom))

	if _, err := dev.Mode(ctx); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	dev.Fail(speaker.OpGetMode, nil)
	if _, err := dev.Mode(ctx); err != nil {
		t.Fatalf("expected no error after reset, got %v", err)
	}
	ops := dev.Ops()
	if len(ops) != 2 || ops[0] != speaker.OpGetMode {
		t.Fatalf("unexpected trace: %v", ops)
	}
}

func TestSetSourcePowersOn(t *testing.T) {
	ctx := context.Background()
	dev := New()
	if err := dev.TurnOff(ctx); err != nil {
		t.Fatalf("turn off: %v", err)
	}
	if err := dev.SetSource(ctx, speaker.SourceAux); err != nil {
		t.Fatalf("set source: %v", err)
	}
	st, err := dev.State(ctx)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if !st.IsOn || st.Source != speaker.SourceAux {
		t.Fatalf("unexpected state: %#v", st)
	}
}
