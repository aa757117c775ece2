package host

import (
	"context"
	"testing"
)

func TestCollect(t *testing.T) {
	info, err := Collect(context.Background())
	if err != nil {
		t.Skipf("host info unavailable: %v", err)
	}
	if info.Hostname == "" {
		t.Fatalf("expected hostname")
	}
	if info.MemTotal == 0 {
		t.Fatalf("expected total memory")
	}
}

func TestCollectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// gopsutil может вернуть кэш и без контекста; проверяем только отсутствие паники.
	_, _ = Collect(ctx)
}
