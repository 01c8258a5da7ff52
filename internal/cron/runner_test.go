package cronrunner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRunnerRunsJobsWithBaseContext(t *testing.T) {
	type key struct{}
	base := context.WithValue(context.Background(), key{}, "base")
	r := New(zap.NewNop(), base)

	var hits atomic.Int32
	var sawBase atomic.Bool
	if _, err := r.Add("tick", "@every 1s", func(ctx context.Context) error {
		hits.Add(1)
		sawBase.Store(ctx.Value(key{}) == "base")
		return errors.New("logged, not fatal")
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	r.Start()
	deadline := time.Now().Add(3 * time.Second)
	for hits.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	r.Stop()

	if hits.Load() == 0 {
		t.Fatalf("job never ran")
	}
	if !sawBase.Load() {
		t.Fatalf("job did not receive base context")
	}
}

func TestRunnerRejectsBadSpec(t *testing.T) {
	r := New(nil, nil)
	if _, err := r.Add("bad", "not a spec", func(context.Context) error { return nil }); err == nil {
		t.Fatalf("expected error for invalid spec")
	}
}

func TestRunnerRecoversPanics(t *testing.T) {
	r := New(zap.NewNop(), context.Background())
	var after atomic.Int32
	if _, err := r.Add("panics", "@every 1s", func(context.Context) error {
		after.Add(1)
		panic("boom")
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	r.Start()
	deadline := time.Now().Add(3 * time.Second)
	for after.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	r.Stop()
	if after.Load() == 0 {
		t.Fatalf("job never ran")
	}
}
