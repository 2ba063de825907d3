package clock_test

import (
	"sync"
	"testing"
	"time"

	"github.com/artpar/caas/adapters/clock"
)

func TestReal_Now(t *testing.T) {
	c := clock.Real{}

	before := time.Now()
	got := c.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", got, before, after)
	}
}

func TestFake(t *testing.T) {
	start := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	c := clock.NewFake(start)

	if !c.Now().Equal(start) {
		t.Errorf("Now() = %v, want %v", c.Now(), start)
	}
	if !c.Now().Equal(c.Now()) {
		t.Error("fake clock must not move on its own")
	}

	if got := c.Advance(90 * time.Second); !got.Equal(start.Add(90 * time.Second)) {
		t.Errorf("Advance() = %v", got)
	}
	if !c.Now().Equal(start.Add(90 * time.Second)) {
		t.Errorf("Now() after Advance = %v", c.Now())
	}

	earlier := start.Add(-time.Hour)
	c.Set(earlier)
	if !c.Now().Equal(earlier) {
		t.Errorf("Now() after Set = %v, want %v", c.Now(), earlier)
	}
}

func TestFake_Concurrent(t *testing.T) {
	c := clock.NewFake(time.Unix(0, 0))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Advance(time.Second)
		}()
		go func() {
			defer wg.Done()
			_ = c.Now()
		}()
	}
	wg.Wait()

	if got := c.Now(); !got.Equal(time.Unix(10, 0)) {
		t.Errorf("Now() = %v, want 10s after epoch", got)
	}
}
