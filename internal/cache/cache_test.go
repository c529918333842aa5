package cache

import (
	"errors"
	"testing"
	"testing/synctest"
	"time"

	"github.com/karl-ai/corehub/internal/common/logger"
)

func newTestCache() *Cache {
	return New(5*time.Minute, logger.Default())
}

func TestSetGet(t *testing.T) {
	c := newTestCache()

	c.Set("k", 42, time.Minute)
	v, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit")
	}
	if v.(int) != 42 {
		t.Errorf("value = %v, want 42", v)
	}

	// Overwrite is unconditional
	c.Set("k", "replaced", time.Minute)
	v, _ = c.Get("k")
	if v.(string) != "replaced" {
		t.Errorf("value after overwrite = %v", v)
	}
}

func TestLazyEvictionCountsEvictionAndMiss(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c := newTestCache()
		c.Set("k", "v", time.Second)

		time.Sleep(2 * time.Second)

		if _, ok := c.Get("k"); ok {
			t.Fatal("expected expired entry to miss")
		}

		s := c.Stats()
		if s.Evictions != 1 {
			t.Errorf("evictions = %d, want 1", s.Evictions)
		}
		if s.Misses != 1 {
			t.Errorf("misses = %d, want 1", s.Misses)
		}
		if s.Entries != 0 {
			t.Errorf("entries = %d, want 0", s.Entries)
		}
	})
}

func TestEntryLivesUntilTTL(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c := newTestCache()
		c.Set("k", "v", 10*time.Second)

		time.Sleep(9 * time.Second)
		if _, ok := c.Get("k"); !ok {
			t.Fatal("entry expired before its TTL")
		}
	})
}

func TestDefaultTTL(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c := New(3*time.Second, logger.Default())
		c.Set("k", "v", 0)

		time.Sleep(2 * time.Second)
		if _, ok := c.Get("k"); !ok {
			t.Fatal("entry with default TTL expired early")
		}

		time.Sleep(2 * time.Second)
		if _, ok := c.Get("k"); ok {
			t.Fatal("entry outlived default TTL")
		}
	})
}

func TestCleanupExpired(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c := newTestCache()
		c.Set("a", 1, time.Second)
		c.Set("b", 2, time.Second)
		c.Set("c", 3, time.Hour)

		time.Sleep(2 * time.Second)

		if removed := c.CleanupExpired(); removed != 2 {
			t.Errorf("removed = %d, want 2", removed)
		}
		if s := c.Stats(); s.Entries != 1 || s.Evictions != 2 {
			t.Errorf("stats after cleanup = %+v", s)
		}
	})
}

func TestInvalidatePattern(t *testing.T) {
	c := newTestCache()
	c.Set("task:1", 1, time.Minute)
	c.Set("task:2", 2, time.Minute)
	c.Set("alert:1", 3, time.Minute)

	removed, err := c.InvalidatePattern(`^task:`)
	if err != nil {
		t.Fatalf("InvalidatePattern: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if _, ok := c.Get("alert:1"); !ok {
		t.Error("unrelated key was invalidated")
	}

	if _, err := c.InvalidatePattern(`[`); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestHitRatio(t *testing.T) {
	c := newTestCache()

	if s := c.Stats(); s.HitRatio != 0 {
		t.Errorf("hit ratio with no lookups = %v, want 0", s.HitRatio)
	}

	c.Set("k", "v", time.Minute)
	c.Get("k")
	c.Get("k")
	c.Get("k")
	c.Get("missing")

	s := c.Stats()
	if s.HitRatio != 75 {
		t.Errorf("hit ratio = %v, want 75", s.HitRatio)
	}
}

func TestGetOrCompute(t *testing.T) {
	c := newTestCache()

	calls := 0
	compute := func() (interface{}, error) {
		calls++
		return "computed", nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrCompute("k", time.Minute, compute)
		if err != nil {
			t.Fatalf("GetOrCompute: %v", err)
		}
		if v.(string) != "computed" {
			t.Errorf("value = %v", v)
		}
	}
	if calls != 1 {
		t.Errorf("compute calls = %d, want 1", calls)
	}

	// Errors are not cached
	wantErr := errors.New("boom")
	if _, err := c.GetOrCompute("bad", time.Minute, func() (interface{}, error) {
		return nil, wantErr
	}); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

func TestMemoize(t *testing.T) {
	c := newTestCache()

	calls := 0
	double := Memoize(c, "double", time.Minute, func(n int) (int, error) {
		calls++
		return n * 2, nil
	})

	for i := 0; i < 2; i++ {
		if v, err := double(21); err != nil || v != 42 {
			t.Fatalf("double(21) = %v, %v", v, err)
		}
	}
	if v, _ := double(5); v != 10 {
		t.Errorf("double(5) = %v, want 10", v)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (one per distinct argument)", calls)
	}
}

func TestKeyForMapOrderIndependent(t *testing.T) {
	a := KeyFor("fn", map[string]interface{}{"x": 1, "y": 2})
	b := KeyFor("fn", map[string]interface{}{"y": 2, "x": 1})
	if a != b {
		t.Errorf("keys differ: %q vs %q", a, b)
	}
}
