package exr

import (
	"errors"
	"sync"
	"testing"
)

func TestBufferPoolGet(t *testing.T) {
	pool := NewBufferPool(0)
	for _, size := range []int{0, 100, 1024, 4096, 5000, 1 << 20, 5 << 20} {
		buf, err := pool.Get(size)
		if err != nil {
			t.Fatal(err)
		}
		if len(buf) != size {
			t.Errorf("Get(%d) returned len=%d", size, len(buf))
		}
		pool.Put(buf)
	}
	if pool.MemoryUsed() != 0 {
		t.Errorf("MemoryUsed = %d without a limit", pool.MemoryUsed())
	}
}

func TestBufferPoolLimit(t *testing.T) {
	pool := NewBufferPool(8 << 10)
	a, err := pool.Get(4000)
	if err != nil {
		t.Fatal(err)
	}
	if pool.MemoryUsed() != 4<<10 {
		t.Errorf("MemoryUsed = %d, want the size class", pool.MemoryUsed())
	}
	b, err := pool.Get(4096)
	if err != nil {
		t.Fatal(err)
	}
	_, err = pool.Get(1)
	var limitErr *MemoryLimitExceededError
	if !errors.As(err, &limitErr) || !errors.Is(err, ErrConfiguration) {
		t.Fatalf("Get over the limit: %v", err)
	}
	if limitErr.Limit != 8<<10 || limitErr.Current != 8<<10 {
		t.Errorf("limit error = %+v", limitErr)
	}
	pool.Put(a)
	pool.Put(b)
	if pool.MemoryUsed() != 0 {
		t.Errorf("MemoryUsed = %d after returning every buffer", pool.MemoryUsed())
	}
}

func TestBufferPoolUnpooledAccounting(t *testing.T) {
	pool := NewBufferPool(16 << 20)
	big, err := pool.Get(5 << 20)
	if err != nil {
		t.Fatal(err)
	}
	if pool.MemoryUsed() != 5<<20 {
		t.Errorf("MemoryUsed = %d, want the requested size", pool.MemoryUsed())
	}
	pool.Put(big)
	if pool.MemoryUsed() != 0 {
		t.Errorf("MemoryUsed = %d after an unpooled buffer", pool.MemoryUsed())
	}
}

func TestBufferPoolReuse(t *testing.T) {
	pool := NewBufferPool(0)
	buf, _ := pool.Get(1000)
	pool.Put(buf)
	again, _ := pool.Get(900)
	if cap(again) != 1<<10 || len(again) != 900 {
		t.Errorf("Get(900) = len %d cap %d", len(again), cap(again))
	}
	hits, misses := pool.Stats()
	if hits+misses != 2 {
		t.Errorf("Stats = %d hits, %d misses", hits, misses)
	}
}

func TestBufferPoolConcurrent(t *testing.T) {
	pool := NewBufferPool(1 << 20)
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Go(func() {
			for j := range 200 {
				buf, err := pool.Get(100 * (i + j%7 + 1))
				if err != nil {
					t.Error(err)
					return
				}
				buf[0] = byte(j)
				pool.Put(buf)
			}
		})
	}
	wg.Wait()
	if pool.MemoryUsed() != 0 {
		t.Errorf("MemoryUsed = %d", pool.MemoryUsed())
	}
}
