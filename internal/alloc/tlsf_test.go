package alloc

import (
	"testing"

	"github.com/aikart-go/aikart/internal/rnd"
)

func TestTLSFAllocFreeRoundTrip(t *testing.T) {
	tl := NewTLSFFixed(4096, 5, 2)
	p := tl.Alloc(100)
	if p == nil {
		t.Fatal("Alloc(100) returned nil")
	}
	for i := range p {
		p[i] = byte(i)
	}
	tl.Free(p)
	if tl.Alloc(100) == nil {
		t.Fatal("Alloc after Free returned nil")
	}
}

func TestTLSFCallocZeroesMemory(t *testing.T) {
	tl := NewTLSFFixed(4096, 5, 2)
	p := tl.Alloc(64)
	for i := range p {
		p[i] = 0xFF
	}
	tl.Free(p)

	z := tl.Calloc(64)
	for i, b := range z {
		if b != 0 {
			t.Fatalf("Calloc byte %d = %#x, want 0", i, b)
		}
	}
}

func TestTLSFReallocGrowCopiesContent(t *testing.T) {
	tl := NewTLSFFixed(8192, 5, 2)
	p := tl.Alloc(16)
	copy(p, []byte("hello world12345"))

	grown := tl.Realloc(p, 256)
	if grown == nil {
		t.Fatal("Realloc returned nil")
	}
	if string(grown[:16]) != "hello world12345" {
		t.Fatalf("Realloc lost content: %q", grown[:16])
	}
}

func TestTLSFReallocShrinkKeepsSameBlockWhenCapacitySuffices(t *testing.T) {
	tl := NewTLSFFixed(8192, 5, 2)
	p := tl.Alloc(256)
	copy(p, []byte("keep me"))
	shrunk := tl.Realloc(p, 8)
	if &shrunk[0] != &p[0] {
		t.Fatal("Realloc(shrink) moved the block although its capacity suffices")
	}
	if string(shrunk[:7]) != "keep me" {
		t.Fatalf("Realloc(shrink) lost content: %q", shrunk[:7])
	}
}

func TestTLSFFreeNilIsNoop(t *testing.T) {
	tl := NewTLSFFixed(4096, 5, 2)
	tl.Free(nil)
}

func TestTLSFCompleteCoalescing(t *testing.T) {
	tl := NewTLSFFixed(4096, 5, 2)
	a := tl.Alloc(1000)
	b := tl.Alloc(1000)
	c := tl.Alloc(1000)
	if a == nil || b == nil || c == nil {
		t.Fatal("expected three 1000-byte allocations to succeed in a 4096-byte region")
	}
	tl.Free(b)
	tl.Free(a)
	tl.Free(c)

	big := tl.Alloc(3800)
	if big == nil {
		t.Fatal("region did not fully coalesce after freeing every block")
	}
}

// TestTLSFStress exercises the scenario from spec.md §8: many random
// small allocations from a 256 KiB heap, randomized frees, then one large
// allocation that must still succeed once fragmentation is cleared by
// freeing everything else.
func TestTLSFStress(t *testing.T) {
	const heapSize = 256 * 1024
	tl := NewTLSFFixed(heapSize, 5, 2)
	rng := rnd.NewXorShift32(12345)

	var live [][]byte
	const rounds = 8192
	for i := 0; i < rounds; i++ {
		size := int(rng.Next()%1000) + 1
		p := tl.Alloc(size)
		if p != nil {
			live = append(live, p)
		}
		// occasionally free something already held, to exercise coalescing
		if len(live) > 0 && rng.Next()%3 == 0 {
			idx := int(rng.Next()) % len(live)
			tl.Free(live[idx])
			live[idx] = live[len(live)-1]
			live = live[:len(live)-1]
		}
	}
	for _, p := range live {
		tl.Free(p)
	}

	const want = 240 * 1024
	if tl.Alloc(want) == nil {
		t.Fatalf("expected a %d-byte allocation to succeed after releasing everything", want)
	}
}
