package alloc

import "testing"

func TestGlobalForwardingToTLSF(t *testing.T) {
	SetCurrent(NewTLSFFixed(4096, 5, 2))
	defer SetCurrent(nil)

	p := Malloc(64)
	if p == nil {
		t.Fatal("Malloc returned nil")
	}
	for i := range p {
		p[i] = 0xEE
	}
	Free(p)

	z := Calloc(64)
	for i, b := range z {
		if b != 0 {
			t.Fatalf("Calloc byte %d = %#x, want 0", i, b)
		}
	}

	grown := Realloc(z, 256)
	if grown == nil {
		t.Fatal("Realloc returned nil")
	}
}

func TestGlobalForwardingToBuddy(t *testing.T) {
	SetCurrent(NewBuddyFixed(4096, 5))
	defer SetCurrent(nil)

	p := Malloc(64)
	if p == nil {
		t.Fatal("Malloc returned nil")
	}
	Free(p)
}

func TestGlobalReallocOnBuddyPanics(t *testing.T) {
	SetCurrent(NewBuddyFixed(4096, 5))
	defer SetCurrent(nil)

	defer func() {
		if recover() == nil {
			t.Fatal("expected Realloc on a non-TLSF allocator to panic")
		}
	}()
	Realloc(Malloc(16), 32)
}

func TestGlobalWithNoAllocatorInstalled(t *testing.T) {
	SetCurrent(nil)
	if Malloc(16) != nil {
		t.Fatal("Malloc with no allocator installed should return nil")
	}
	Free(nil) // must not panic
}
