package cellhash

import "testing"

func TestPoolAllocFree(t *testing.T) {
	p := NewPool[int](4)

	a := p.Alloc()
	b := p.Alloc()
	if a == b {
		t.Fatalf("expected distinct cells")
	}
	*a = 1
	*b = 2

	p.Free(a)
	c := p.Alloc()
	if c != a {
		t.Fatalf("expected FIFO reuse of oldest freed cell, got different pointer")
	}
	if *c != 0 {
		t.Fatalf("expected reused cell to be zeroed, got %d", *c)
	}
}

func TestPoolFIFOOrder(t *testing.T) {
	p := NewPool[int](8)
	cells := make([]*int, 3)
	for i := range cells {
		cells[i] = p.Alloc()
	}
	// free in order 0,1,2 -- expect reuse in the same order
	for _, c := range cells {
		p.Free(c)
	}
	for _, want := range cells {
		got := p.Alloc()
		if got != want {
			t.Fatalf("FIFO violated: want %p got %p", want, got)
		}
	}
}

func TestPoolGrowsBlocks(t *testing.T) {
	p := NewPool[int](2)
	for i := 0; i < 5; i++ {
		p.Alloc()
	}
	stats := p.Snapshot()
	if stats.Blocks < 3 {
		t.Fatalf("expected at least 3 blocks of size 2 for 5 allocations, got %d", stats.Blocks)
	}
	if stats.Allocated != 5 {
		t.Fatalf("expected 5 allocated cells, got %d", stats.Allocated)
	}
}

func TestKeyHashCaseInsensitive(t *testing.T) {
	if KeyHash("oh7lzb-1") != KeyHash("OH7LZB-1") {
		t.Fatalf("expected case-insensitive hash match")
	}
}

func TestFoldHistoryModulo(t *testing.T) {
	h := KeyHash("OH7LZB-1")
	folded := FoldHistory(h, 8192)
	if folded >= 8192 {
		t.Fatalf("folded hash %d out of range", folded)
	}
}

func TestFoldHeardModulo(t *testing.T) {
	h := KeyHash("N0CALL")
	folded := FoldHeard(h, 16)
	if folded >= 16 {
		t.Fatalf("folded hash %d out of range", folded)
	}
}
