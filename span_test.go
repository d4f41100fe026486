package fbmirror

import "testing"

func spanList(arena *spanArena, spans ...Span) *Span {
	var head, tail *Span
	for _, s := range spans {
		n := arena.alloc()
		*n = s
		if tail == nil {
			head, tail = n, n
		} else {
			tail.next = n
			tail = n
		}
	}
	return head
}

func TestMergeIdenticalExtents(t *testing.T) {
	arena := newSpanArena(64, 64)
	head := spanList(arena,
		Span{X: 3, EndX: 10, Y: 4, EndY: 5, LastScanEndX: 10, Size: 7},
		Span{X: 3, EndX: 10, Y: 5, EndY: 6, LastScanEndX: 10, Size: 7},
	)

	mergeSpans(head)

	if head.Next() != nil {
		t.Fatalf("spans not merged, second = %+v", *head.Next())
	}
	if head.EndY != 6 || head.Size != 14 || head.LastScanEndX != 10 {
		t.Errorf("merged span = %+v, want endY=6 size=14", *head)
	}
}

func TestMergeDifferentExtentsUntouched(t *testing.T) {
	arena := newSpanArena(64, 64)
	head := spanList(arena,
		Span{X: 3, EndX: 10, Y: 4, EndY: 5, LastScanEndX: 10, Size: 7},
		Span{X: 3, EndX: 11, Y: 5, EndY: 6, LastScanEndX: 11, Size: 8},
	)

	mergeSpans(head)

	if head.Next() == nil {
		t.Fatal("spans with different extents were merged")
	}
	if head.EndY != 5 {
		t.Errorf("first span endY = %d, want 5", head.EndY)
	}
}

func TestMergeNonAdjacentRowsUntouched(t *testing.T) {
	arena := newSpanArena(64, 64)
	head := spanList(arena,
		Span{X: 3, EndX: 10, Y: 4, EndY: 5, LastScanEndX: 10, Size: 7},
		Span{X: 3, EndX: 10, Y: 6, EndY: 7, LastScanEndX: 10, Size: 7},
	)

	mergeSpans(head)

	if head.Next() == nil {
		t.Fatal("spans with a scanline gap were merged")
	}
}

func TestMergeFullFrame(t *testing.T) {
	const w, h = 240, 240
	arena := newSpanArena(w, h)
	spans := make([]Span, h)
	for y := 0; y < h; y++ {
		spans[y] = Span{X: 0, EndX: w, Y: y, EndY: y + 1, LastScanEndX: w, Size: w}
	}
	head := spanList(arena, spans...)

	mergeSpans(head)

	if head.Next() != nil {
		t.Fatal("full-width scanlines did not merge into one span")
	}
	if head.Y != 0 || head.EndY != h || head.Size != w*h {
		t.Errorf("merged span = %+v, want full frame", *head)
	}
}

func TestAlignWidensRight(t *testing.T) {
	arena := newSpanArena(64, 64)
	head := spanList(arena,
		Span{X: 10, EndX: 11, Y: 10, EndY: 11, LastScanEndX: 11, Size: 1},
	)

	alignSpans(head, 240)

	if head.X != 10 || head.EndX != 12 || head.LastScanEndX != 12 || head.Size != 2 {
		t.Errorf("aligned span = %+v, want widened to [10,12)", *head)
	}
	// Two RGB565 pixels is the 4-byte transfer minimum.
	if head.Size*2 < 4 {
		t.Errorf("encoded payload %d bytes, want >= 4", head.Size*2)
	}
}

func TestAlignWidensLeftAtEdge(t *testing.T) {
	arena := newSpanArena(64, 64)
	head := spanList(arena,
		Span{X: 239, EndX: 240, Y: 0, EndY: 1, LastScanEndX: 240, Size: 1},
	)

	alignSpans(head, 240)

	if head.X != 238 || head.EndX != 240 || head.Size != 2 {
		t.Errorf("aligned edge span = %+v, want widened to [238,240)", *head)
	}
}

func TestAlignLeavesWideSpans(t *testing.T) {
	arena := newSpanArena(64, 64)
	head := spanList(arena,
		Span{X: 5, EndX: 8, Y: 0, EndY: 1, LastScanEndX: 8, Size: 3},
	)

	alignSpans(head, 240)

	if head.X != 5 || head.EndX != 8 || head.Size != 3 {
		t.Errorf("wide span modified: %+v", *head)
	}
}

func TestArenaReset(t *testing.T) {
	arena := newSpanArena(8, 8)
	first := arena.alloc()
	first.X = 42
	arena.reset()
	second := arena.alloc()
	if second.X != 0 {
		t.Errorf("recycled span not zeroed: %+v", *second)
	}
	if first != second {
		t.Error("reset did not recycle the slab")
	}
}
