package fbmirror

import "periph.io/x/devices/v3/fbmirror/image565"

// countChangedPixels compares every pixel of cur against ref. The count feeds
// the update policy's transfer-cost estimate before any spans are built.
func countChangedPixels(cur, ref *image565.RGB565) int {
	changed := 0
	for y := 0; y < cur.Rect.Dy(); y++ {
		c := cur.Row(y)
		r := ref.Row(y)
		for x, p := range c {
			if p != r[x] {
				changed++
			}
		}
	}
	return changed
}

// diffExact produces the frame's span list with one span per contiguous
// changed run per scanline. Every differing pixel is covered and span
// boundaries are exact to the changed columns.
//
// When interlaced is set, only scanlines of the given parity are scanned;
// the other half of the frame is left stale in the reference buffer.
func diffExact(cur, ref *image565.RGB565, interlaced bool, parity int, arena *spanArena) *Span {
	var head, tail *Span

	y, step := 0, 1
	if interlaced {
		y, step = parity, 2
	}
	for ; y < cur.Rect.Dy(); y += step {
		c := cur.Row(y)
		r := ref.Row(y)
		x := 0
		w := len(c)
		for x < w {
			if c[x] == r[x] {
				x++
				continue
			}
			start := x
			for x < w && c[x] != r[x] {
				x++
			}
			head, tail = appendSpan(head, tail, arena, start, x, y)
		}
	}
	return head
}

// canDiffCoarse reports whether the coarse 4-wide diff is usable for the
// given geometry. It needs whole 4-pixel groups per scanline and 8-byte
// stride alignment.
func canDiffCoarse(width, strideBytes int) bool {
	return width%4 == 0 && strideBytes%8 == 0
}

// diffCoarse4 is the fast but coarse variant of diffExact: it compares 4
// pixels per step and a single differing lane marks the whole group changed,
// so span boundaries are padded out to 4-pixel multiples. Coverage is still a
// superset of the exact diff's.
func diffCoarse4(cur, ref *image565.RGB565, interlaced bool, parity int, arena *spanArena) *Span {
	var head, tail *Span

	y, step := 0, 1
	if interlaced {
		y, step = parity, 2
	}
	for ; y < cur.Rect.Dy(); y += step {
		c := cur.Row(y)
		r := ref.Row(y)
		w := len(c)
		x := 0
		for x < w {
			if c[x] == r[x] && c[x+1] == r[x+1] && c[x+2] == r[x+2] && c[x+3] == r[x+3] {
				x += 4
				continue
			}
			start := x
			for x < w && (c[x] != r[x] || c[x+1] != r[x+1] || c[x+2] != r[x+2] || c[x+3] != r[x+3]) {
				x += 4
			}
			head, tail = appendSpan(head, tail, arena, start, x, y)
		}
	}
	return head
}

func appendSpan(head, tail *Span, arena *spanArena, x, endX, y int) (*Span, *Span) {
	s := arena.alloc()
	s.X = x
	s.EndX = endX
	s.Y = y
	s.EndY = y + 1
	s.LastScanEndX = endX
	s.Size = endX - x
	if tail == nil {
		return s, s
	}
	tail.next = s
	return head, s
}
