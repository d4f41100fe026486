package fbmirror

// Span describes one changed rectangular region of a frame.
//
// A span covers scanlines Y..EndY-1 at columns X..EndX-1, except for the last
// scanline which ends at LastScanEndX. Size is the total changed pixel count.
// Spans form an insertion-ordered singly linked list for one frame, strictly
// ordered by ascending (Y, X) and pairwise non-overlapping.
type Span struct {
	X, EndX      int
	Y, EndY      int
	LastScanEndX int
	Size         int
	next         *Span
}

// Next returns the following span in the frame's list, or nil.
func (s *Span) Next() *Span {
	return s.next
}

// spanArena hands out spans from a preallocated slab. The slab is sized for
// the worst case of an exact diff (alternating changed pixels on every
// scanline, half the frame's pixel count) so alloc never grows it. All spans
// are invalidated by reset at the start of the next frame.
type spanArena struct {
	slab []Span
	used int
}

func newSpanArena(width, height int) *spanArena {
	n := width * height / 2
	if n < 1 {
		n = 1
	}
	return &spanArena{slab: make([]Span, n)}
}

func (a *spanArena) reset() {
	a.used = 0
}

func (a *spanArena) alloc() *Span {
	s := &a.slab[a.used]
	a.used++
	*s = Span{}
	return s
}

// mergeSpans merges vertically adjacent spans that share an identical
// [X, EndX) extent into multiline spans. A multi-row write needs a single
// cursor window instead of one per scanline, cutting command overhead
// roughly proportional to the scanline count.
//
// Only meaningful for progressive updates: interlaced frames touch
// alternating rows, so adjacent-in-list spans are never on adjacent
// scanlines.
func mergeSpans(head *Span) {
	for s := head; s != nil; s = s.next {
		for n := s.next; n != nil; n = s.next {
			if n.Y != s.EndY || n.X != s.X || n.EndX != s.EndX || n.EndY != n.Y+1 {
				break
			}
			s.EndY++
			s.LastScanEndX = n.LastScanEndX
			s.Size += n.Size
			s.next = n.next
		}
	}
}

// alignSpans widens one-pixel spans so every transfer payload is at least 4
// encoded bytes. Some transfer backends misbehave below that minimum. The
// extra column is taken from the right, or from the left when the span
// already touches the frame edge.
func alignSpans(head *Span, width int) {
	for s := head; s != nil; s = s.next {
		if s.Size != 1 {
			continue
		}
		if s.EndX < width {
			s.EndX++
			s.LastScanEndX++
		} else {
			s.X--
		}
		s.Size++
	}
}
