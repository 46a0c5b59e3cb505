package detector

// sampleRing is a fixed-capacity ring of (timestamp, magnitude) pairs held in
// parallel slices. Only filled slots take part in window scans.
type sampleRing struct {
	ts   []int64
	mag  []float64
	pos  int
	fill int
}

// reset sizes the ring to capacity and clears it. Backing arrays are reused
// when they are already large enough.
func (r *sampleRing) reset(capacity int) {
	if cap(r.ts) >= capacity {
		r.ts = r.ts[:capacity]
		r.mag = r.mag[:capacity]
		clear(r.ts)
		clear(r.mag)
	} else {
		r.ts = make([]int64, capacity)
		r.mag = make([]float64, capacity)
	}
	r.pos = 0
	r.fill = 0
}

func (r *sampleRing) capacity() int {
	return len(r.ts)
}

// Len returns the number of filled slots.
func (r *sampleRing) Len() int {
	return r.fill
}

// push overwrites the oldest slot once the ring is full.
func (r *sampleRing) push(ts int64, mag float64) {
	r.ts[r.pos] = ts
	r.mag[r.pos] = mag
	r.pos++
	if r.pos >= len(r.ts) {
		r.pos = 0
	}
	if r.fill < len(r.ts) {
		r.fill++
	}
}

// window counts the slots with now-ts < horizon, and of those the ones whose
// magnitude is at least threshold.
func (r *sampleRing) window(now, horizon int64, threshold float64) (total, over int) {
	for i := range r.fill {
		if now-r.ts[i] < horizon {
			total++
			if r.mag[i] >= threshold {
				over++
			}
		}
	}
	return total, over
}

// appendMagnitudes appends the filled magnitudes to dst in insertion order.
func (r *sampleRing) appendMagnitudes(dst []float64) []float64 {
	if r.fill < len(r.mag) {
		return append(dst, r.mag[:r.fill]...)
	}
	dst = append(dst, r.mag[r.pos:]...)
	return append(dst, r.mag[:r.pos]...)
}
