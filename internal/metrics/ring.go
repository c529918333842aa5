package metrics

// ring is a fixed-capacity buffer of samples. When full, appending drops the
// oldest sample. Not safe for concurrent use; the collector serializes access.
type ring struct {
	buf   []Sample
	start int // index of the oldest sample
	size  int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]Sample, capacity)}
}

func (r *ring) append(s Sample) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = s
		r.size++
		return
	}
	r.buf[r.start] = s
	r.start = (r.start + 1) % len(r.buf)
}

// latest returns the most recent sample, or false when empty.
func (r *ring) latest() (Sample, bool) {
	if r.size == 0 {
		return Sample{}, false
	}
	return r.buf[(r.start+r.size-1)%len(r.buf)], true
}

// all returns the retained samples in chronological order.
func (r *ring) all() []Sample {
	out := make([]Sample, 0, r.size)
	for i := 0; i < r.size; i++ {
		out = append(out, r.buf[(r.start+i)%len(r.buf)])
	}
	return out
}

func (r *ring) len() int {
	return r.size
}
