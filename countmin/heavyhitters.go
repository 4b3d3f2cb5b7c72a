package countmin

// hitter is a single heavy-hitters candidate, ordered by estimate so the
// transient minHeap built at eviction time surfaces the smallest one.
type hitter struct {
	key      string
	estimate int64
}

func (h hitter) Less(other *hitter) bool { return h.estimate < other.estimate }

// HeavyHitters tracks the num_hitters keys with the largest observed
// CountMinSketch estimates (spec §4.6).
type HeavyHitters struct {
	*CountMinSketch
	numHitters int
	heavy      map[string]int64
}

// NewHeavyHitters wraps a fresh CountMinSketch with explicit (depth, width).
func NewHeavyHitters(depth, width, numHitters int, opts ...Option) (*HeavyHitters, error) {
	s, err := New(depth, width, opts...)
	if err != nil {
		return nil, err
	}
	return &HeavyHitters{CountMinSketch: s, numHitters: numHitters, heavy: make(map[string]int64)}, nil
}

// NewHeavyHittersWithRate wraps a rate-derived CountMinSketch.
func NewHeavyHittersWithRate(confidence, errorRate float64, numHitters int, opts ...Option) (*HeavyHitters, error) {
	s, err := NewWithRate(confidence, errorRate, opts...)
	if err != nil {
		return nil, err
	}
	return &HeavyHitters{CountMinSketch: s, numHitters: numHitters, heavy: make(map[string]int64)}, nil
}

// Add updates the underlying sketch, then applies the eviction rule:
// refresh an already-tracked key, insert if there's room, or evict the
// current minimum if the new estimate beats it.
func (h *HeavyHitters) Add(key []byte) int64 {
	e := h.AddOne(key)
	k := string(key)

	if _, ok := h.heavy[k]; ok {
		h.heavy[k] = e
		return e
	}
	if len(h.heavy) < h.numHitters {
		h.heavy[k] = e
		return e
	}

	heap := newMinHeap[hitter]()
	for key, est := range h.heavy {
		heap.insert(&hitter{key: key, estimate: est})
	}
	min, ok := heap.extract()
	if ok && e > min.estimate {
		delete(h.heavy, min.key)
		h.heavy[k] = e
	}
	return e
}

// HeavyHittersMap returns a copy of the current tracked key/estimate map.
func (h *HeavyHitters) HeavyHittersMap() map[string]int64 {
	out := make(map[string]int64, len(h.heavy))
	for k, v := range h.heavy {
		out[k] = v
	}
	return out
}
