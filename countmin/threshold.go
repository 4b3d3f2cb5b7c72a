package countmin

// StreamThreshold tracks keys whose CountMinSketch estimate has reached a
// configured threshold at some point during the stream (spec §4.7).
type StreamThreshold struct {
	*CountMinSketch
	threshold int64
	tracked   map[string]int64
}

// NewStreamThreshold wraps a fresh CountMinSketch with explicit (depth, width).
func NewStreamThreshold(depth, width int, threshold int64, opts ...Option) (*StreamThreshold, error) {
	s, err := New(depth, width, opts...)
	if err != nil {
		return nil, err
	}
	return &StreamThreshold{CountMinSketch: s, threshold: threshold, tracked: make(map[string]int64)}, nil
}

// NewStreamThresholdWithRate wraps a rate-derived CountMinSketch.
func NewStreamThresholdWithRate(confidence, errorRate float64, threshold int64, opts ...Option) (*StreamThreshold, error) {
	s, err := NewWithRate(confidence, errorRate, opts...)
	if err != nil {
		return nil, err
	}
	return &StreamThreshold{CountMinSketch: s, threshold: threshold, tracked: make(map[string]int64)}, nil
}

// Add updates the sketch and records key in tracked once its estimate
// reaches the threshold.
func (s *StreamThreshold) Add(key []byte) int64 {
	e := s.AddOne(key)
	if e >= s.threshold {
		s.tracked[string(key)] = e
	}
	return e
}

// Remove decrements the sketch and drops key from tracked if its estimate
// falls back below the threshold.
func (s *StreamThreshold) Remove(key []byte) int64 {
	e := s.CountMinSketch.Remove(key, 1)
	if e < s.threshold {
		delete(s.tracked, string(key))
	} else {
		s.tracked[string(key)] = e
	}
	return e
}

// Tracked returns a copy of the current tracked key/estimate map.
func (s *StreamThreshold) Tracked() map[string]int64 {
	out := make(map[string]int64, len(s.tracked))
	for k, v := range s.tracked {
		out[k] = v
	}
	return out
}
