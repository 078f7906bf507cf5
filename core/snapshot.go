package core

// IterationSnapshot captures the exact request body sent for one vendor
// round trip and the response body received, if any. Response stays nil
// when the call failed.
type IterationSnapshot struct {
	Request  map[string]any `json:"request"`
	Response map[string]any `json:"response"`
}

// Snapshots holds the captures of one orchestration call, indexed by
// iteration number minus one.
type Snapshots []*IterationSnapshot

// Get returns the snapshot for iteration n (1-based) or nil.
func (s Snapshots) Get(n int) *IterationSnapshot {
	if n < 1 || n > len(s) {
		return nil
	}
	return s[n-1]
}

// Map renders the snapshots keyed as iteration_1, iteration_2.
func (s Snapshots) Map() map[string]any {
	out := map[string]any{}
	if first := s.Get(1); first != nil {
		out["iteration_1"] = first
	}
	if second := s.Get(2); second != nil {
		out["iteration_2"] = second
	}
	return out
}
