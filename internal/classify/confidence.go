package classify

// FieldConfidence tracks, per field name, the highest confidence any layer
// has assigned that field's current value on Signals. The Pattern Engine,
// API Probe, and Action Discoverer all write into the same Signals value;
// this is the max-confidence-wins arbiter that keeps a later, less-certain
// layer from ever clobbering an earlier, more-certain one.
type FieldConfidence map[string]float32

// NewFieldConfidence returns an empty tracker, seeded implicitly at 0 for
// any field not yet written (Layer 1 structural extraction is treated as a
// fixed baseline confidence by whatever calls Consider for it first).
func NewFieldConfidence() FieldConfidence {
	return make(FieldConfidence)
}

// Consider reports whether confidence beats the field's current recorded
// confidence, and if so records it. Callers should only write the field's
// value onto Signals when Consider returns true.
func (fc FieldConfidence) Consider(field string, confidence float32) bool {
	if confidence <= fc[field] {
		return false
	}
	fc[field] = confidence
	return true
}
