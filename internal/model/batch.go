package model

// ItemError records why one element of a batch was not applied.
type ItemError struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// BatchResult summarizes a partial-success batch.
// Processed always equals Succeeded + Skipped.
type BatchResult struct {
	Processed int         `json:"processed"`
	Succeeded int         `json:"succeeded"`
	Skipped   int         `json:"skipped"`
	Errors    []ItemError `json:"errors,omitempty"`
}

// Succeed counts an applied element.
func (b *BatchResult) Succeed() {
	b.Processed++
	b.Succeeded++
}

// Skip counts an element that was not applied. An empty reason marks a
// silent skip that is not reported in Errors.
func (b *BatchResult) Skip(index int, reason string) {
	b.Processed++
	b.Skipped++
	if reason != "" {
		b.Errors = append(b.Errors, ItemError{Index: index, Reason: reason})
	}
}
