package services

import "slices"

// BatchResult aggregates the outcome of a bulk operation. Every item is
// processed independently; one item's failure never aborts the batch.
// Errors holds the distinct error messages encountered, de-duplicated,
// in first-seen order.
type BatchResult struct {
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

func (r *BatchResult) success() {
	r.Succeeded++
}

func (r *BatchResult) failure(err error) {
	r.Failed++
	msg := err.Error()
	if !slices.Contains(r.Errors, msg) {
		r.Errors = append(r.Errors, msg)
	}
}
