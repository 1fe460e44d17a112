package reconcile

import "fmt"

// DefaultBatchSize is the number of account ids per write request.
const DefaultBatchSize = 50

// MakeBatches splits ids into fixed-size chunks, preserving order. The
// last chunk may be shorter. batchSize must be positive.
func MakeBatches(ids []int64, batchSize int) ([][]int64, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("reconcile: batch size must be positive, got %d", batchSize)
	}

	var batches [][]int64
	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}
	return batches, nil
}
