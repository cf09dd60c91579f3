package tally

// DeleteQueue accumulates the paths of sidecar files that were
// successfully absorbed and may be removed by the caller afterwards.
//
// The engine only ever appends; deletion is always an explicit later
// step owned by whoever created the queue. A queue belongs to exactly
// one orchestration invocation and must not be shared across
// concurrent ones.
type DeleteQueue struct {
	paths []string
}

// Add appends an absolute path to the queue.
func (q *DeleteQueue) Add(path string) {
	q.paths = append(q.paths, path)
}

// Paths returns the accumulated paths in absorption order.
func (q *DeleteQueue) Paths() []string {
	return q.paths
}

// Len returns the number of queued paths.
func (q *DeleteQueue) Len() int {
	return len(q.paths)
}
