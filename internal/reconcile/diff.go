package reconcile

// Result is an immutable snapshot of one reconciliation. It is created
// fresh per preview; when inputs change a new snapshot replaces it.
type Result struct {
	ToAdd              Lookup   `json:"to_add"`
	AlreadyExists      Lookup   `json:"already_exists"`
	NotFound           []string `json:"not_found"`
	TotalRequested     int      `json:"total_requested"`
	TotalToAdd         int      `json:"total_to_add"`
	TotalAlreadyExists int      `json:"total_already_exists"`
}

// Diff routes every (email, id) pair of the new mapping against the
// existing campaign lookup: absent emails go to ToAdd, matching
// assignments to AlreadyExists, and an email present under a different id
// is treated as a new assignment (overwrite, not merge). Pure and total;
// NotFound is populated by the mapping step, not here.
func Diff(existing, new Lookup) Result {
	toAdd := make(Lookup)
	alreadyExists := make(Lookup)

	for email, id := range new {
		existingID, present := existing[email]
		if present && existingID == id {
			alreadyExists[email] = id
		} else {
			toAdd[email] = id
		}
	}

	return Result{
		ToAdd:              toAdd,
		AlreadyExists:      alreadyExists,
		NotFound:           []string{},
		TotalRequested:     len(new),
		TotalToAdd:         len(toAdd),
		TotalAlreadyExists: len(alreadyExists),
	}
}

// AccountIDsToAdd returns the distinct ids behind ToAdd. Order is not
// significant to the diff itself; this sorts nothing and dedupes only.
func (r Result) AccountIDsToAdd() []int64 {
	seen := make(map[int64]struct{}, len(r.ToAdd))
	ids := make([]int64, 0, len(r.ToAdd))
	for _, id := range r.ToAdd {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
