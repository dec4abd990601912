package domain

// ApprovedProgress derives bundled completion from the frozen expected
// labels and the set of labels holding an approved decision. It is a
// pure function over an explicit read of the underlying rows; nothing
// caches the counts.
func ApprovedProgress(expected []string, approved []string) ItemProgress {
	approvedSet := make(map[string]bool, len(approved))
	for _, label := range approved {
		approvedSet[label] = true
	}

	completed := 0
	for _, label := range expected {
		if approvedSet[label] {
			completed++
		}
	}

	return ItemProgress{Completed: completed, Total: len(expected)}
}

// Done reports whether every expected label is approved.
func (p ItemProgress) Done() bool {
	return p.Total > 0 && p.Completed >= p.Total
}
