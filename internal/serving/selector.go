package serving

// selectVersion applies the selection policy over one name's version set.
// Only available entries are candidates: a retiring version keeps serving
// calls that already hold a reference, but is never selected again.
//
// requested > 0 pins an explicit version; requested == 0 picks the
// highest available version. Version numbers are unique per name by
// construction (Publish rejects duplicates), so no tie-break is needed.
// Callers must hold at least the registry read lock.
func selectVersion(name string, set []*servable, requested int64) (*servable, error) {
	if requested > 0 {
		for _, sv := range set {
			if sv.id.Version == requested {
				if sv.state != StateAvailable {
					return nil, ErrVersionNotAvailable(name, requested)
				}
				return sv, nil
			}
		}
		return nil, ErrVersionNotAvailable(name, requested)
	}
	// set is ascending by version; scan from the top.
	for i := len(set) - 1; i >= 0; i-- {
		if set[i].state == StateAvailable {
			return set[i], nil
		}
	}
	return nil, ErrNoAvailableVersion(name)
}
