package pointers

// Int returns a pointer to v. Issue offsets are optional ints.
func Int(v int) *int { return &v }

// IntOr dereferences p, or returns def when p is nil.
func IntOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
