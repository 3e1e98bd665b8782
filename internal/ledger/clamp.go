package ledger

// Clamp applies delta to count, bounded above by capacity when capacity is
// non-nil and below by 0. The lower bound wins, so a negative capacity
// still yields 0.
func Clamp(count, delta int64, capacity *int64) int64 {
	next := count + delta
	if capacity != nil && next > *capacity {
		next = *capacity
	}
	if next < 0 {
		next = 0
	}
	return next
}
