package cursor

// RowCount is an affected-row count that keeps "unknown" apart from a known
// zero.
type RowCount struct {
	n     int64
	known bool
}

// UnknownRowCount is the count of a statement that reports no rows affected
// information, such as a SELECT.
func UnknownRowCount() RowCount {
	return RowCount{}
}

// KnownRowCount returns a known count of n rows.
func KnownRowCount(n int64) RowCount {
	return RowCount{n: n, known: true}
}

// RowCountFrom converts an engine count where -1 means unknown.
func RowCountFrom(n int64) RowCount {
	if n < 0 {
		return UnknownRowCount()
	}
	return KnownRowCount(n)
}

// Known reports whether any contributing statement reported a count.
func (c RowCount) Known() bool {
	return c.known
}

// Value returns the count, or -1 when unknown.
func (c RowCount) Value() int64 {
	if !c.known {
		return -1
	}
	return c.n
}

// Add aggregates another count. Unknown counts contribute nothing; a known
// count turns an unknown total into a known one.
func (c RowCount) Add(other RowCount) RowCount {
	if !other.known {
		return c
	}
	return RowCount{n: c.n + other.n, known: true}
}
