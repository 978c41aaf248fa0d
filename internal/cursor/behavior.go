package cursor

import "strings"

// Behavior is a set of flags requested by the caller when the reader is
// opened. Values combine with bitwise OR.
type Behavior uint

const (
	// BehaviorDefault places no restriction on the reader.
	BehaviorDefault Behavior = 0
	// BehaviorSingleResult expects a single result set.
	BehaviorSingleResult Behavior = 1 << iota
	// BehaviorSchemaOnly returns column information only; advancing never
	// fetches.
	BehaviorSchemaOnly
	// BehaviorKeyInfo asks the engine for key column information.
	BehaviorKeyInfo
	// BehaviorSingleRow surfaces at most one row.
	BehaviorSingleRow
	// BehaviorSequentialAccess hints that columns are read in order.
	BehaviorSequentialAccess
	// BehaviorCloseConnection closes the owning connection when the reader
	// is closed.
	BehaviorCloseConnection
)

// Has reports whether every flag in flag is set.
func (b Behavior) Has(flag Behavior) bool {
	return b&flag == flag
}

func (b Behavior) String() string {
	if b == BehaviorDefault {
		return "default"
	}
	names := []struct {
		flag Behavior
		name string
	}{
		{BehaviorSingleResult, "single-result"},
		{BehaviorSchemaOnly, "schema-only"},
		{BehaviorKeyInfo, "key-info"},
		{BehaviorSingleRow, "single-row"},
		{BehaviorSequentialAccess, "sequential-access"},
		{BehaviorCloseConnection, "close-connection"},
	}
	var parts []string
	for _, n := range names {
		if b.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}
