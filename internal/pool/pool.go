// Package pool provides object pooling for result slices that are rebuilt
// on every call. Its only user is the Schema Registry's Names
// (get_node_types); other list/query paths allocate their results directly.
package pool

import "sync"

// StringSlicePool pools []string backing arrays for callers that build a
// slice, hand it to the caller, and are done with the backing array once
// the caller has copied or serialized it.
var StringSlicePool = sync.Pool{
	New: func() any {
		return make([]string, 0, 16)
	},
}

// GetStringSlice returns a zero-length slice ready for append.
func GetStringSlice() []string {
	s := StringSlicePool.Get().([]string)
	return s[:0]
}

// PutStringSlice returns s's backing array to the pool. Callers must not
// use s after calling PutStringSlice.
func PutStringSlice(s []string) {
	StringSlicePool.Put(s) //nolint:staticcheck // intentional generic sync.Pool usage
}
