package veil

// Cloner allows types to provide deep copy logic.
// Processor.Store seals a clone so the caller's value keeps its plaintext.
//
// The Clone method must return a deep copy where modifications to the clone
// do not affect the original value. For types containing pointers, slices,
// or maps, copy those too:
//
//	func (c Customer) Clone() Customer {
//	    tags := make([]string, len(c.Tags))
//	    copy(tags, c.Tags)
//	    c.Tags = tags
//	    return c
//	}
type Cloner[T any] interface {
	Clone() T
}
