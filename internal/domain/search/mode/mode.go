// Package mode names the output shape of a search: the requested mode of
// a JSON request and the result set variant the compiler selects.
package mode

// Mode is the requested result shape.
type Mode string

// Output mode constants.
const (
	// Default returns objects when a target is bound, dicts otherwise.
	Default Mode = ""
	// List returns tuples of the requested fields.
	List Mode = "list"
	// Dict returns mappings of the requested fields.
	Dict Mode = "dict"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Default || m == List || m == Dict
}
