package domain

// AccountID is an opaque account identifier supplied by the host.
// Its contents are never inspected beyond being non-empty.
type AccountID string

// String returns the string representation of AccountID.
func (a AccountID) String() string {
	return string(a)
}

// IsEmpty reports whether the identifier is the empty string.
func (a AccountID) IsEmpty() bool {
	return a == ""
}
