package grove

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrInvalidID is returned for an element id that is not a base-10 integer.
	ErrInvalidID = errors.New("grove: element id must be a base-10 integer")
	// ErrDuplicateID is returned when a descriptor names an id that is already live.
	ErrDuplicateID = errors.New("grove: duplicate element id")
)

// RootID is the id of every manager's root element.
const RootID = "0"

// IDAllocator hands out element ids. Generated ids come from a monotonically
// increasing counter that skips every id reserved by explicit data, so a
// generated id never collides with one supplied by a scene. The counter and
// the reserved set persist for the lifetime of the allocator.
type IDAllocator struct {
	last     int
	reserved map[int]struct{}
}

// NewIDAllocator creates an allocator whose first generated id is "1".
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{reserved: make(map[int]struct{})}
}

// Next returns the next free id.
func (a *IDAllocator) Next() string {
	for {
		a.last++
		if _, taken := a.reserved[a.last]; !taken {
			return strconv.Itoa(a.last)
		}
	}
}

// Reserve excludes an explicitly supplied id from generation.
func (a *IDAllocator) Reserve(id string) error {
	n, err := ParseID(id)
	if err != nil {
		return err
	}
	a.reserved[n] = struct{}{}
	return nil
}

// Reserved reports whether id has been reserved.
func (a *IDAllocator) Reserved(id string) bool {
	n, err := ParseID(id)
	if err != nil {
		return false
	}
	_, ok := a.reserved[n]
	return ok
}

// ParseID parses an element id. Only the canonical form is accepted, so
// "007" and "+7" are rejected rather than aliasing "7".
func ParseID(id string) (int, error) {
	n, err := strconv.Atoi(id)
	if err != nil || strconv.Itoa(n) != id {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return n, nil
}
