package types

import (
	"strings"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// MemoryID is the unique identifier of a memory record. The same ID refers
// to the same logical record in both the vector index and the warehouse.
type MemoryID string

// NewMemoryID generates a new UUID-based MemoryID
func NewMemoryID() MemoryID {
	return MemoryID(uuid.New().String())
}

// String returns the string representation of the memory ID
func (x MemoryID) String() string {
	return string(x)
}

// Validate checks if the memory ID is valid
func (x MemoryID) Validate() error {
	if x == "" {
		return goerr.New("memory ID is empty")
	}
	return nil
}

// SubjectID is the owner/grouping key of a memory record. It may be empty
// for single-subject deployments.
type SubjectID string

// String returns the string representation of the subject ID
func (x SubjectID) String() string {
	return string(x)
}

// MemoryStatus is the lifecycle tag of a memory record. It is a free-form
// string, not a closed enumeration; filtering treats it as opaque set
// membership. The constants below are the well-known values.
type MemoryStatus string

const (
	StatusActive   MemoryStatus = "active"
	StatusArchived MemoryStatus = "archived"
	StatusDeleted  MemoryStatus = "deleted"
)

// String returns the string representation of the status
func (x MemoryStatus) String() string {
	return string(x)
}

// Normalize returns the status, treating empty as StatusActive
func (x MemoryStatus) Normalize() MemoryStatus {
	if x == "" {
		return StatusActive
	}
	return x
}

// StatusSet is an ordered set of statuses. A record matches the set when its
// status equals any member (logical OR). An empty set matches everything.
type StatusSet []MemoryStatus

// ParseStatusSet parses a comma-separated status list such as
// "active,archived". Whitespace around elements is trimmed and empty
// elements are dropped, so "active, ,archived," yields two members.
func ParseStatusSet(s string) StatusSet {
	if s == "" {
		return nil
	}

	var set StatusSet
	for _, elem := range strings.Split(s, ",") {
		elem = strings.TrimSpace(elem)
		if elem == "" {
			continue
		}
		status := MemoryStatus(elem)
		if set.Contains(status) {
			continue
		}
		set = append(set, status)
	}
	return set
}

// Contains checks set membership by exact string match
func (x StatusSet) Contains(status MemoryStatus) bool {
	for _, s := range x {
		if s == status {
			return true
		}
	}
	return false
}

// String returns the comma-joined representation of the set
func (x StatusSet) String() string {
	elems := make([]string, len(x))
	for i, s := range x {
		elems[i] = string(s)
	}
	return strings.Join(elems, ",")
}
