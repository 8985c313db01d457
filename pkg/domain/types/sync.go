package types

import "github.com/m-mizutani/goerr/v2"

// SyncDirection identifies one of the two sync pipelines.
type SyncDirection string

const (
	// DirectionExport is the vector index to warehouse pipeline
	DirectionExport SyncDirection = "export"
	// DirectionImport is the warehouse to vector index pipeline
	DirectionImport SyncDirection = "import"
)

// AllSyncDirections returns all valid sync directions
func AllSyncDirections() []SyncDirection {
	return []SyncDirection{
		DirectionExport,
		DirectionImport,
	}
}

// IsValid checks if the sync direction is valid
func (x SyncDirection) IsValid() bool {
	switch x {
	case DirectionExport, DirectionImport:
		return true
	default:
		return false
	}
}

// String returns the string representation of the sync direction
func (x SyncDirection) String() string {
	return string(x)
}

// ParseSyncDirection parses a string into a SyncDirection
func ParseSyncDirection(s string) (SyncDirection, error) {
	d := SyncDirection(s)
	if !d.IsValid() {
		return "", goerr.New("invalid sync direction", goerr.V("direction", s))
	}
	return d, nil
}
