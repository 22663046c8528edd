package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	UserID        ID
	BiomarkerID   string // stable catalog identifier, not a UUID
	SessionID     ID
	MeasurementID ID
	JobID         ID
	InsightID     ID
)

// String conversions for domain IDs
func (id UserID) String() string        { return ID(id).String() }
func (id BiomarkerID) String() string   { return string(id) }
func (id SessionID) String() string     { return ID(id).String() }
func (id MeasurementID) String() string { return ID(id).String() }
func (id JobID) String() string         { return ID(id).String() }
func (id InsightID) String() string     { return ID(id).String() }

// ParseUserID parses a string into UserID
func ParseUserID(s string) (UserID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("user ID cannot be empty")
	}
	return UserID(s), nil
}

// ParseBiomarkerID parses a string into BiomarkerID
func ParseBiomarkerID(s string) (BiomarkerID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("biomarker ID cannot be empty")
	}
	return BiomarkerID(s), nil
}

// ParseJobID parses a string into JobID
func ParseJobID(s string) (JobID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("job ID cannot be empty")
	}
	return JobID(s), nil
}
