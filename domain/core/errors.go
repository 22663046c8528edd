package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound            = errors.New("resource not found")
	ErrBiomarkerNotFound   = fmt.Errorf("%w: biomarker", ErrNotFound)
	ErrMeasurementNotFound = fmt.Errorf("%w: measurement", ErrNotFound)
	ErrSessionNotFound     = fmt.Errorf("%w: test session", ErrNotFound)
	ErrJobNotFound         = fmt.Errorf("%w: lab upload job", ErrNotFound)
	ErrGoalNotFound        = fmt.Errorf("%w: weight goal", ErrNotFound)
	ErrInsightNotFound     = fmt.Errorf("%w: insight", ErrNotFound)

	// Normalisation errors
	ErrUnitConversion = errors.New("no unit conversion path")
	ErrRangeSelection = errors.New("reference range selection failed")

	// Ingest errors
	ErrDuplicateMeasurement = errors.New("duplicate measurement")
	ErrExtractionFailed     = errors.New("document extraction failed")
	ErrInvalidTestDate      = errors.New("invalid test date")

	// Derivation errors
	ErrInsufficientData = errors.New("insufficient data")
	ErrBaselineNotReady = errors.New("baseline not ready")

	// Collaborator errors
	ErrExternalAIUnavailable = errors.New("external AI unavailable")
	ErrExternalStore         = errors.New("external store error")

	// Access errors
	ErrPermissionDenied = errors.New("permission denied")
	ErrValidation       = errors.New("validation failed")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewValidationError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrValidation, field, reason)
}

func NewUnitConversionError(biomarker, fromUnit, toUnit string) error {
	return fmt.Errorf("%w: %s from %q to %q", ErrUnitConversion, biomarker, fromUnit, toUnit)
}

func NewDuplicateError(biomarker string, value float64) error {
	return fmt.Errorf("%w: %s value %g already recorded", ErrDuplicateMeasurement, biomarker, value)
}

func NewInsufficientDataError(missing ...string) error {
	return fmt.Errorf("%w: missing %v", ErrInsufficientData, missing)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidTestDate)
}

func IsNormalisationError(err error) bool {
	return errors.Is(err, ErrBiomarkerNotFound) ||
		errors.Is(err, ErrUnitConversion) ||
		errors.Is(err, ErrRangeSelection)
}

func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicateMeasurement)
}

func IsExternalError(err error) bool {
	return errors.Is(err, ErrExternalAIUnavailable) ||
		errors.Is(err, ErrExternalStore)
}
