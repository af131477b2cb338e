// ===========================================================================
//
// File Name:  errors.go
//
// ===========================================================================

package interactome

import (
	"errors"
)

var (
	// ErrMissingSource reports a required STRING source file that is not present
	ErrMissingSource = errors.New("missing source file")

	// ErrMalformedTable reports a source row that cannot be parsed
	ErrMalformedTable = errors.New("malformed table")

	// ErrUnknownAlgorithm reports an unsupported layout algorithm key
	ErrUnknownAlgorithm = errors.New("unknown layout algorithm")

	// ErrCorruptArtifact reports a cached artifact that cannot be decoded
	ErrCorruptArtifact = errors.New("corrupt cached artifact")

	// ErrNoFeatures reports a functional layout without a usable feature matrix
	ErrNoFeatures = errors.New("no feature matrix")

	// ErrInvalidConfig reports a configuration value out of range
	ErrInvalidConfig = errors.New("invalid configuration")
)
