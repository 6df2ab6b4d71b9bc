// Package errors defines all exported error sentinels for the crosstab library.
//
// This is the single source of truth for error values. Both the top-level
// crosstab package and any internal packages import from here, ensuring
// errors.Is checks work across package boundaries.
package errors

import "errors"

// Construction errors
var (
	ErrKeyLenInvalid    = errors.New("crosstab: key length must be positive")
	ErrVarNamesMismatch = errors.New("crosstab: variable name count does not match key length")
)

// Update errors
var (
	ErrDimensionMismatch   = errors.New("crosstab: input dimension does not match key length")
	ErrNonFiniteValue      = errors.New("crosstab: non-finite value where integer-valued input is required")
	ErrValueOutOfRange     = errors.New("crosstab: value exceeds int64 range")
	ErrTooManyCombinations = errors.New("crosstab: distinct combination count exceeds maximum (2^32-1)")
)

// Lookup errors
var (
	ErrNotFound = errors.New("crosstab: combination not found")
)

// Matrix file errors
var (
	ErrInvalidMagic    = errors.New("crosstab: invalid matrix file magic number")
	ErrInvalidVersion  = errors.New("crosstab: unsupported matrix file version")
	ErrInvalidElemKind = errors.New("crosstab: unknown matrix file element kind")
	ErrChecksumFailed  = errors.New("crosstab: matrix file checksum verification failed")
	ErrTruncatedFile   = errors.New("crosstab: matrix file is truncated")
	ErrFileClosed      = errors.New("crosstab: matrix file is closed")
	ErrMatrixTooLarge  = errors.New("crosstab: matrix dimensions overflow addressable size")
)
