package types

import "errors"

// Domain errors for type validation
var (
	ErrContextRequired   = errors.New("context is required")
	ErrPathRequired      = errors.New("path is required")
	ErrQueryRequired     = errors.New("query is required")
	ErrRelationEndpoints = errors.New("relationship requires from and to elements")
	ErrInvalidLimit      = errors.New("limit must be >= 1")
	ErrInvalidDepth      = errors.New("expansion depth must be between 1 and 3")
)
