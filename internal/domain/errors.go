package domain

import "errors"

// Error kinds shared by every package. Check with errors.Is.
var (
	ErrExtraction = errors.New("studydeck: document could not be extracted")
	ErrValidation = errors.New("studydeck: invalid input")
	ErrNotFound   = errors.New("studydeck: card not found")
)
