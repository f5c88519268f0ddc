package model

import "errors"

// ErrEmptyDocument is returned when the input text has no content after trimming
var ErrEmptyDocument = errors.New("document is empty")
