package service

import "errors"

var (
	ErrInvalidPhase     = errors.New("operation not allowed in current phase")
	ErrEmptyDescription = errors.New("contract description is empty")
)
