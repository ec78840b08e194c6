package table

import "errors"

var (
	ErrTableNotFound          = errors.New("table not found")
	ErrTableFull              = errors.New("table is full")
	ErrAlreadySeated          = errors.New("player already seated")
	ErrPlayerNotFound         = errors.New("player not found")
	ErrValidation             = errors.New("invalid input")
	ErrWrongPhase             = errors.New("action not valid in current phase")
	ErrNotYourTurn            = errors.New("not player's turn")
	ErrIllegalAction          = errors.New("action not legal for current hand")
	ErrInvalidBet             = errors.New("bet out of range")
	ErrConcurrentModification = errors.New("table was modified concurrently")
)
