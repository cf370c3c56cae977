package poker

import "errors"

// ErrorKind classifies engine errors.
type ErrorKind int

const (
	// KindValidation errors reject an intent and leave the table unchanged.
	// The player may retry with corrected input.
	KindValidation ErrorKind = iota + 1
	// KindStructural errors mean the hand cannot proceed.
	KindStructural
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindStructural:
		return "structural"
	default:
		return "unknown"
	}
}

// Error is the concrete type behind the sentinel errors of this package.
type Error struct {
	Kind ErrorKind
	msg  string
}

func (e *Error) Error() string {
	return e.msg
}

func validationError(msg string) *Error {
	return &Error{Kind: KindValidation, msg: msg}
}

func structuralError(msg string) *Error {
	return &Error{Kind: KindStructural, msg: msg}
}

// Validation errors.
var (
	ErrNotYourTurn            = validationError("not your turn to act")
	ErrCannotCheckWithOpenBet = validationError("cannot check when there is a bet to call")
	ErrNoBetToCall            = validationError("no bet to call")
	ErrRaiseBelowMinimum      = validationError("raise below minimum")
	ErrInsufficientBalance    = validationError("insufficient balance")
	ErrInvalidAction          = validationError("invalid action")
	ErrPlayerNotFound         = validationError("player not found")
	ErrTableFull              = validationError("table is full")
	ErrAlreadySeated          = validationError("player already seated")
	ErrHandInProgress         = validationError("hand in progress")
	ErrInvalidBuyIn           = validationError("invalid buy-in")
)

// Structural errors.
var (
	ErrInsufficientCards         = structuralError("insufficient cards in deck")
	ErrInsufficientActivePlayers = structuralError("insufficient active players")
	ErrRoomNotFound              = structuralError("room not found")
	ErrPotMismatch               = structuralError("pots do not match the chips bet")
)

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsValidation reports whether err rejects an intent without touching state.
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

// IsStructural reports whether err aborts the current hand.
func IsStructural(err error) bool {
	return KindOf(err) == KindStructural
}
