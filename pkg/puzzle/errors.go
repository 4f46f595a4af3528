package puzzle

import "errors"

// Rejections are local outcomes surfaced as feedback. None of them unwind
// puzzle state; callers compare with errors.Is.
var (
	ErrRejectedOverflow          = errors.New("input ignored: entry is at max length")
	ErrRejectedInvalidCode       = errors.New("access denied: code does not match")
	ErrRejectedWrongFillerTag    = errors.New("slot rejected filler tag")
	ErrRejectedAlreadyFilled     = errors.New("slot already filled")
	ErrRejectedLocked            = errors.New("interaction locked: preconditions not met")
	ErrMisconfiguredCollaborator = errors.New("collaborator not configured")

	ErrUnknownSlot   = errors.New("unknown slot")
	ErrInputDisabled = errors.New("input disabled")
	ErrDestroyed     = errors.New("puzzle instance destroyed")
	ErrDuplicateID   = errors.New("puzzle id already registered")
	ErrInvalidConfig = errors.New("invalid puzzle configuration")
)
