package access

import "errors"

var (
	ErrInvalidInput         = errors.New("access: invalid input")
	ErrNotFound             = errors.New("access: not found")
	ErrConflict             = errors.New("access: conflict")
	ErrRetrieveFailed       = errors.New("access: failed to retrieve")
	ErrUpdateFailed         = errors.New("access: failed to update")
	ErrInvitationNotPending = errors.New("access: invitation is not pending")
	ErrInvitationExpired    = errors.New("access: invitation expired")
	ErrEmailMismatch        = errors.New("access: email does not match invitation")
)
