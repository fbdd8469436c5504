package core

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("missing payload, signature, or address")
	ErrSignatureRecovery = errors.New("unable to recover signer from signature")
	ErrAuthentication    = errors.New("authentication failed")
	ErrIdentityStore     = errors.New("identity store failure")
	ErrSessionIssuance   = errors.New("session issuance failure")
	ErrChallengeExpired  = fmt.Errorf("%w: challenge has expired", ErrAuthentication)
	ErrNonceReused       = fmt.Errorf("%w: challenge nonce already used", ErrAuthentication)
	ErrTokenExpired      = errors.New("token has expired")
	ErrInvalidToken      = errors.New("invalid token")
)

// AddressMismatchError is returned when the recovered signer differs from the claimed address
type AddressMismatchError struct {
	Expected string // Address the client claimed
	Received string // Address recovered from the signature
}

func (e *AddressMismatchError) Error() string {
	return fmt.Sprintf("signature address mismatch: expected %s, received %s", e.Expected, e.Received)
}

func (e *AddressMismatchError) Unwrap() error {
	return ErrAuthentication
}
