package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when no account exists at an address.
var ErrNotFound = errors.New("not found")

// ProgramError is a typed instruction failure surfaced to the caller.
type ProgramError struct {
	Code    uint32
	Name    string
	Message string
}

func (e *ProgramError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Message)
}

// Instruction input errors.
var (
	ErrSlugTooLong        = &ProgramError{Code: 6000, Name: "SlugTooLong", Message: "Course slug must be 32 characters or fewer"}
	ErrXPTooHigh          = &ProgramError{Code: 6001, Name: "XPTooHigh", Message: "XP reward exceeds maximum allowed"}
	ErrArithmeticOverflow = &ProgramError{Code: 6002, Name: "ArithmeticOverflow", Message: "Profile counter overflow"}
)

// Account constraint errors.
var (
	ErrAccountAlreadyInUse          = &ProgramError{Code: 0, Name: "AccountAlreadyInUse", Message: "An account with the same address already exists"}
	ErrConstraintHasOne             = &ProgramError{Code: 2001, Name: "ConstraintHasOne", Message: "Profile authority does not match the signer"}
	ErrConstraintSeeds              = &ProgramError{Code: 2006, Name: "ConstraintSeeds", Message: "A seeds constraint was violated"}
	ErrAccountDiscriminatorMismatch = &ProgramError{Code: 3002, Name: "AccountDiscriminatorMismatch", Message: "Account discriminator did not match what was expected"}
	ErrAccountDidNotDeserialize     = &ProgramError{Code: 3003, Name: "AccountDidNotDeserialize", Message: "Failed to deserialize the account"}
	ErrAccountOwnedByWrongProgram   = &ProgramError{Code: 3007, Name: "AccountOwnedByWrongProgram", Message: "The given account is owned by a different program than expected"}
	ErrAccountNotInitialized        = &ProgramError{Code: 3012, Name: "AccountNotInitialized", Message: "The program expected this account to be already initialized"}
)

// AsProgramError extracts the ProgramError from err's chain.
func AsProgramError(err error) (*ProgramError, bool) {
	var pe *ProgramError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
