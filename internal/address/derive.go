// Package address derives deterministic program account addresses.
//
// An address is SHA-256(seeds || programID || "ProgramDerivedAddress") and must
// not be a valid ed25519 point, so no private key can ever sign for it. The
// search parameter ("bump") that pushes the digest off the curve is stored on
// the record and lets later instructions re-derive the address in one step.
package address

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"

	"github.com/dtroode/soldojo-ledger/internal/model"
)

const (
	// MaxSeedLength is the largest single seed in bytes.
	MaxSeedLength = 32
	// MaxSeeds is the largest number of seeds, bump included.
	MaxSeeds = 16

	pdaMarker = "ProgramDerivedAddress"
)

var (
	ErrMaxSeedLengthExceeded = errors.New("length of the seed is too long for address generation")
	ErrTooManySeeds          = errors.New("too many seeds for address generation")
	ErrInvalidSeeds          = errors.New("provided seeds do not result in a valid address")
	ErrNoViableBump          = errors.New("unable to find a viable program address bump seed")
)

// CreateProgramAddress hashes seeds under programID and rejects on-curve results.
func CreateProgramAddress(seeds [][]byte, programID model.Pubkey) (model.Pubkey, error) {
	if len(seeds) > MaxSeeds {
		return model.Pubkey{}, ErrTooManySeeds
	}

	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return model.Pubkey{}, ErrMaxSeedLengthExceeded
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))

	var addr model.Pubkey
	copy(addr[:], h.Sum(nil))

	if isOnCurve(addr) {
		return model.Pubkey{}, ErrInvalidSeeds
	}
	return addr, nil
}

// FindProgramAddress tries bumps from 255 down to 1 and returns the first off-curve address.
func FindProgramAddress(seeds [][]byte, programID model.Pubkey) (model.Pubkey, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump > 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrInvalidSeeds) {
			return model.Pubkey{}, 0, err
		}
	}
	return model.Pubkey{}, 0, ErrNoViableBump
}

func isOnCurve(b model.Pubkey) bool {
	_, err := new(edwards25519.Point).SetBytes(b[:])
	return err == nil
}

// Deriver computes record addresses for one program.
type Deriver struct {
	ProgramID model.Pubkey
}

// NewDeriver creates a Deriver bound to programID.
func NewDeriver(programID model.Pubkey) Deriver {
	return Deriver{ProgramID: programID}
}

// Profile returns the learner profile address for owner.
func (d Deriver) Profile(owner model.Pubkey) (model.Pubkey, uint8, error) {
	addr, bump, err := FindProgramAddress(profileSeeds(owner), d.ProgramID)
	if err != nil {
		return model.Pubkey{}, 0, fmt.Errorf("failed to derive profile address: %w", err)
	}
	return addr, bump, nil
}

// Completion returns the completion address for owner and courseSlug.
func (d Deriver) Completion(owner model.Pubkey, courseSlug string) (model.Pubkey, uint8, error) {
	addr, bump, err := FindProgramAddress(completionSeeds(owner, courseSlug), d.ProgramID)
	if err != nil {
		return model.Pubkey{}, 0, fmt.Errorf("failed to derive completion address: %w", err)
	}
	return addr, bump, nil
}

// VerifyProfile checks that the stored bump re-derives address for owner.
func (d Deriver) VerifyProfile(owner model.Pubkey, bump uint8, address model.Pubkey) error {
	seeds := append(profileSeeds(owner), []byte{bump})
	derived, err := CreateProgramAddress(seeds, d.ProgramID)
	if err != nil || derived != address {
		return model.ErrConstraintSeeds
	}
	return nil
}

func profileSeeds(owner model.Pubkey) [][]byte {
	return [][]byte{[]byte(model.ProfileSeed), owner[:]}
}

func completionSeeds(owner model.Pubkey, courseSlug string) [][]byte {
	return [][]byte{[]byte(model.CompletionSeed), owner[:], []byte(courseSlug)}
}
