package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dtroode/soldojo-ledger/internal/address"
	"github.com/dtroode/soldojo-ledger/internal/logger"
	"github.com/dtroode/soldojo-ledger/internal/model"
)

// certificateTimeout bounds the upload that follows a committed completion.
const certificateTimeout = 10 * time.Second

// ErrCertificatesDisabled is returned by GetCertificate when no certificate issuer is configured.
var ErrCertificatesDisabled = errors.New("certificates are disabled")

// CertificateIssuer produces the off-ledger certificate for a recorded completion.
type CertificateIssuer interface {
	Publish(ctx context.Context, completion model.CompletionAccount) error
	Certificate(ctx context.Context, completion model.CompletionAccount) ([]byte, error)
}

// RecordCompletionParams describes one RecordCompletion instruction.
type RecordCompletionParams struct {
	Signer     model.Pubkey
	CourseSlug string
	XPEarned   uint32
	// Profile overrides the signer's derived profile address when set.
	Profile *model.Pubkey
}

// Program executes learner instructions against the account store.
type Program struct {
	deriver      address.Deriver
	accounts     model.AccountStore
	clock        model.Clock
	certificates CertificateIssuer
	logger       *logger.Logger
}

// NewProgram creates a Program. certificates may be nil to skip certificates entirely.
func NewProgram(
	programID model.Pubkey,
	accounts model.AccountStore,
	clock model.Clock,
	certificates CertificateIssuer,
	logger *logger.Logger,
) *Program {
	return &Program{
		deriver:      address.NewDeriver(programID),
		accounts:     accounts,
		clock:        clock,
		certificates: certificates,
		logger:       logger,
	}
}

func (p *Program) ProgramID() model.Pubkey {
	return p.deriver.ProgramID
}

// InitProfile creates the signer's profile with zeroed counters.
func (p *Program) InitProfile(ctx context.Context, signer model.Pubkey) (model.ProfileAccount, error) {
	addr, bump, err := p.deriver.Profile(signer)
	if err != nil {
		return model.ProfileAccount{}, err
	}

	profile := model.LearnerProfile{
		Authority: signer,
		Bump:      bump,
	}
	data, err := profile.MarshalBinary()
	if err != nil {
		return model.ProfileAccount{}, fmt.Errorf("failed to encode profile: %w", err)
	}

	now := p.clock.Now().UTC()
	err = p.accounts.Atomic(ctx, func(tx model.AccountTx) error {
		return tx.Create(ctx, model.Account{
			Address:   addr,
			ProgramID: p.deriver.ProgramID,
			Data:      data,
			CreatedAt: now,
			UpdatedAt: now,
		})
	})
	if err != nil {
		return model.ProfileAccount{}, fmt.Errorf("failed to initialize profile: %w", err)
	}

	p.logger.Info("profile initialized", "owner", signer.String(), "address", addr.String())

	return model.ProfileAccount{Address: addr, LearnerProfile: profile}, nil
}

// RecordCompletion writes a completion receipt and credits the signer's profile.
// Nothing is written unless every check passes.
func (p *Program) RecordCompletion(ctx context.Context, params RecordCompletionParams) (model.CompletionAccount, model.ProfileAccount, error) {
	if len(params.CourseSlug) > model.MaxCourseSlugLength {
		return model.CompletionAccount{}, model.ProfileAccount{}, model.ErrSlugTooLong
	}
	if params.XPEarned > model.MaxXPPerCompletion {
		return model.CompletionAccount{}, model.ProfileAccount{}, model.ErrXPTooHigh
	}

	completionAddr, completionBump, err := p.deriver.Completion(params.Signer, params.CourseSlug)
	if err != nil {
		return model.CompletionAccount{}, model.ProfileAccount{}, err
	}

	var profileAddr model.Pubkey
	if params.Profile != nil {
		profileAddr = *params.Profile
	} else {
		profileAddr, _, err = p.deriver.Profile(params.Signer)
		if err != nil {
			return model.CompletionAccount{}, model.ProfileAccount{}, err
		}
	}

	var (
		completion model.CompletionAccount
		profile    model.ProfileAccount
	)
	err = p.accounts.Atomic(ctx, func(tx model.AccountTx) error {
		taken, err := tx.Exists(ctx, completionAddr)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("allocate %s: %w", completionAddr, model.ErrAccountAlreadyInUse)
		}

		profileAccount, err := tx.Lock(ctx, profileAddr)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return model.ErrAccountNotInitialized
			}
			return fmt.Errorf("failed to load profile: %w", err)
		}
		current, err := p.decodeProfile(profileAccount)
		if err != nil {
			return err
		}
		if current.Authority != params.Signer {
			return model.ErrConstraintHasOne
		}
		if err := p.deriver.VerifyProfile(params.Signer, current.Bump, profileAddr); err != nil {
			return err
		}

		if current.CoursesCompleted == math.MaxUint32 || current.TotalXP > math.MaxUint64-uint64(params.XPEarned) {
			return model.ErrArithmeticOverflow
		}
		current.CoursesCompleted++
		current.TotalXP += uint64(params.XPEarned)

		now := p.clock.Now()

		completion = model.CompletionAccount{
			Address: completionAddr,
			CourseCompletion: model.CourseCompletion{
				Authority:   params.Signer,
				CourseSlug:  params.CourseSlug,
				XPEarned:    params.XPEarned,
				CompletedAt: now.Unix(),
				Bump:        completionBump,
			},
		}
		completionData, err := completion.MarshalBinary()
		if err != nil {
			return err
		}
		if err := tx.Create(ctx, model.Account{
			Address:   completionAddr,
			ProgramID: p.deriver.ProgramID,
			Data:      completionData,
			CreatedAt: now.UTC(),
			UpdatedAt: now.UTC(),
		}); err != nil {
			return err
		}

		profileAccount.Data, err = current.MarshalBinary()
		if err != nil {
			return err
		}
		profileAccount.UpdatedAt = now.UTC()
		if err := tx.Update(ctx, profileAccount); err != nil {
			return fmt.Errorf("failed to update profile: %w", err)
		}

		profile = model.ProfileAccount{Address: profileAddr, LearnerProfile: current}
		return nil
	})
	if err != nil {
		return model.CompletionAccount{}, model.ProfileAccount{}, fmt.Errorf("failed to record completion: %w", err)
	}

	p.logger.Info("course completed",
		"course", params.CourseSlug,
		"signer", params.Signer.String(),
		"xp", params.XPEarned,
		"total_xp", profile.TotalXP,
		"courses_completed", profile.CoursesCompleted,
	)

	p.publishCertificate(ctx, completion)

	return completion, profile, nil
}

// publishCertificate uploads the certificate for a committed completion. The upload outlives
// the caller's context; a failure only costs the cached copy, GetCertificate renders it again.
func (p *Program) publishCertificate(ctx context.Context, completion model.CompletionAccount) {
	if p.certificates == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), certificateTimeout)
	defer cancel()

	if err := p.certificates.Publish(ctx, completion); err != nil {
		p.logger.Warn("failed to publish certificate", "completion", completion.Address.String(), "error", err)
	}
}

// GetProfile reads the profile owned by owner.
func (p *Program) GetProfile(ctx context.Context, owner model.Pubkey) (model.ProfileAccount, error) {
	addr, _, err := p.deriver.Profile(owner)
	if err != nil {
		return model.ProfileAccount{}, err
	}

	account, err := p.accounts.GetAccount(ctx, addr)
	if err != nil {
		return model.ProfileAccount{}, fmt.Errorf("failed to get profile %s: %w", addr, err)
	}

	profile, err := p.decodeProfile(account)
	if err != nil {
		return model.ProfileAccount{}, err
	}
	return model.ProfileAccount{Address: addr, LearnerProfile: profile}, nil
}

// GetCompletion reads owner's completion receipt for courseSlug.
func (p *Program) GetCompletion(ctx context.Context, owner model.Pubkey, courseSlug string) (model.CompletionAccount, error) {
	if len(courseSlug) > model.MaxCourseSlugLength {
		return model.CompletionAccount{}, model.ErrSlugTooLong
	}

	addr, _, err := p.deriver.Completion(owner, courseSlug)
	if err != nil {
		return model.CompletionAccount{}, err
	}

	account, err := p.accounts.GetAccount(ctx, addr)
	if err != nil {
		return model.CompletionAccount{}, fmt.Errorf("failed to get completion %s: %w", addr, err)
	}
	if account.ProgramID != p.deriver.ProgramID {
		return model.CompletionAccount{}, model.ErrAccountOwnedByWrongProgram
	}

	var completion model.CourseCompletion
	if err := completion.UnmarshalBinary(account.Data); err != nil {
		return model.CompletionAccount{}, decodeError(err)
	}
	return model.CompletionAccount{Address: addr, CourseCompletion: completion}, nil
}

// GetCertificate returns the certificate metadata JSON for owner's completion of courseSlug.
// It is rendered from the stored completion, so it is available for every committed completion.
func (p *Program) GetCertificate(ctx context.Context, owner model.Pubkey, courseSlug string) ([]byte, error) {
	if p.certificates == nil {
		return nil, ErrCertificatesDisabled
	}

	completion, err := p.GetCompletion(ctx, owner, courseSlug)
	if err != nil {
		return nil, err
	}

	body, err := p.certificates.Certificate(ctx, completion)
	if err != nil {
		return nil, fmt.Errorf("failed to get certificate for %s: %w", completion.Address, err)
	}
	return body, nil
}

func (p *Program) decodeProfile(account model.Account) (model.LearnerProfile, error) {
	if account.ProgramID != p.deriver.ProgramID {
		return model.LearnerProfile{}, model.ErrAccountOwnedByWrongProgram
	}

	var profile model.LearnerProfile
	if err := profile.UnmarshalBinary(account.Data); err != nil {
		return model.LearnerProfile{}, decodeError(err)
	}
	return profile, nil
}

// decodeError keeps typed decode failures and classifies the rest as malformed data.
func decodeError(err error) error {
	if _, ok := model.AsProgramError(err); ok {
		return err
	}
	return fmt.Errorf("%w: %v", model.ErrAccountDidNotDeserialize, err)
}
