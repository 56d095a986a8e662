package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dtroode/soldojo-ledger/internal/address"
	"github.com/dtroode/soldojo-ledger/internal/config"
	"github.com/dtroode/soldojo-ledger/internal/model"
)

// DerivedAddress is the output of the derive commands.
type DerivedAddress struct {
	Kind    string `json:"kind"`
	Owner   string `json:"owner"`
	Course  string `json:"course_slug,omitempty"`
	Address string `json:"address"`
	Bump    uint8  `json:"bump"`
	Program string `json:"program_id"`
}

func (d DerivedAddress) String() string {
	return fmt.Sprintf("%s %d", d.Address, d.Bump)
}

// NewDeriveCommand creates the derive command group.
func NewDeriveCommand(rootOpts *RootOptions) *cobra.Command {
	var programID string

	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive learner account addresses offline",
	}
	cmd.PersistentFlags().StringVar(&programID, "program-id", config.DefaultProgramID, "program id addresses are derived under")

	cmd.AddCommand(&cobra.Command{
		Use:   "profile <owner>",
		Short: "Derive a learner profile address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDerive(rootOpts, cmd, programID, args[0], nil)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "completion <owner> <course-slug>",
		Short: "Derive a course completion address",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDerive(rootOpts, cmd, programID, args[0], &args[1])
		},
	})

	return cmd
}

func runDerive(opts *RootOptions, cmd *cobra.Command, programID, ownerArg string, courseSlug *string) error {
	out := newFormatter(opts, cmd)

	program, err := model.ParsePubkey(programID)
	if err != nil {
		return out.Error(fmt.Errorf("invalid program id: %w", err))
	}
	owner, err := model.ParsePubkey(ownerArg)
	if err != nil {
		return out.Error(fmt.Errorf("invalid owner: %w", err))
	}

	deriver := address.NewDeriver(program)
	result := DerivedAddress{Owner: owner.String(), Program: program.String()}

	var (
		addr model.Pubkey
		bump uint8
	)
	if courseSlug == nil {
		result.Kind = "profile"
		addr, bump, err = deriver.Profile(owner)
	} else {
		if len(*courseSlug) > model.MaxCourseSlugLength {
			return out.Error(model.ErrSlugTooLong)
		}
		result.Kind = "completion"
		result.Course = *courseSlug
		addr, bump, err = deriver.Completion(owner, *courseSlug)
	}
	if err != nil {
		return out.Error(err)
	}

	result.Address = addr.String()
	result.Bump = bump
	return out.Success(result)
}
