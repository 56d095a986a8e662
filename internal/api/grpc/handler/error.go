package handler

import (
	"context"
	"errors"
	"strconv"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/soldojo-ledger/internal/model"
	"github.com/dtroode/soldojo-ledger/internal/service"
)

// ErrorDomain tags ErrorInfo details produced by the ledger.
const ErrorDomain = "soldojo"

func handleError(err error) error {
	if pe, ok := model.AsProgramError(err); ok {
		st := status.New(programErrorCode(pe), pe.Error())
		detailed, detailErr := st.WithDetails(&errdetails.ErrorInfo{
			Reason:   pe.Name,
			Domain:   ErrorDomain,
			Metadata: map[string]string{"code": strconv.FormatUint(uint64(pe.Code), 10)},
		})
		if detailErr == nil {
			st = detailed
		}
		return st.Err()
	}

	switch {
	case errors.Is(err, model.ErrNotFound):
		return status.Error(codes.NotFound, "account not found")
	case errors.Is(err, service.ErrCertificatesDisabled):
		return status.Error(codes.Unimplemented, "certificates are disabled")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	default:
		return status.Error(codes.Internal, "internal server error")
	}
}

func programErrorCode(pe *model.ProgramError) codes.Code {
	switch pe {
	case model.ErrSlugTooLong, model.ErrXPTooHigh:
		return codes.InvalidArgument
	case model.ErrArithmeticOverflow:
		return codes.OutOfRange
	case model.ErrAccountAlreadyInUse:
		return codes.AlreadyExists
	case model.ErrConstraintHasOne, model.ErrConstraintSeeds:
		return codes.PermissionDenied
	case model.ErrAccountDiscriminatorMismatch,
		model.ErrAccountDidNotDeserialize,
		model.ErrAccountOwnedByWrongProgram,
		model.ErrAccountNotInitialized:
		return codes.FailedPrecondition
	default:
		return codes.Unknown
	}
}
