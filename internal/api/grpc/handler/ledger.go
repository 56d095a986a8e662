package handler

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dtroode/soldojo-ledger/internal/logger"
	"github.com/dtroode/soldojo-ledger/internal/model"
	"github.com/dtroode/soldojo-ledger/internal/service"
)

// ProgramService defines the learner instructions and queries.
type ProgramService interface {
	InitProfile(ctx context.Context, signer model.Pubkey) (model.ProfileAccount, error)
	RecordCompletion(ctx context.Context, params service.RecordCompletionParams) (model.CompletionAccount, model.ProfileAccount, error)
	GetProfile(ctx context.Context, owner model.Pubkey) (model.ProfileAccount, error)
	GetCompletion(ctx context.Context, owner model.Pubkey, courseSlug string) (model.CompletionAccount, error)
	GetCertificate(ctx context.Context, owner model.Pubkey, courseSlug string) ([]byte, error)
}

var _ LedgerServer = (*Ledger)(nil)

// Ledger handles gRPC endpoints for learner records.
type Ledger struct {
	program        ProgramService
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewLedger creates a new Ledger handler.
func NewLedger(program ProgramService, contextManager model.ContextManager, logger *logger.Logger) *Ledger {
	return &Ledger{
		program:        program,
		contextManager: contextManager,
		logger:         logger,
	}
}

// InitProfile creates the caller's profile.
func (h *Ledger) InitProfile(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	signer, err := h.signer(ctx)
	if err != nil {
		return nil, err
	}

	profile, err := h.program.InitProfile(ctx, signer)
	if err != nil {
		h.logger.Error("Ledger handler: init profile failed",
			"request_id", h.requestID(ctx),
			"signer", signer.String(),
			"error", err.Error())
		return nil, handleError(err)
	}

	return respond(profileFields(profile))
}

// RecordCompletion records a finished course for the caller.
func (h *Ledger) RecordCompletion(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	signer, err := h.signer(ctx)
	if err != nil {
		return nil, err
	}

	slug, ok, err := stringField(req, "course_slug")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "course_slug is required")
	}
	xp, err := uint32Field(req, "xp_earned")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	profileAddr, err := pubkeyField(req, "profile")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	h.logger.Debug("Ledger handler: processing record completion request",
		"request_id", h.requestID(ctx),
		"signer", signer.String(),
		"course", slug,
		"xp", xp)

	completion, profile, err := h.program.RecordCompletion(ctx, service.RecordCompletionParams{
		Signer:     signer,
		CourseSlug: slug,
		XPEarned:   xp,
		Profile:    profileAddr,
	})
	if err != nil {
		h.logger.Error("Ledger handler: record completion failed",
			"request_id", h.requestID(ctx),
			"signer", signer.String(),
			"course", slug,
			"error", err.Error())
		return nil, handleError(err)
	}

	return respond(map[string]any{
		"completion": completionFields(completion),
		"profile":    profileFields(profile),
	})
}

// GetProfile returns a profile. The owner defaults to the caller.
func (h *Ledger) GetProfile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner, err := h.owner(ctx, req)
	if err != nil {
		return nil, err
	}

	profile, err := h.program.GetProfile(ctx, owner)
	if err != nil {
		return nil, handleError(err)
	}

	return respond(map[string]any{"profile": profileFields(profile)})
}

// GetCompletion returns the completion receipt for owner and course_slug.
func (h *Ledger) GetCompletion(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner, err := h.owner(ctx, req)
	if err != nil {
		return nil, err
	}

	slug, ok, err := stringField(req, "course_slug")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "course_slug is required")
	}

	completion, err := h.program.GetCompletion(ctx, owner, slug)
	if err != nil {
		return nil, handleError(err)
	}

	return respond(map[string]any{"completion": completionFields(completion)})
}

// GetCertificate returns the certificate metadata for owner and course_slug.
func (h *Ledger) GetCertificate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner, err := h.owner(ctx, req)
	if err != nil {
		return nil, err
	}

	slug, ok, err := stringField(req, "course_slug")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "course_slug is required")
	}

	body, err := h.program.GetCertificate(ctx, owner, slug)
	if err != nil {
		if _, isProgramErr := model.AsProgramError(err); !isProgramErr && !errors.Is(err, model.ErrNotFound) {
			h.logger.Error("Ledger handler: get certificate failed",
				"request_id", h.requestID(ctx),
				"owner", owner.String(),
				"course", slug,
				"error", err.Error())
		}
		return nil, handleError(err)
	}

	certificate := &structpb.Struct{}
	if err := certificate.UnmarshalJSON(body); err != nil {
		h.logger.Error("Ledger handler: certificate is not a json object",
			"request_id", h.requestID(ctx),
			"error", err.Error())
		return nil, status.Error(codes.Internal, "failed to encode response")
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"certificate": structpb.NewStructValue(certificate),
	}}, nil
}

func (h *Ledger) requestID(ctx context.Context) string {
	id, _ := h.contextManager.GetRequestIDFromContext(ctx)
	return id
}

func (h *Ledger) signer(ctx context.Context) (model.Pubkey, error) {
	signer, ok := h.contextManager.GetSignerFromContext(ctx)
	if !ok {
		return model.Pubkey{}, status.Error(codes.Unauthenticated, "signer not found in context")
	}
	return signer, nil
}

func (h *Ledger) owner(ctx context.Context, req *structpb.Struct) (model.Pubkey, error) {
	owner, err := pubkeyField(req, "owner")
	if err != nil {
		return model.Pubkey{}, status.Error(codes.InvalidArgument, err.Error())
	}
	if owner != nil {
		return *owner, nil
	}
	return h.signer(ctx)
}

func respond(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}
