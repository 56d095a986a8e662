package handler

import (
	"fmt"
	"math"
	"strconv"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dtroode/soldojo-ledger/internal/model"
)

// 64-bit counters are rendered as decimal strings, following the proto3 JSON mapping,
// because a Struct number is a float64.

func profileFields(p model.ProfileAccount) map[string]any {
	return map[string]any{
		"address":           p.Address.String(),
		"authority":         p.Authority.String(),
		"courses_completed": p.CoursesCompleted,
		"total_xp":          strconv.FormatUint(p.TotalXP, 10),
		"bump":              uint32(p.Bump),
	}
}

func completionFields(c model.CompletionAccount) map[string]any {
	return map[string]any{
		"address":      c.Address.String(),
		"authority":    c.Authority.String(),
		"course_slug":  c.CourseSlug,
		"xp_earned":    c.XPEarned,
		"completed_at": strconv.FormatInt(c.CompletedAt, 10),
		"bump":         uint32(c.Bump),
	}
}

func stringField(req *structpb.Struct, name string) (string, bool, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return "", false, nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return "", false, nil
	}
	s, isString := v.GetKind().(*structpb.Value_StringValue)
	if !isString {
		return "", false, fmt.Errorf("%s must be a string", name)
	}
	return s.StringValue, true, nil
}

func pubkeyField(req *structpb.Struct, name string) (*model.Pubkey, error) {
	s, ok, err := stringField(req, name)
	if err != nil || !ok {
		return nil, err
	}
	pk, err := model.ParsePubkey(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &pk, nil
}

// uint32Field accepts a whole JSON number or a decimal string.
func uint32Field(req *structpb.Struct, name string) (uint32, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return 0, fmt.Errorf("%s is required", name)
	}

	switch kind := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		n := kind.NumberValue
		if n < 0 || n > math.MaxUint32 || n != math.Trunc(n) {
			return 0, fmt.Errorf("%s must be an unsigned 32-bit integer", name)
		}
		return uint32(n), nil
	case *structpb.Value_StringValue:
		n, err := strconv.ParseUint(kind.StringValue, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("%s must be an unsigned 32-bit integer", name)
		}
		return uint32(n), nil
	default:
		return 0, fmt.Errorf("%s must be a number", name)
	}
}
