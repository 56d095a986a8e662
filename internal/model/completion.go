package model

import "encoding/binary"

const (
	// CompletionSeed namespaces course completion addresses.
	CompletionSeed = "completion"
	// MaxCourseSlugLength bounds a course slug in bytes.
	MaxCourseSlugLength = 32
	// MaxXPPerCompletion bounds the XP a single completion may award.
	MaxXPPerCompletion = 10_000
)

// CompletionDiscriminator tags CourseCompletion records.
var CompletionDiscriminator = accountDiscriminator("CourseCompletion")

// CourseCompletion is the write-once receipt for a finished course.
type CourseCompletion struct {
	Authority   Pubkey
	CourseSlug  string
	XPEarned    uint32
	CompletedAt int64
	Bump        uint8
}

// CompletionAccount is a decoded completion together with its address.
type CompletionAccount struct {
	Address Pubkey
	CourseCompletion
}

// CompletionSize returns the encoded size of a completion for slug.
func CompletionSize(slug string) int {
	return DiscriminatorLength + PubkeyLength + 4 + len(slug) + 4 + 8 + 1
}

// MarshalBinary encodes the completion in its fixed on-disk layout.
func (c CourseCompletion) MarshalBinary() ([]byte, error) {
	if len(c.CourseSlug) > MaxCourseSlugLength {
		return nil, ErrSlugTooLong
	}
	buf := make([]byte, 0, CompletionSize(c.CourseSlug))
	buf = append(buf, CompletionDiscriminator[:]...)
	buf = append(buf, c.Authority[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(c.CourseSlug)))
	buf = append(buf, c.CourseSlug...)
	buf = binary.LittleEndian.AppendUint32(buf, c.XPEarned)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(c.CompletedAt))
	buf = append(buf, c.Bump)
	return buf, nil
}

// UnmarshalBinary decodes a completion, rejecting foreign record types.
func (c *CourseCompletion) UnmarshalBinary(data []byte) error {
	d := &decoder{buf: data}
	d.discriminator(CompletionDiscriminator)
	authority := d.pubkey()
	slug := d.str()
	xp := d.u32()
	completedAt := int64(d.u64())
	bump := d.u8()
	if d.err != nil {
		return d.err
	}
	*c = CourseCompletion{
		Authority:   authority,
		CourseSlug:  slug,
		XPEarned:    xp,
		CompletedAt: completedAt,
		Bump:        bump,
	}
	return nil
}
