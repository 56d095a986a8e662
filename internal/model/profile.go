package model

import "encoding/binary"

// ProfileSeed namespaces learner profile addresses.
const ProfileSeed = "profile"

// ProfileSize is the encoded size of a LearnerProfile.
const ProfileSize = DiscriminatorLength + PubkeyLength + 4 + 8 + 1

// ProfileDiscriminator tags LearnerProfile records.
var ProfileDiscriminator = accountDiscriminator("LearnerProfile")

// LearnerProfile holds a learner's cumulative counters.
type LearnerProfile struct {
	Authority        Pubkey
	CoursesCompleted uint32
	TotalXP          uint64
	Bump             uint8
}

// ProfileAccount is a decoded profile together with its address.
type ProfileAccount struct {
	Address Pubkey
	LearnerProfile
}

// MarshalBinary encodes the profile in its fixed on-disk layout.
func (p LearnerProfile) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, ProfileSize)
	buf = append(buf, ProfileDiscriminator[:]...)
	buf = append(buf, p.Authority[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, p.CoursesCompleted)
	buf = binary.LittleEndian.AppendUint64(buf, p.TotalXP)
	buf = append(buf, p.Bump)
	return buf, nil
}

// UnmarshalBinary decodes a profile, rejecting foreign record types.
func (p *LearnerProfile) UnmarshalBinary(data []byte) error {
	d := &decoder{buf: data}
	d.discriminator(ProfileDiscriminator)
	authority := d.pubkey()
	courses := d.u32()
	xp := d.u64()
	bump := d.u8()
	if d.err != nil {
		return d.err
	}
	*p = LearnerProfile{
		Authority:        authority,
		CoursesCompleted: courses,
		TotalXP:          xp,
		Bump:             bump,
	}
	return nil
}
