package model

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// DiscriminatorLength is the size of the type tag that prefixes every record.
const DiscriminatorLength = 8

func accountDiscriminator(name string) [DiscriminatorLength]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var d [DiscriminatorLength]byte
	copy(d[:], sum[:DiscriminatorLength])
	return d
}

// decoder walks a little-endian record buffer.
type decoder struct {
	buf []byte
	off int
	err error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || len(d.buf)-d.off < n {
		d.err = fmt.Errorf("record truncated at offset %d: need %d bytes, have %d", d.off, n, len(d.buf)-d.off)
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) discriminator(want [DiscriminatorLength]byte) {
	b := d.take(DiscriminatorLength)
	if d.err == nil && [DiscriminatorLength]byte(b) != want {
		d.err = ErrAccountDiscriminatorMismatch
	}
}

func (d *decoder) pubkey() Pubkey {
	var pk Pubkey
	if b := d.take(PubkeyLength); b != nil {
		copy(pk[:], b)
	}
	return pk
}

func (d *decoder) u8() uint8 {
	if b := d.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (d *decoder) u32() uint32 {
	if b := d.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (d *decoder) u64() uint64 {
	if b := d.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

func (d *decoder) str() string {
	n := d.u32()
	if d.err != nil {
		return ""
	}
	if n > MaxCourseSlugLength {
		d.err = fmt.Errorf("string length %d exceeds %d", n, MaxCourseSlugLength)
		return ""
	}
	return string(d.take(int(n)))
}
