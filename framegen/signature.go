package framegen

import (
	"bytes"
	"encoding/binary"
	"hash/fnv"
	"time"
)

// SignatureMagic identifies tgen frames ("VEP1").
const SignatureMagic uint32 = 0x56455031

// SignatureLength is the size of the payload signature in octets.
const SignatureLength = 16

// Signature is the 16-byte little-endian payload prefix that lets a receiver
// identify and sequence generated frames.
type Signature struct {
	ProfileID  uint32
	Seq        uint32
	EmitMicros uint32
}

// ProfileID hashes a profile name with FNV-1a.
func ProfileID(name string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(name))
	return h.Sum32()
}

var epoch = time.Now()

// MonotonicMicros converts an instant to microseconds on the process monotonic clock, modulo 2^32.
func MonotonicMicros(t time.Time) uint32 {
	return uint32(t.Sub(epoch).Microseconds())
}

// PutSignature writes a signature into b, which must hold at least SignatureLength octets.
func PutSignature(b []byte, sig Signature) {
	binary.LittleEndian.PutUint32(b[0:], SignatureMagic)
	binary.LittleEndian.PutUint32(b[4:], sig.ProfileID)
	binary.LittleEndian.PutUint32(b[8:], sig.Seq)
	binary.LittleEndian.PutUint32(b[12:], sig.EmitMicros)
}

// FindSignature locates the signature anywhere in a captured frame, so the
// receive side need not know the encapsulation's payload offset.
func FindSignature(frame []byte) (sig Signature, ok bool) {
	var magic [4]byte
	binary.LittleEndian.PutUint32(magic[:], SignatureMagic)
	for off := 0; off+SignatureLength <= len(frame); {
		i := bytes.Index(frame[off:], magic[:])
		if i < 0 {
			return sig, false
		}
		off += i
		if sig, ok = ParseSignature(frame[off:]); ok {
			return sig, true
		}
		off++
	}
	return sig, false
}

// ParseSignature reads a signature from the beginning of a payload.
func ParseSignature(b []byte) (sig Signature, ok bool) {
	if len(b) < SignatureLength || binary.LittleEndian.Uint32(b) != SignatureMagic {
		return sig, false
	}
	sig.ProfileID = binary.LittleEndian.Uint32(b[4:])
	sig.Seq = binary.LittleEndian.Uint32(b[8:])
	sig.EmitMicros = binary.LittleEndian.Uint32(b[12:])
	return sig, true
}
