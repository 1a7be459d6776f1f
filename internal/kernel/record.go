package kernel

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// RawRecordSize is the fixed, packed, little-endian layout the kernel probe
// emits into its ring buffer. Field widths are part of the external
// contract between the probe and this reader; changing them is a breaking
// change (§6).
const RawRecordSize = 64

// RawRecord mirrors the kernel's packed struct byte-for-byte. It exists
// only as a decode target; callers never see it directly, they see the
// derived fabric.Record the reader builds from it.
type RawRecord struct {
	PID        uint32
	TID        uint32
	SyscallNr  uint32
	_          uint32 // pad
	TsEnterNs  uint64
	TsExitNs   uint64
	LatencyNs  uint64
	Ret        int64
	Comm       [16]byte
}

// DecodeRaw parses exactly RawRecordSize bytes into a RawRecord. Anything
// short of a full record is a RecordDecodeError: logged, counted, dropped,
// never propagated past the reader.
func DecodeRaw(buf []byte) (RawRecord, error) {
	var r RawRecord
	if len(buf) < RawRecordSize {
		return r, fmt.Errorf("%w: got %d bytes, want %d", ErrRecordDecode, len(buf), RawRecordSize)
	}
	r.PID = binary.LittleEndian.Uint32(buf[0:4])
	r.TID = binary.LittleEndian.Uint32(buf[4:8])
	r.SyscallNr = binary.LittleEndian.Uint32(buf[8:12])
	r.TsEnterNs = binary.LittleEndian.Uint64(buf[16:24])
	r.TsExitNs = binary.LittleEndian.Uint64(buf[24:32])
	r.LatencyNs = binary.LittleEndian.Uint64(buf[32:40])
	r.Ret = int64(binary.LittleEndian.Uint64(buf[40:48]))
	copy(r.Comm[:], buf[48:64])
	return r, nil
}

// CommString trims the NUL padding from the fixed-width comm field.
func (r RawRecord) CommString() string {
	return strings.TrimRight(string(r.Comm[:]), "\x00")
}
