package archive

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/andreyvit/scribe/transcription"
)

// Record layout:
//
//  1. Flags (uvarint).
//  2. Payload format (uvarint).
//  3. Payload size (uvarint).
//  4. Payload: the encoded snapshot.
//  5. xxhash64 of everything above (8 bytes, little-endian).
type recordFlags uint64

const (
	rfVerBit0 = recordFlags(1 << iota)
	rfVerBit1
	rfVerBit2
	rfVerBit3

	rfVerMask       = (rfVerBit0 | rfVerBit1 | rfVerBit2 | rfVerBit3)
	rfVer1          = rfVerBit0
	rfSupportedMask = rfVer1
	rfDefault       = rfVer1

	checksumSize  = 8
	minRecordSize = 3 + checksumSize
)

func (rf recordFlags) ver() recordFlags {
	return rf & rfVerMask
}

// Encode serializes tr into a self-contained checksummed record.
func Encode(tr *transcription.Transcription, format Format) ([]byte, error) {
	if !format.isValid() {
		return nil, fmt.Errorf("archive: unsupported format %v", format)
	}
	snap := makeSnapshot(tr)
	if err := snap.checkDensity(); err != nil {
		return nil, fmt.Errorf("archive: cannot encode a transcription that would not decode: %w", err)
	}
	payload, err := format.encode(nil, snap)
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}

	buf := make([]byte, 0, len(payload)+3*binary.MaxVarintLen64+checksumSize)
	buf = binary.AppendUvarint(buf, uint64(rfDefault))
	buf = binary.AppendUvarint(buf, uint64(format))
	buf = binary.AppendUvarint(buf, uint64(len(payload)))
	buf = append(buf, payload...)
	buf = binary.LittleEndian.AppendUint64(buf, xxhash.Sum64(buf))
	return buf, nil
}

// Decode parses a record produced by Encode.
func Decode(data []byte) (*transcription.Transcription, Format, error) {
	payload, format, err := splitRecord(data)
	if err != nil {
		return nil, 0, err
	}
	var snap snapshot
	if err := format.decode(payload, &snap); err != nil {
		return nil, 0, err
	}
	tr, err := snap.transcription(data)
	if err != nil {
		return nil, 0, err
	}
	return tr, format, nil
}

// Checksum returns the checksum stored in a record, without verifying it.
func Checksum(data []byte) uint64 {
	if len(data) < checksumSize {
		return 0
	}
	return binary.LittleEndian.Uint64(data[len(data)-checksumSize:])
}

func splitRecord(data []byte) ([]byte, Format, error) {
	if len(data) < minRecordSize {
		return nil, 0, dataErrf(data, 0, nil, "invalid record: at least %d bytes required", minRecordSize)
	}
	body := data[:len(data)-checksumSize]
	if sum := xxhash.Sum64(body); sum != Checksum(data) {
		return nil, 0, dataErrf(data, len(body), nil, "invalid record: checksum mismatch (computed %016x)", sum)
	}

	off := 0
	flags, n := binary.Uvarint(body[off:])
	if n <= 0 {
		return nil, 0, dataErrf(data, off, nil, "invalid record: bad flags")
	}
	if (flags &^ uint64(rfSupportedMask)) != 0 {
		return nil, 0, dataErrf(data, off, nil, "invalid record: unsupported flags %x", flags)
	}
	if recordFlags(flags).ver() != rfVer1 {
		return nil, 0, dataErrf(data, off, nil, "invalid record: unsupported version %d", recordFlags(flags).ver())
	}
	off += n

	f, n := binary.Uvarint(body[off:])
	if n <= 0 || !Format(f).isValid() {
		return nil, 0, dataErrf(data, off, nil, "invalid record: bad format")
	}
	off += n

	size, n := binary.Uvarint(body[off:])
	if n <= 0 {
		return nil, 0, dataErrf(data, off, nil, "invalid record: bad payload size")
	}
	off += n
	if size != uint64(len(body)-off) {
		return nil, 0, dataErrf(data, off, nil, "invalid record: payload size %d, have %d bytes", size, len(body)-off)
	}
	return body[off:], Format(f), nil
}
