package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Format is the encoding of the payload of an archive record.
type Format int

const (
	MsgPack Format = iota
	JSON

	DefaultFormat = MsgPack
)

func (f Format) String() string {
	switch f {
	case MsgPack:
		return "msgpack"
	case JSON:
		return "json"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

func (f Format) isValid() bool {
	return f == MsgPack || f == JSON
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "msgpack", "mp", "":
		return MsgPack, nil
	case "json":
		return JSON, nil
	default:
		return 0, fmt.Errorf("unknown archive format %q", s)
	}
}

func (f Format) encode(buf []byte, v any) ([]byte, error) {
	switch f {
	case MsgPack:
		bb := bytesBuilder{buf}
		enc := msgpack.GetEncoder()
		enc.Reset(&bb)
		enc.SetSortMapKeys(true)
		err := enc.Encode(v)
		msgpack.PutEncoder(enc)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %T using MsgPack: %w", v, err)
		}
		return bb.Buf, nil
	case JSON:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %T to JSON: %w", v, err)
		}
		return append(buf, raw...), nil
	default:
		panic(fmt.Errorf("unsupported archive format %v", f))
	}
}

func (f Format) decode(buf []byte, ptr any) error {
	switch f {
	case MsgPack:
		var r bytes.Reader
		r.Reset(buf)
		dec := msgpack.GetDecoder()
		dec.Reset(&r)
		err := dec.Decode(ptr)
		msgpack.PutDecoder(dec)
		if err != nil {
			return dataErrf(buf, -1, err, "failed to decode msgpack into %T", ptr)
		}
		return nil
	case JSON:
		err := json.Unmarshal(buf, ptr)
		if err != nil {
			return dataErrf(buf, -1, err, "failed to decode JSON into %T", ptr)
		}
		return nil
	default:
		return dataErrf(buf, -1, nil, "unsupported archive format %v", f)
	}
}

type bytesBuilder struct {
	Buf []byte
}

func (bb *bytesBuilder) Write(b []byte) (int, error) {
	bb.Buf = append(bb.Buf, b...)
	return len(b), nil
}

func (bb *bytesBuilder) WriteByte(v byte) error {
	bb.Buf = append(bb.Buf, v)
	return nil
}
