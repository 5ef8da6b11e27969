package assettype

import (
	"encoding/binary"
	"io"

	"github.com/armorclaw/assetstore/internal/asseterr"
)

// Encode serializes m per §4.1: u32 count, then for each entry u32 tag id followed
// by the tag's DataType-shaped payload, all little-endian.
func Encode(m AttributeMap) ([]byte, error) {
	if len(m) > MaxMapCapacity {
		return nil, asseterr.New(asseterr.InvalidArgument, "attribute map has %d entries, max is %d", len(m), MaxMapCapacity)
	}
	buf := make([]byte, 0, 4+len(m)*12)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m)))
	for tag, val := range m {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(tag))
		switch tag.DataType() {
		case TypeBool:
			b, ok := val.Bool()
			if !ok {
				return nil, asseterr.New(asseterr.InvalidArgument, "tag %s declared Bool but value is %s", tag, val.Kind())
			}
			if b {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		case TypeNumber:
			n, ok := val.Number()
			if !ok {
				return nil, asseterr.New(asseterr.InvalidArgument, "tag %s declared Number but value is %s", tag, val.Kind())
			}
			buf = binary.LittleEndian.AppendUint32(buf, n)
		case TypeBytes:
			b, ok := val.Bytes()
			if !ok {
				return nil, asseterr.New(asseterr.InvalidArgument, "tag %s declared Bytes but value is %s", tag, val.Kind())
			}
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(b)))
			buf = append(buf, b...)
		default:
			return nil, asseterr.New(asseterr.InvalidArgument, "tag %s has unrecognized data type", tag)
		}
	}
	return buf, nil
}

// Decode parses a single AttributeMap per §4.1, rejecting an oversized count, an
// unknown tag id, or a value whose encoded shape disagrees with its tag's declared
// DataType.
func Decode(buf []byte) (AttributeMap, []byte, error) {
	n, rest, err := readU32(buf)
	if err != nil {
		return nil, nil, err
	}
	if n > MaxMapCapacity {
		return nil, nil, asseterr.New(asseterr.InvalidArgument, "encoded map has %d entries, max is %d", n, MaxMapCapacity)
	}
	m := make(AttributeMap, n)
	for i := uint32(0); i < n; i++ {
		var tagID uint32
		tagID, rest, err = readU32(rest)
		if err != nil {
			return nil, nil, err
		}
		tag, ok := ParseTag(tagID)
		if !ok {
			return nil, nil, asseterr.New(asseterr.InvalidArgument, "unknown tag id %#x at entry %d", tagID, i)
		}
		var val Value
		switch tag.DataType() {
		case TypeBool:
			if len(rest) < 1 {
				return nil, nil, asseterr.New(asseterr.InvalidArgument, "truncated bool payload for tag %s", tag)
			}
			val = BoolValue(rest[0] != 0)
			rest = rest[1:]
		case TypeNumber:
			var num uint32
			num, rest, err = readU32(rest)
			if err != nil {
				return nil, nil, err
			}
			val = NumberValue(num)
		case TypeBytes:
			var length uint32
			length, rest, err = readU32(rest)
			if err != nil {
				return nil, nil, err
			}
			if uint64(len(rest)) < uint64(length) {
				return nil, nil, asseterr.New(asseterr.InvalidArgument, "truncated bytes payload for tag %s", tag)
			}
			b := make([]byte, length)
			copy(b, rest[:length])
			val = BytesValue(b)
			rest = rest[length:]
		default:
			return nil, nil, asseterr.New(asseterr.InvalidArgument, "tag %s has unrecognized data type", tag)
		}
		m[tag] = val
	}
	return m, rest, nil
}

// EncodeVec serializes a vector of maps as a u32 count (<= MaxVecCapacity) followed
// by each encoded map in order.
func EncodeVec(maps []AttributeMap) ([]byte, error) {
	if len(maps) > MaxVecCapacity {
		return nil, asseterr.New(asseterr.InvalidArgument, "attribute vector has %d entries, max is %d", len(maps), MaxVecCapacity)
	}
	buf := make([]byte, 0, 4)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(maps)))
	for _, m := range maps {
		enc, err := Encode(m)
		if err != nil {
			return nil, err
		}
		buf = append(buf, enc...)
	}
	return buf, nil
}

// DecodeVec parses a vector of maps per EncodeVec's framing.
func DecodeVec(buf []byte) ([]AttributeMap, error) {
	n, rest, err := readU32(buf)
	if err != nil {
		return nil, err
	}
	if n > MaxVecCapacity {
		return nil, asseterr.New(asseterr.InvalidArgument, "encoded vector has %d entries, max is %d", n, MaxVecCapacity)
	}
	out := make([]AttributeMap, 0, n)
	for i := uint32(0); i < n; i++ {
		var m AttributeMap
		m, rest, err = Decode(rest)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func readU32(buf []byte) (uint32, []byte, error) {
	if len(buf) < 4 {
		return 0, nil, asseterr.New(asseterr.InvalidArgument, "truncated u32: %v", io.ErrUnexpectedEOF)
	}
	return binary.LittleEndian.Uint32(buf), buf[4:], nil
}
