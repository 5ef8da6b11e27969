package assettype

import "github.com/armorclaw/assetstore/internal/asseterr"

// Value is the tagged union an AttributeMap stores per Tag: exactly one of Bool,
// Number, or Bytes is meaningful, selected by Kind.
type Value struct {
	kind   DataType
	bVal   bool
	nVal   uint32
	byVal  []byte
}

// BoolValue constructs a Bool-kind Value.
func BoolValue(b bool) Value { return Value{kind: typeBool, bVal: b} }

// NumberValue constructs a Number-kind Value.
func NumberValue(n uint32) Value { return Value{kind: typeNumber, nVal: n} }

// BytesValue constructs a Bytes-kind Value. The slice is stored by reference; callers
// that need to zero secret bytes on drop must do so via the original slice.
func BytesValue(b []byte) Value { return Value{kind: typeBytes, byVal: b} }

// Kind reports which variant v holds.
func (v Value) Kind() DataType { return v.kind }

// Bool returns v's bool payload and whether v is Bool-kind.
func (v Value) Bool() (bool, bool) { return v.bVal, v.kind == typeBool }

// Number returns v's numeric payload and whether v is Number-kind.
func (v Value) Number() (uint32, bool) { return v.nVal, v.kind == typeNumber }

// Bytes returns v's byte payload and whether v is Bytes-kind.
func (v Value) Bytes() ([]byte, bool) { return v.byVal, v.kind == typeBytes }

// AttributeMap is an unordered Tag -> Value mapping with at most MaxMapCapacity
// entries (§4.1).
type AttributeMap map[Tag]Value

// MaxMapCapacity is the wire-enforced entry cap for a single AttributeMap.
const MaxMapCapacity = 64

// MaxVecCapacity is the wire-enforced entry cap for a vector of AttributeMaps.
const MaxVecCapacity = 65536

// NewAttributeMap returns an empty map ready for InsertAttr.
func NewAttributeMap() AttributeMap { return make(AttributeMap) }

// InsertAttr inserts value under key, rejecting a value whose Kind disagrees with
// key's declared DataType (§3 invariant 2). This is the Go reduction of the
// original's InsertAttribute trait.
func (m AttributeMap) InsertAttr(key Tag, value Value) error {
	if value.Kind() != key.DataType() {
		return asseterr.New(asseterr.InvalidArgument, "tag %s expects %s, got %s", key, key.DataType(), value.Kind())
	}
	m[key] = value
	return nil
}

// GetBoolAttr reads key as Bool, or InvalidArgument if absent/mistyped.
func (m AttributeMap) GetBoolAttr(key Tag) (bool, error) {
	v, ok := m[key]
	if !ok {
		return false, asseterr.New(asseterr.InvalidArgument, "missing bool attribute %s", key)
	}
	b, ok := v.Bool()
	if !ok {
		return false, asseterr.New(asseterr.InvalidArgument, "attribute %s is not bool", key)
	}
	return b, nil
}

// GetNumAttr reads key as Number, or InvalidArgument if absent/mistyped.
func (m AttributeMap) GetNumAttr(key Tag) (uint32, error) {
	v, ok := m[key]
	if !ok {
		return 0, asseterr.New(asseterr.InvalidArgument, "missing number attribute %s", key)
	}
	n, ok := v.Number()
	if !ok {
		return 0, asseterr.New(asseterr.InvalidArgument, "attribute %s is not a number", key)
	}
	return n, nil
}

// GetBytesAttr reads key as Bytes, or InvalidArgument if absent/mistyped.
func (m AttributeMap) GetBytesAttr(key Tag) ([]byte, error) {
	v, ok := m[key]
	if !ok {
		return nil, asseterr.New(asseterr.InvalidArgument, "missing bytes attribute %s", key)
	}
	b, ok := v.Bytes()
	if !ok {
		return nil, asseterr.New(asseterr.InvalidArgument, "attribute %s is not bytes", key)
	}
	return b, nil
}

// GetNumAttrOr reads key as Number, returning def when key is absent entirely
// (used for optional tags with documented defaults, e.g. ReturnLimit).
func (m AttributeMap) GetNumAttrOr(key Tag, def uint32) uint32 {
	if v, ok := m[key]; ok {
		if n, ok := v.Number(); ok {
			return n
		}
	}
	return def
}

// Clone returns a shallow copy of m (Value payloads are not deep-copied; Bytes
// slices are shared).
func (m AttributeMap) Clone() AttributeMap {
	out := make(AttributeMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
