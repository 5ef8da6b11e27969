package assettype_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armorclaw/assetstore/internal/assettype"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := assettype.NewAttributeMap()
	require.NoError(t, m.InsertAttr(assettype.Alias, assettype.BytesValue([]byte("my-alias"))))
	require.NoError(t, m.InsertAttr(assettype.Secret, assettype.BytesValue([]byte{0x01, 0x02})))
	require.NoError(t, m.InsertAttr(assettype.Accessibility, assettype.NumberValue(uint32(assettype.DeviceFirstUnlocked))))
	require.NoError(t, m.InsertAttr(assettype.IsPersistent, assettype.BoolValue(true)))

	enc, err := assettype.Encode(m)
	require.NoError(t, err)

	dec, rest, err := assettype.Decode(enc)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, len(m), len(dec))

	alias, err := dec.GetBytesAttr(assettype.Alias)
	require.NoError(t, err)
	assert.Equal(t, "my-alias", string(alias))

	persistent, err := dec.GetBoolAttr(assettype.IsPersistent)
	require.NoError(t, err)
	assert.True(t, persistent)
}

func TestDecodeRejectsOversizedMap(t *testing.T) {
	buf := make([]byte, 4)
	buf[0] = byte(assettype.MaxMapCapacity + 1)
	_, _, err := assettype.Decode(buf)
	require.Error(t, err)
}

func TestDecodeRejectsUnknownTag(t *testing.T) {
	m := assettype.NewAttributeMap()
	require.NoError(t, m.InsertAttr(assettype.Alias, assettype.BytesValue([]byte("a"))))
	enc, err := assettype.Encode(m)
	require.NoError(t, err)
	// Corrupt the tag id (first entry starts at offset 4) to an unused number-typed id.
	enc[4] = 0xfe
	enc[5] = 0xff
	enc[6] = 0xff
	enc[7] = byte(assettype.TypeNumber >> 24)
	_, _, err = assettype.Decode(enc)
	require.Error(t, err)
}

func TestInsertAttrRejectsTypeMismatch(t *testing.T) {
	m := assettype.NewAttributeMap()
	err := m.InsertAttr(assettype.Alias, assettype.NumberValue(1))
	require.Error(t, err)
}

func TestEncodeVecRoundTrip(t *testing.T) {
	m1 := assettype.NewAttributeMap()
	require.NoError(t, m1.InsertAttr(assettype.Alias, assettype.BytesValue([]byte("a"))))
	m2 := assettype.NewAttributeMap()
	require.NoError(t, m2.InsertAttr(assettype.Alias, assettype.BytesValue([]byte("b"))))

	enc, err := assettype.EncodeVec([]assettype.AttributeMap{m1, m2})
	require.NoError(t, err)

	dec, err := assettype.DecodeVec(enc)
	require.NoError(t, err)
	require.Len(t, dec, 2)
}
