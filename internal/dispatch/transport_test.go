package dispatch

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armorclaw/assetstore/internal/asseterr"
	"github.com/armorclaw/assetstore/internal/assettype"
	"github.com/armorclaw/assetstore/internal/record"
)

func TestRequestRoundTripsThroughWireFrame(t *testing.T) {
	params := assettype.AttributeMap{}
	require.NoError(t, params.InsertAttr(assettype.Alias, assettype.BytesValue([]byte("alias-1"))))

	var buf bytes.Buffer
	require.NoError(t, writeLenPrefixed(&buf, []byte(InterfaceToken)))
	require.NoError(t, writeU32(&buf, uint32(OpAdd)))
	require.NoError(t, writeU32(&buf, 1))
	enc, err := assettype.Encode(params)
	require.NoError(t, err)
	require.NoError(t, writeLenPrefixed(&buf, enc))

	req, err := readRequest(&buf)
	require.NoError(t, err)
	assert.Equal(t, OpAdd, req.Op)
	require.Len(t, req.Params, 1)

	alias, err := req.Params[0].GetBytesAttr(assettype.Alias)
	require.NoError(t, err)
	assert.Equal(t, "alias-1", string(alias))
}

func TestReplyRoundTripsSuccessWithMaps(t *testing.T) {
	m := assettype.AttributeMap{}
	require.NoError(t, m.InsertAttr(assettype.Alias, assettype.BytesValue([]byte("a"))))

	reply := Reply{Code: asseterr.Success, Maps: []assettype.AttributeMap{m}, Challenge: []byte{1, 2, 3}}

	var buf bytes.Buffer
	require.NoError(t, writeReply(&buf, reply))

	status, err := readU32(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(asseterr.Success), status)

	count, err := readU32(&buf)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	mapBytes, err := readLenPrefixed(&buf)
	require.NoError(t, err)
	decoded, _, err := assettype.Decode(mapBytes)
	require.NoError(t, err)
	alias, err := decoded.GetBytesAttr(assettype.Alias)
	require.NoError(t, err)
	assert.Equal(t, "a", string(alias))

	challenge, err := readLenPrefixed(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, challenge)

	syncPresent, err := readU32(&buf)
	require.NoError(t, err)
	assert.EqualValues(t, 0, syncPresent)
}

func TestReplyRoundTripsSyncResult(t *testing.T) {
	reply := Reply{
		Code: asseterr.Success,
		Sync: &record.SyncResult{TotalCount: 7, FailedCount: 2, LastSyncTime: []byte("2026-07-31")},
	}

	var buf bytes.Buffer
	require.NoError(t, writeReply(&buf, reply))

	status, err := readU32(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(asseterr.Success), status)

	count, err := readU32(&buf)
	require.NoError(t, err)
	require.EqualValues(t, 0, count)

	_, err = readLenPrefixed(&buf) // empty challenge
	require.NoError(t, err)

	syncPresent, err := readU32(&buf)
	require.NoError(t, err)
	require.EqualValues(t, 1, syncPresent)

	total, err := readU32(&buf)
	require.NoError(t, err)
	assert.EqualValues(t, 7, total)

	failed, err := readU32(&buf)
	require.NoError(t, err)
	assert.EqualValues(t, 2, failed)

	lastSync, err := readLenPrefixed(&buf)
	require.NoError(t, err)
	assert.Equal(t, "2026-07-31", string(lastSync))
}

func TestReplyRoundTripsErrorWithMessage(t *testing.T) {
	reply := Reply{Code: asseterr.NotFound, Msg: "no match"}

	var buf bytes.Buffer
	require.NoError(t, writeReply(&buf, reply))

	status, err := readU32(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(asseterr.NotFound), status)

	msg, err := readLenPrefixed(&buf)
	require.NoError(t, err)
	assert.Equal(t, "no match", string(msg))
}

func TestReadRequestRejectsWrongInterfaceToken(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeLenPrefixed(&buf, []byte("wrong_token")))
	require.NoError(t, writeU32(&buf, uint32(OpAdd)))
	require.NoError(t, writeU32(&buf, 0))

	_, err := readRequest(&buf)
	assert.Error(t, err)
}
