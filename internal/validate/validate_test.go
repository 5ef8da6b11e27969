package validate_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armorclaw/assetstore/internal/assettype"
	"github.com/armorclaw/assetstore/internal/validate"
)

func aliasOfLen(n int) assettype.Value {
	return assettype.BytesValue([]byte(strings.Repeat("a", n)))
}

func TestAddRequiresAliasAndSecret(t *testing.T) {
	m := assettype.NewAttributeMap()
	err := validate.Check(validate.OpAdd, m)
	require.Error(t, err)
}

func TestAddAcceptsMinimalValidRequest(t *testing.T) {
	m := assettype.NewAttributeMap()
	require.NoError(t, m.InsertAttr(assettype.Alias, aliasOfLen(8)))
	require.NoError(t, m.InsertAttr(assettype.Secret, assettype.BytesValue([]byte("s"))))
	assert.NoError(t, validate.Check(validate.OpAdd, m))
}

func TestAddRejectsReturnShapingTags(t *testing.T) {
	m := assettype.NewAttributeMap()
	require.NoError(t, m.InsertAttr(assettype.Alias, aliasOfLen(8)))
	require.NoError(t, m.InsertAttr(assettype.Secret, assettype.BytesValue([]byte("s"))))
	require.NoError(t, m.InsertAttr(assettype.ReturnLimit, assettype.NumberValue(1)))
	assert.Error(t, validate.Check(validate.OpAdd, m))
}

func TestAliasBoundaries(t *testing.T) {
	for _, tc := range []struct {
		name    string
		length  int
		wantErr bool
	}{
		{"zero", 0, true},
		{"max", 256, false},
		{"overMax", 257, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m := assettype.NewAttributeMap()
			require.NoError(t, m.InsertAttr(assettype.Alias, aliasOfLen(tc.length)))
			require.NoError(t, m.InsertAttr(assettype.Secret, assettype.BytesValue([]byte("s"))))
			err := validate.Check(validate.OpAdd, m)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAuthChallengeMustBeExactly32Bytes(t *testing.T) {
	m := assettype.NewAttributeMap()
	require.NoError(t, m.InsertAttr(assettype.AuthChallenge, assettype.BytesValue(make([]byte, 31))))
	assert.Error(t, validate.Check(validate.OpPostQuery, m))
}

func TestPostQueryRequiresAuthChallenge(t *testing.T) {
	m := assettype.NewAttributeMap()
	err := validate.Check(validate.OpPostQuery, m)
	require.Error(t, err)
}

func TestQueryForbidsSecret(t *testing.T) {
	m := assettype.NewAttributeMap()
	require.NoError(t, m.InsertAttr(assettype.Secret, assettype.BytesValue([]byte("s"))))
	assert.Error(t, validate.Check(validate.OpQuery, m))
}

func TestPreQueryRejectsExplicitAuthTypeNone(t *testing.T) {
	m := assettype.NewAttributeMap()
	require.NoError(t, m.InsertAttr(assettype.AuthType, assettype.NumberValue(uint32(assettype.AuthTypeNone))))
	require.NoError(t, validate.Check(validate.OpPreQuery, m))
	err := validate.CheckPermissions(validate.OpPreQuery, m, false, false)
	assert.Error(t, err)
}

func TestInvalidEnumRangeRejected(t *testing.T) {
	m := assettype.NewAttributeMap()
	require.NoError(t, m.InsertAttr(assettype.Accessibility, assettype.NumberValue(99)))
	assert.Error(t, validate.Check(validate.OpQuery, m))
}

func TestPersistentRequiresPermission(t *testing.T) {
	m := assettype.NewAttributeMap()
	require.NoError(t, m.InsertAttr(assettype.Alias, aliasOfLen(8)))
	require.NoError(t, m.InsertAttr(assettype.Secret, assettype.BytesValue([]byte("s"))))
	require.NoError(t, m.InsertAttr(assettype.IsPersistent, assettype.BoolValue(true)))
	require.NoError(t, validate.Check(validate.OpAdd, m))
	assert.Error(t, validate.CheckPermissions(validate.OpAdd, m, false, false))
	assert.NoError(t, validate.CheckPermissions(validate.OpAdd, m, false, true))
}
