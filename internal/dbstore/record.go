// Package dbstore implements the per-user relational store (§4.5): the fixed
// schema, migrations, master/backup recovery, and the CRUD surface the record
// service builds on. Grounded on the original's db_operator crate (schema shape,
// backup/upgrade contract) and the teacher's pkg/keystore for the Go
// database/sql + mattn/go-sqlite3 / mutecomm/go-sqlcipher wiring pattern.
package dbstore

import "github.com/armorclaw/assetstore/internal/assettype"

// Row is one asset record as the store sees it: every non-null column named in
// §4.5's schema, plus the optional critical/normal/normal-local label columns.
type Row struct {
	ID                 int64
	Secret             []byte // AES-256-GCM ciphertext: nonce‖tag‖ct
	Alias              []byte
	Owner              []byte
	OwnerType          assettype.OwnerType
	GroupID            []byte // nullable
	SyncType           assettype.SyncType
	Accessibility      assettype.Accessibility
	AuthType           assettype.AuthType
	CreateTime         []byte // original stores as formatted bytes; kept opaque here
	UpdateTime         []byte
	IsPersistent       bool
	Version            uint32
	RequirePasswordSet bool
	LocalStatus        assettype.LocalStatus
	SyncStatus         assettype.SyncStatusV
	WrapType           assettype.WrapType

	DataLabelCritical1 []byte
	DataLabelCritical2 []byte
	DataLabelCritical3 []byte
	DataLabelCritical4 []byte
	DataLabelNormal1   []byte
	DataLabelNormal2   []byte
	DataLabelNormal3   []byte
	DataLabelNormal4   []byte

	DataLabelNormalLocal1 []byte
	DataLabelNormalLocal2 []byte
	DataLabelNormalLocal3 []byte
	DataLabelNormalLocal4 []byte
}

// Column names, fixed per §4.5. Used both for CREATE TABLE and for building
// parameterized WHERE/SET clauses so no caller hand-writes a column literal.
const (
	ColID                 = "id"
	ColSecret             = "secret"
	ColAlias              = "alias"
	ColOwner              = "owner"
	ColOwnerType          = "owner_type"
	ColGroupID            = "group_id"
	ColSyncType           = "sync_type"
	ColAccessibility      = "accessibility"
	ColAuthType           = "auth_type"
	ColCreateTime         = "create_time"
	ColUpdateTime         = "update_time"
	ColIsPersistent       = "is_persistent"
	ColVersion            = "version"
	ColRequirePasswordSet = "require_password_set"
	ColLocalStatus        = "local_status"
	ColSyncStatus         = "sync_status"
	ColWrapType           = "wrap_type"

	ColDataLabelCritical1 = "data_label_critical_1"
	ColDataLabelCritical2 = "data_label_critical_2"
	ColDataLabelCritical3 = "data_label_critical_3"
	ColDataLabelCritical4 = "data_label_critical_4"
	ColDataLabelNormal1   = "data_label_normal_1"
	ColDataLabelNormal2   = "data_label_normal_2"
	ColDataLabelNormal3   = "data_label_normal_3"
	ColDataLabelNormal4   = "data_label_normal_4"

	ColDataLabelNormalLocal1 = "data_label_normal_local_1"
	ColDataLabelNormalLocal2 = "data_label_normal_local_2"
	ColDataLabelNormalLocal3 = "data_label_normal_local_3"
	ColDataLabelNormalLocal4 = "data_label_normal_local_4"
)

// AllColumns lists every column in a fixed order, used by Store.Query's SELECT *
// and by the row scanner.
var AllColumns = []string{
	ColID, ColSecret, ColAlias, ColOwner, ColOwnerType, ColGroupID, ColSyncType,
	ColAccessibility, ColAuthType, ColCreateTime, ColUpdateTime, ColIsPersistent,
	ColVersion, ColRequirePasswordSet, ColLocalStatus, ColSyncStatus, ColWrapType,
	ColDataLabelCritical1, ColDataLabelCritical2, ColDataLabelCritical3, ColDataLabelCritical4,
	ColDataLabelNormal1, ColDataLabelNormal2, ColDataLabelNormal3, ColDataLabelNormal4,
	ColDataLabelNormalLocal1, ColDataLabelNormalLocal2, ColDataLabelNormalLocal3, ColDataLabelNormalLocal4,
}

// Where is an equality-conjunction filter: every pair must match (AND).
type Where map[string]any

// Set is a column->new-value map for Update.
type Set map[string]any

// QueryOptions shapes a Query call (§4.5).
type QueryOptions struct {
	Limit     *uint32
	Offset    *uint32
	OrderBy   string
	Ascending bool
}
