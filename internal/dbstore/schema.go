package dbstore

// schemaVersion is the current PRAGMA user_version. Bump this and append a
// migration to migrations when the schema changes (§4.5 Upgrade).
const schemaVersion = 1

const createTableSQL = `
CREATE TABLE IF NOT EXISTS asset_table (
	id                        INTEGER PRIMARY KEY AUTOINCREMENT,
	secret                    BLOB NOT NULL,
	alias                     BLOB NOT NULL,
	owner                     BLOB NOT NULL,
	owner_type                INTEGER NOT NULL,
	group_id                  BLOB,
	sync_type                 INTEGER NOT NULL,
	accessibility             INTEGER NOT NULL,
	auth_type                 INTEGER NOT NULL,
	create_time               BLOB NOT NULL,
	update_time               BLOB NOT NULL,
	is_persistent             INTEGER NOT NULL,
	version                   INTEGER NOT NULL,
	require_password_set      INTEGER NOT NULL,
	local_status              INTEGER NOT NULL,
	sync_status               INTEGER NOT NULL,
	wrap_type                 INTEGER NOT NULL,
	data_label_critical_1     BLOB,
	data_label_critical_2     BLOB,
	data_label_critical_3     BLOB,
	data_label_critical_4     BLOB,
	data_label_normal_1       BLOB,
	data_label_normal_2       BLOB,
	data_label_normal_3       BLOB,
	data_label_normal_4       BLOB,
	data_label_normal_local_1 BLOB,
	data_label_normal_local_2 BLOB,
	data_label_normal_local_3 BLOB,
	data_label_normal_local_4 BLOB
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_asset_owner_alias
	ON asset_table(owner, owner_type, IFNULL(group_id, x''), alias);
`

// migration is one forward schema step, applied inside a transaction (§4.5 Upgrade).
type migration struct {
	version int
	stmts   []string
}

// migrations is the registered, strictly-ordered upgrade path. Migration 1 is the
// base schema; future schema changes append rather than edit existing entries.
var migrations = []migration{
	{version: 1, stmts: []string{createTableSQL}},
}
