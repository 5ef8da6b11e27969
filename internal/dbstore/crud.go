package dbstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/armorclaw/assetstore/internal/asseterr"
)

// Insert adds row, returning its assigned id. All NOT NULL columns in row must
// already be populated by the caller (§4.5 insert()).
func (s *Store) Insert(ctx context.Context, row Row) (int64, error) {
	cols := []string{
		ColSecret, ColAlias, ColOwner, ColOwnerType, ColGroupID, ColSyncType,
		ColAccessibility, ColAuthType, ColCreateTime, ColUpdateTime, ColIsPersistent,
		ColVersion, ColRequirePasswordSet, ColLocalStatus, ColSyncStatus, ColWrapType,
		ColDataLabelCritical1, ColDataLabelCritical2, ColDataLabelCritical3, ColDataLabelCritical4,
		ColDataLabelNormal1, ColDataLabelNormal2, ColDataLabelNormal3, ColDataLabelNormal4,
		ColDataLabelNormalLocal1, ColDataLabelNormalLocal2, ColDataLabelNormalLocal3, ColDataLabelNormalLocal4,
	}
	vals := []any{
		row.Secret, row.Alias, row.Owner, row.OwnerType, nullableBytes(row.GroupID), row.SyncType,
		row.Accessibility, row.AuthType, row.CreateTime, row.UpdateTime, row.IsPersistent,
		row.Version, row.RequirePasswordSet, row.LocalStatus, row.SyncStatus, row.WrapType,
		nullableBytes(row.DataLabelCritical1), nullableBytes(row.DataLabelCritical2),
		nullableBytes(row.DataLabelCritical3), nullableBytes(row.DataLabelCritical4),
		nullableBytes(row.DataLabelNormal1), nullableBytes(row.DataLabelNormal2),
		nullableBytes(row.DataLabelNormal3), nullableBytes(row.DataLabelNormal4),
		nullableBytes(row.DataLabelNormalLocal1), nullableBytes(row.DataLabelNormalLocal2),
		nullableBytes(row.DataLabelNormalLocal3), nullableBytes(row.DataLabelNormalLocal4),
	}
	placeholders := make([]string, len(cols))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	q := fmt.Sprintf("INSERT INTO asset_table (%s) VALUES (%s)", strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	res, err := s.db.ExecContext(ctx, q, vals...)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, asseterr.Wrap(asseterr.Duplicated, err, "row already exists for this owner/alias")
		}
		return 0, asseterr.Wrap(asseterr.DatabaseError, err, "insert failed")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, asseterr.Wrap(asseterr.DatabaseError, err, "read last insert id failed")
	}
	return id, nil
}

// Update applies set to every row matching where, returning the number of rows
// affected (§4.5 update()).
func (s *Store) Update(ctx context.Context, where Where, set Set) (int64, error) {
	if len(set) == 0 {
		return 0, nil
	}
	setClause, setArgs := buildAssignments(set)
	whereClause, whereArgs := buildConjunction(where)
	q := fmt.Sprintf("UPDATE asset_table SET %s", setClause)
	if whereClause != "" {
		q += " WHERE " + whereClause
	}
	res, err := s.db.ExecContext(ctx, q, append(setArgs, whereArgs...)...)
	if err != nil {
		return 0, asseterr.Wrap(asseterr.DatabaseError, err, "update failed")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, asseterr.Wrap(asseterr.DatabaseError, err, "read rows affected failed")
	}
	return n, nil
}

// Delete removes rows matching where. When reverseWhere is non-nil, only rows
// matching where AND NOT matching reverseWhere are physically removed (§4.5
// delete(), used for sync tombstones in §4.6.6); pass a nil reverseWhere for a plain
// unconditional delete.
func (s *Store) Delete(ctx context.Context, where Where, reverseWhere Where) (int64, error) {
	whereClause, whereArgs := buildConjunction(where)
	q := "DELETE FROM asset_table"
	args := whereArgs
	clauses := []string{}
	if whereClause != "" {
		clauses = append(clauses, whereClause)
	}
	if len(reverseWhere) > 0 {
		revClause, revArgs := buildConjunction(reverseWhere)
		clauses = append(clauses, "NOT ("+revClause+")")
		args = append(args, revArgs...)
	}
	if len(clauses) > 0 {
		q += " WHERE " + strings.Join(clauses, " AND ")
	}
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, asseterr.Wrap(asseterr.DatabaseError, err, "delete failed")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, asseterr.Wrap(asseterr.DatabaseError, err, "read rows affected failed")
	}
	return n, nil
}

// Query returns rows matching where, shaped by opts (§4.5 query()).
func (s *Store) Query(ctx context.Context, where Where, opts QueryOptions) ([]Row, error) {
	whereClause, whereArgs := buildConjunction(where)
	q := fmt.Sprintf("SELECT %s FROM asset_table", strings.Join(AllColumns, ", "))
	if whereClause != "" {
		q += " WHERE " + whereClause
	}
	if opts.OrderBy != "" {
		dir := "DESC"
		if opts.Ascending {
			dir = "ASC"
		}
		q += fmt.Sprintf(" ORDER BY %s %s", opts.OrderBy, dir)
	}
	if opts.Limit != nil {
		q += fmt.Sprintf(" LIMIT %d", *opts.Limit)
	}
	if opts.Offset != nil {
		q += fmt.Sprintf(" OFFSET %d", *opts.Offset)
	}
	rows, err := s.db.QueryContext(ctx, q, whereArgs...)
	if err != nil {
		return nil, asseterr.Wrap(asseterr.DatabaseError, err, "query failed")
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var groupID, c1, c2, c3, c4, n1, n2, n3, n4, l1, l2, l3, l4 sql.Null[[]byte]
		err := rows.Scan(
			&r.ID, &r.Secret, &r.Alias, &r.Owner, &r.OwnerType, &groupID, &r.SyncType,
			&r.Accessibility, &r.AuthType, &r.CreateTime, &r.UpdateTime, &r.IsPersistent,
			&r.Version, &r.RequirePasswordSet, &r.LocalStatus, &r.SyncStatus, &r.WrapType,
			&c1, &c2, &c3, &c4, &n1, &n2, &n3, &n4, &l1, &l2, &l3, &l4,
		)
		if err != nil {
			return nil, asseterr.Wrap(asseterr.DatabaseError, err, "scan row failed")
		}
		r.GroupID, r.DataLabelCritical1, r.DataLabelCritical2, r.DataLabelCritical3, r.DataLabelCritical4 =
			groupID.V, c1.V, c2.V, c3.V, c4.V
		r.DataLabelNormal1, r.DataLabelNormal2, r.DataLabelNormal3, r.DataLabelNormal4 = n1.V, n2.V, n3.V, n4.V
		r.DataLabelNormalLocal1, r.DataLabelNormalLocal2, r.DataLabelNormalLocal3, r.DataLabelNormalLocal4 =
			l1.V, l2.V, l3.V, l4.V
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, asseterr.Wrap(asseterr.DatabaseError, err, "row iteration failed")
	}
	return out, nil
}

// Exists reports whether any row matches where.
func (s *Store) Exists(ctx context.Context, where Where) (bool, error) {
	whereClause, whereArgs := buildConjunction(where)
	q := "SELECT 1 FROM asset_table"
	if whereClause != "" {
		q += " WHERE " + whereClause
	}
	q += " LIMIT 1"
	var one int
	err := s.db.QueryRowContext(ctx, q, whereArgs...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, asseterr.Wrap(asseterr.DatabaseError, err, "exists check failed")
	}
	return true, nil
}

func buildConjunction(where Where) (string, []any) {
	if len(where) == 0 {
		return "", nil
	}
	clauses := make([]string, 0, len(where))
	args := make([]any, 0, len(where))
	for col, val := range where {
		clauses = append(clauses, col+" = ?")
		args = append(args, val)
	}
	return strings.Join(clauses, " AND "), args
}

func buildAssignments(set Set) (string, []any) {
	clauses := make([]string, 0, len(set))
	args := make([]any, 0, len(set))
	for col, val := range set {
		clauses = append(clauses, col+" = ?")
		args = append(args, val)
	}
	return strings.Join(clauses, ", "), args
}

func nullableBytes(b []byte) any {
	if b == nil {
		return nil
	}
	return b
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
