package dbstore

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/armorclaw/assetstore/internal/asseterr"
)

// Store is the per-user relational store (§4.5). Both the DE (plain) and CE
// (page-cipher) variants are opened through the same go-sqlcipher/v4 driver: CE
// supplies a page key via PRAGMA key, DE never does, which yields an ordinary
// SQLite file. A single process cannot link both mattn/go-sqlite3 and
// go-sqlcipher/v4 — they register the same "sqlite3" driver name — so this
// follows the teacher's own precedent of only ever importing go-sqlcipher even
// though its go.mod lists mattn/go-sqlite3 too (see DESIGN.md).
type Store struct {
	db   *sql.DB
	path string
}

// Options configures Open.
type Options struct {
	// Path is the master database file. The backup sibling is Path+".backup".
	Path string
	// DBKey, when non-nil, is the 32-byte raw key applied as a SQLCipher page key
	// (CE store). Nil means an unencrypted (DE) database.
	DBKey []byte
}

// Open creates the directory and file if absent, recovers from `.backup` per §4.5's
// open contract, and runs pending migrations.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o700); err != nil {
		return nil, asseterr.Wrap(asseterr.FileOperationError, err, "create db directory failed")
	}

	db, err := openAndVerify(opts.Path, opts.DBKey)
	if err != nil {
		backupPath := opts.Path + ".backup"
		if _, statErr := os.Stat(backupPath); statErr == nil {
			if restored, restoreErr := openAndVerify(backupPath, opts.DBKey); restoreErr == nil {
				restored.Close()
				if copyErr := copyFile(backupPath, opts.Path); copyErr != nil {
					return nil, asseterr.Wrap(asseterr.FileOperationError, copyErr, "backup promotion failed")
				}
				db, err = openAndVerify(opts.Path, opts.DBKey)
			}
		}
		if err != nil {
			return nil, asseterr.Wrap(asseterr.DataCorrupted, err, "master and backup both unusable for %s", opts.Path)
		}
	}

	s := &Store{db: db, path: opts.Path}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func openAndVerify(path string, key []byte) (*sql.DB, error) {
	dsn := path
	if key != nil {
		dsn = fmt.Sprintf("%s?_pragma_key=x'%s'", path, hex.EncodeToString(key))
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		db.Close()
		return nil, fmt.Errorf("integrity_check query failed: %w", err)
	}
	if result != "ok" {
		db.Close()
		return nil, fmt.Errorf("integrity_check reported %q", result)
	}
	return db, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o600)
}

// migrate applies every registered migration newer than PRAGMA user_version, inside
// a transaction, rolling back and reporting DatabaseError on failure (§4.5 Upgrade).
func (s *Store) migrate(ctx context.Context) error {
	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return asseterr.Wrap(asseterr.DatabaseError, err, "read user_version failed")
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return asseterr.Wrap(asseterr.DatabaseError, err, "begin migration %d failed", m.version)
		}
		failed := false
		for _, stmt := range m.stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				failed = true
				break
			}
		}
		if !failed {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
				failed = true
			}
		}
		if failed {
			tx.Rollback()
			return asseterr.New(asseterr.DatabaseError, "migration %d failed", m.version)
		}
		if err := tx.Commit(); err != nil {
			return asseterr.Wrap(asseterr.DatabaseError, err, "commit migration %d failed", m.version)
		}
	}
	return nil
}

// Backup copies the master file to its `.backup` sibling, gated on a fresh
// integrity_check (§4.5 backup()).
func (s *Store) Backup(ctx context.Context) error {
	var result string
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return asseterr.Wrap(asseterr.DatabaseError, err, "integrity_check before backup failed")
	}
	if result != "ok" {
		return asseterr.New(asseterr.DataCorrupted, "refusing to back up a corrupt database")
	}
	if err := copyFile(s.path, s.path+".backup"); err != nil {
		return asseterr.Wrap(asseterr.FileOperationError, err, "backup copy failed")
	}
	return nil
}

// Close releases the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// Transaction runs f inside a BEGIN/COMMIT, rolling back on error. Nested calls are
// forbidden by §4.5; callers must not call Transaction again from inside f.
func (s *Store) Transaction(ctx context.Context, f func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return asseterr.Wrap(asseterr.DatabaseError, err, "begin transaction failed")
	}
	if err := f(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return asseterr.Wrap(asseterr.DatabaseError, err, "commit failed")
	}
	return nil
}
