package config

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mutecomm/go-sqlcipher/v4"
)

// EncryptedDB wraps a SQLite database, optionally SQLCipher-encrypted.
// Adapted from the teacher's OpenEncryptedDB: same DSN shape, same
// "wrong key fails the first read" verification, generalized to take
// the passphrase from config.Passphrase() rather than a CLI prompt.
type EncryptedDB struct {
	db        *sql.DB
	path      string
	encrypted bool
}

// Open opens (creating if absent) the SQLite database at path. If
// passphrase is non-empty the database is opened/created under
// SQLCipher encryption.
func Open(path, passphrase string) (*EncryptedDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	var dsn string
	encrypted := passphrase != ""
	if encrypted {
		dsn = fmt.Sprintf("file:%s?_pragma_key=%s&_journal_mode=WAL&_synchronous=NORMAL", path, passphrase)
	} else {
		dsn = fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL", path)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if encrypted {
		var version string
		if err := db.QueryRow("SELECT sqlite_version()").Scan(&version); err != nil {
			db.Close()
			return nil, fmt.Errorf("invalid passphrase or corrupted database: %w", err)
		}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	return &EncryptedDB{db: db, path: path, encrypted: encrypted}, nil
}

func (e *EncryptedDB) DB() *sql.DB     { return e.db }
func (e *EncryptedDB) Close() error    { return e.db.Close() }
func (e *EncryptedDB) Encrypted() bool { return e.encrypted }
func (e *EncryptedDB) Path() string    { return e.path }
