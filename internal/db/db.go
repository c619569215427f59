package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/meduzzen/messenger/internal/models"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

type DB struct {
	conn    *gorm.DB
	dialect string
	path    string
}

// New opens the database named by dsn and migrates the schema.
func New(dsn string) (*DB, error) {
	db, err := Open(dsn)
	if err != nil {
		return nil, err
	}

	if err := db.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return db, nil
}

// Open connects without touching the schema. A postgres:// or postgresql://
// URL selects PostgreSQL; anything else is a SQLite path, optionally
// prefixed with sqlite://.
func Open(dsn string) (*DB, error) {
	return open(dsn, true)
}

// OpenExisting is Open for inspection tools: it leaves the journal mode
// of an existing SQLite file as it is.
func OpenExisting(dsn string) (*DB, error) {
	return open(dsn, false)
}

func open(dsn string, wal bool) (*DB, error) {
	gormCfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}

	if IsPostgres(dsn) {
		conn, err := gorm.Open(postgres.Open(dsn), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		db := &DB{conn: conn, dialect: DialectPostgres}
		if err := db.configurePool(); err != nil {
			return nil, err
		}
		return db, nil
	}

	path := SQLitePath(dsn)
	sqlDB, err := sql.Open("sqlite3", sqliteDSN(path, wal))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite3", Conn: sqlDB}), gormCfg)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn, dialect: DialectSQLite, path: path}
	if err := db.configurePool(); err != nil {
		return nil, err
	}
	return db, nil
}

func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func SQLitePath(dsn string) string {
	return strings.TrimPrefix(dsn, "sqlite://")
}

// sqliteDSN applies the connection pragmas through the DSN so that every
// pooled connection gets them, not only the first one.
//
// WAL lets readers work while a writer is writing; the busy timeout waits
// instead of failing with SQLITE_BUSY; NORMAL sync is safe with WAL;
// -64000 = 64MB page cache.
func sqliteDSN(path string, wal bool) string {
	params := url.Values{}
	if wal {
		params.Set("_journal_mode", "WAL")
	}
	params.Set("_busy_timeout", "5000")
	params.Set("_synchronous", "NORMAL")
	params.Set("_cache_size", "-64000")
	params.Set("_foreign_keys", "on")

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	} else if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	return path + sep + params.Encode()
}

func (db *DB) configurePool() error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	return nil
}

func (db *DB) migrate() error {
	return db.conn.AutoMigrate(models.All()...)
}

func (db *DB) Close() error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (db *DB) GetConn() *gorm.DB {
	return db.conn
}

func (db *DB) Dialect() string {
	return db.dialect
}

// Path is the SQLite file path, empty for PostgreSQL.
func (db *DB) Path() string {
	return db.path
}
