package database

import (
	"database/sql"
	"fmt"

	"guildchat-backend/internal/models"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// the driver applies these to every connection it opens, so a recycled
// connection keeps the cascades working
const sqlitePragmas = "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(normal)"

func readPragmaValues(db *sql.DB, sugar *zap.SugaredLogger) error {
	var foreignKeysValue bool
	err := db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeysValue)
	if err != nil {
		return err
	}

	var journalModeValue string
	err = db.QueryRow("PRAGMA journal_mode").Scan(&journalModeValue)
	if err != nil {
		return err
	}

	var synchronousValue int
	err = db.QueryRow("PRAGMA synchronous").Scan(&synchronousValue)
	if err != nil {
		return err
	}

	var synchronousValueStr string
	switch synchronousValue {
	case 0:
		synchronousValueStr = "off"
	case 1:
		synchronousValueStr = "normal"
	case 2:
		synchronousValueStr = "full"
	case 3:
		synchronousValueStr = "extra"
	default:
		return fmt.Errorf("synchronous value is unsupported")
	}

	sugar.Infow("sqlite pragma values",
		"foreign_keys", foreignKeysValue,
		"journal_mode", journalModeValue,
		"synchronous", synchronousValueStr,
	)

	return nil
}

// OpenSqlite opens a sqlite database at path and creates the tables.
// ":memory:" gives a throwaway database, which is what the tests use.
func OpenSqlite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+sqlitePragmas)
	if err != nil {
		return nil, err
	}

	// there can be sqlite busy errors if this is not set to 1,
	// and an in-memory database only lives as long as its connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	err = CreateTables(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func Setup(cfg *models.ConfigFile, sugar *zap.SugaredLogger) (*sql.DB, error) {
	if cfg.SelfContained {
		path := cfg.SqlitePath
		if path == "" {
			path = "./database.db"
		}
		sugar.Infof("Connecting to database sqlite at %s...", path)

		db, err := OpenSqlite(path)
		if err != nil {
			return nil, err
		}

		err = readPragmaValues(db, sugar)
		if err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	}

	sugar.Infof("Connecting to database mysql/mariadb at %s:%s...", cfg.DbAddress, cfg.DbPort)

	db, err := sql.Open("mysql", fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&timeout=10s", cfg.DbUser, cfg.DbPassword, cfg.DbAddress, cfg.DbPort, cfg.DbDatabase))
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, err
	}

	err = CreateTables(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// CreateTables is idempotent. The statements stick to the subset of SQL that
// both sqlite and mysql accept.
func CreateTables(db *sql.DB) error {
	var err error

	_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS users (
				id BIGINT PRIMARY KEY,
				username VARCHAR(32) NOT NULL,
				discriminator CHAR(4) NOT NULL,
				password_hash VARCHAR(60) NOT NULL,
				avatar_url TEXT,
				online BOOLEAN NOT NULL DEFAULT FALSE,
				admin BOOLEAN,
				UNIQUE (username, discriminator)
			);
		`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS servers (
				id BIGINT PRIMARY KEY,
				name VARCHAR(64) NOT NULL,
				icon_url TEXT,
				owner_id BIGINT NOT NULL
			);
		`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS server_members (
				server_id BIGINT NOT NULL,
				user_id BIGINT NOT NULL,
				since TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (server_id, user_id),
				FOREIGN KEY (server_id) REFERENCES servers(id) ON DELETE CASCADE,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			);
		`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS invites (
				code VARCHAR(16) PRIMARY KEY,
				server_id BIGINT NOT NULL,
				inviter_id BIGINT NOT NULL,
				FOREIGN KEY (server_id) REFERENCES servers(id) ON DELETE CASCADE
			);
		`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS messages (
				id BIGINT PRIMARY KEY,
				author_id BIGINT NOT NULL,
				server_id BIGINT NOT NULL,
				contents TEXT NOT NULL,
				created_at BIGINT NOT NULL,
				FOREIGN KEY (server_id) REFERENCES servers(id) ON DELETE CASCADE
			);
		`)
	if err != nil {
		return err
	}

	return nil
}
