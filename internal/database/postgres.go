package database

import (
	"database/sql"
	_ "embed"
)

//go:embed schema.sql
var schema string

type PgMessengerRepository struct {
	conn *sql.DB
}

func NewPgMessengerRepository(dsn string) (*PgMessengerRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgMessengerRepository{conn: db}, nil
}

func (db *PgMessengerRepository) Ping() error {
	return db.conn.Ping()
}

// EnsureSchema applies the embedded DDL. All statements are idempotent.
func (db *PgMessengerRepository) EnsureSchema() error {
	_, err := db.conn.Exec(schema)
	return err
}

func (db *PgMessengerRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
