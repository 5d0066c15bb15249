// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

var (
	drvName = "mysql"
)

const timeout = 5 * time.Second

// DB is a Backend stored in a SQL table of a MySQL database.
type DB struct {
	db *sql.DB
}

// Open opens a connection to the database described by dsn,
// e.g. "user:pass@tcp(localhost:3306)/sigcap".
func Open(dsn string) (*DB, error) {
	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("prefs: could not open db: %w", err)
	}

	err = ping(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db: db}, nil
}

func ping(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("prefs: could not ping db: %w", err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// Init creates the preferences table if needed.
func (db *DB) Init(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := db.db.ExecContext(ctx,
		"CREATE TABLE IF NOT EXISTS prefs ("+
			"ns VARCHAR(64) NOT NULL, "+
			"k VARCHAR(64) NOT NULL, "+
			"v TEXT NOT NULL, "+
			"PRIMARY KEY (ns, k))",
	)
	if err != nil {
		return fmt.Errorf("prefs: could not create table: %w", err)
	}
	return nil
}

func (db *DB) Get(ns, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var v string
	err := db.db.QueryRowContext(ctx,
		"SELECT v FROM prefs WHERE ns=? AND k=?", ns, key,
	).Scan(&v)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("prefs: could not query %s/%s: %w", ns, key, err)
	}
	return v, true, nil
}

func (db *DB) Put(ns, key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_, err := db.db.ExecContext(ctx,
		"INSERT INTO prefs (ns, k, v) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE v=VALUES(v)",
		ns, key, value,
	)
	if err != nil {
		return fmt.Errorf("prefs: could not store %s/%s: %w", ns, key, err)
	}
	return nil
}
