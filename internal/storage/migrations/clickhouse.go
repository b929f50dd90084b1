package migrations

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	chstore "marketdata-archiver/internal/storage/clickhouse"
)

// RunClickhouseMigrations creates the dsn database if missing and applies all
// embedded SQL files. Returns a connection to the target database.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, error) {
	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}

	adminConn, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse admin: %w", err)
	}
	if err := adminConn.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", dbName)); err != nil {
		adminConn.Close()
		return nil, fmt.Errorf("create database %s: %w", dbName, err)
	}
	if err := adminConn.Close(); err != nil {
		return nil, fmt.Errorf("close admin connection: %w", err)
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse db: %w", err)
	}

	files, err := load(ClickhouseFS, "clickhouse")
	if err != nil {
		conn.Close()
		return nil, err
	}

	for _, m := range files {
		if err := validateNoSemicolonInStrings(m.sql); err != nil {
			conn.Close()
			return nil, fmt.Errorf("validate migration %s: %w", m.name, err)
		}

		// The native protocol runs one statement per Exec.
		for _, stmt := range splitStatements(m.sql) {
			if err := conn.Exec(ctx, stmt); err != nil {
				conn.Close()
				return nil, fmt.Errorf("apply migration %s: %w", m.name, err)
			}
		}
	}

	return conn, nil
}

// splitStatements drops -- comment lines and splits on semicolons.
// Semicolons inside string literals or block comments are not supported.
func splitStatements(input string) []string {
	var filtered []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		filtered = append(filtered, line)
	}

	var stmts []string
	for _, part := range strings.Split(strings.Join(filtered, "\n"), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

var errSemicolonInString = errors.New("semicolon inside string literal")

// validateNoSemicolonInStrings rejects SQL that splitStatements would cut
// inside a quoted literal.
func validateNoSemicolonInStrings(sql string) error {
	inString := false
	for i := 0; i < len(sql); i++ {
		switch sql[i] {
		case '\'':
			if inString && i+1 < len(sql) && sql[i+1] == '\'' {
				i++ // escaped quote
				continue
			}
			inString = !inString
		case ';':
			if inString {
				return fmt.Errorf("%w at offset %d", errSemicolonInString, i)
			}
		}
	}
	return nil
}

func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", fmt.Errorf("clickhouse dsn missing database")
	}
	return db, nil
}
