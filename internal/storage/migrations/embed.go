package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// PostgresFS embeds the market and run ledger schema.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds the event archive schema.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS

// migration is one embedded SQL file.
type migration struct {
	name string
	sql  string
}

// load reads the .sql files of dir in lexical order.
func load(fsys fs.FS, dir string) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	out := make([]migration, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, dir+"/"+name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		out = append(out, migration{name: name, sql: string(data)})
	}
	return out, nil
}
