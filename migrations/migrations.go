// Package migrations embeds the SQL schema files applied by cmd/migrate.
package migrations

import (
	"embed"
	"io/fs"
	"sort"
	"strings"
)

//go:embed *.sql
var files embed.FS

// Up returns the forward migrations in apply order.
func Up() ([]string, error) {
	return list(func(n string) bool { return !isDown(n) }, false)
}

// Down returns the rollback migrations in reverse apply order.
func Down() ([]string, error) {
	return list(isDown, true)
}

// Read returns the contents of one migration file.
func Read(name string) (string, error) {
	data, err := files.ReadFile(name)
	return string(data), err
}

func isDown(name string) bool { return strings.HasSuffix(name, ".down.sql") }

func list(keep func(string) bool, reverse bool) ([]string, error) {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if keep(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if reverse {
		sort.Sort(sort.Reverse(sort.StringSlice(names)))
	}
	return names, nil
}
