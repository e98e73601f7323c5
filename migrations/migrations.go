// Package migrations embeds the Postgres schema.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed *.sql
var files embed.FS

//go:embed seeds/*.sql
var seedFiles embed.FS

// FS returns the schema migrations.
func FS() fs.FS { return files }

// Seeds returns the seed files rooted at the seeds directory.
func Seeds() fs.FS {
	sub, err := fs.Sub(seedFiles, "seeds")
	if err != nil {
		panic(err)
	}
	return sub
}
