package migrations

import (
	"github.com/pocketbase/dbx"
)

func init() {
	Register(func(db dbx.Builder, d Dialect) error {
		return exec(db, `CREATE TABLE users (
			id `+d.PrimaryKey()+`,
			email VARCHAR(180) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			roles TEXT NOT NULL DEFAULT '',
			created_at `+d.Timestamp()+` NOT NULL
		)`)
	}, func(db dbx.Builder, d Dialect) error {
		return exec(db, "DROP TABLE users")
	})
}
