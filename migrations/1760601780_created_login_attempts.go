package migrations

import (
	"github.com/pocketbase/dbx"
)

func init() {
	Register(func(db dbx.Builder, d Dialect) error {
		return exec(db, `CREATE TABLE login_attempts (
			id `+d.PrimaryKey()+`,
			user_id BIGINT NOT NULL UNIQUE REFERENCES users (id) ON DELETE CASCADE,
			failed_attempts INTEGER NOT NULL DEFAULT 0,
			locked_until `+d.Timestamp()+` NULL,
			created_at `+d.Timestamp()+` NOT NULL,
			updated_at `+d.Timestamp()+` NOT NULL
		)`)
	}, func(db dbx.Builder, d Dialect) error {
		return exec(db, "DROP TABLE login_attempts")
	})
}
