package migrations

import (
	"github.com/pocketbase/dbx"
)

func init() {
	Register(func(db dbx.Builder, d Dialect) error {
		return exec(db,
			`CREATE TABLE payments (
				id `+d.PrimaryKey()+`,
				reference VARCHAR(36) NOT NULL UNIQUE,
				user_id BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
				amount `+d.Money()+` NOT NULL,
				currency VARCHAR(3) NOT NULL,
				status VARCHAR(20) NOT NULL,
				transaction_id VARCHAR(255) NULL,
				card_brand VARCHAR(50) NULL,
				card_last_four VARCHAR(4) NULL,
				ticket_id BIGINT NULL,
				error_message TEXT NULL,
				created_at `+d.Timestamp()+` NOT NULL,
				completed_at `+d.Timestamp()+` NULL
			)`,
			"CREATE INDEX idx_payments_user ON payments (user_id)",
		)
	}, func(db dbx.Builder, d Dialect) error {
		return exec(db, "DROP TABLE payments")
	})
}
