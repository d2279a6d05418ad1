package migrations

import (
	"github.com/pocketbase/dbx"
)

func init() {
	Register(func(db dbx.Builder, d Dialect) error {
		return exec(db,
			`CREATE TABLE tickets (
				id `+d.PrimaryKey()+`,
				ticket_key VARCHAR(36) NOT NULL UNIQUE,
				user_id BIGINT NULL REFERENCES users (id) ON DELETE CASCADE,
				payment_id BIGINT NULL UNIQUE,
				event_name VARCHAR(255) NOT NULL,
				ticket_type VARCHAR(50) NOT NULL DEFAULT 'GENERAL',
				price `+d.Money()+` NOT NULL,
				quantity INTEGER NOT NULL DEFAULT 1 CHECK (quantity >= 0),
				status VARCHAR(20) NOT NULL DEFAULT 'ACTIVE',
				issued_at `+d.Timestamp()+` NOT NULL,
				expires_at `+d.Timestamp()+` NULL
			)`,
			"CREATE INDEX idx_tickets_user ON tickets (user_id)",
			"CREATE INDEX idx_tickets_status ON tickets (status)",
		)
	}, func(db dbx.Builder, d Dialect) error {
		return exec(db, "DROP TABLE tickets")
	})
}
