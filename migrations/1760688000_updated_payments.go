package migrations

import (
	"github.com/pocketbase/dbx"
)

// refund_id records the gateway refund once a compensation went through.
func init() {
	Register(func(db dbx.Builder, d Dialect) error {
		return exec(db,
			"ALTER TABLE payments ADD COLUMN refund_id VARCHAR(255) NULL",
			"CREATE INDEX idx_payments_status ON payments (status)",
		)
	}, func(db dbx.Builder, d Dialect) error {
		return exec(db,
			"DROP INDEX idx_payments_status",
			"ALTER TABLE payments DROP COLUMN refund_id",
		)
	})
}
