package orders

// Schema creates the orders table. Statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS orders (
	id                 BIGSERIAL PRIMARY KEY,
	table_number       TEXT        NOT NULL,
	waiter_name        TEXT        NOT NULL,
	order_items        TEXT        NOT NULL DEFAULT '',
	status             TEXT        NOT NULL DEFAULT 'new'
	                   CHECK (status IN ('new', 'pending', 'completed')),
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	pending_start_time TIMESTAMPTZ,
	countdown          TEXT,
	completed_at       TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS orders_status_idx ON orders (status);
`
