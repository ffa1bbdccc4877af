package waiters

// Schema creates the waiters table. No foreign key ties orders to waiters.
const Schema = `
CREATE TABLE IF NOT EXISTS waiters (
	id           BIGSERIAL PRIMARY KEY,
	waiter_name  TEXT        NOT NULL,
	passkey_hash TEXT        NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
