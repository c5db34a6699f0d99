package postgres

// schema is applied on startup; every statement is idempotent
const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		contact TEXT NOT NULL UNIQUE,
		birthday DATE,
		embedding DOUBLE PRECISION[] NOT NULL,
		face_image BYTEA,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_visit TIMESTAMPTZ
	);
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		price DOUBLE PRECISION NOT NULL,
		class_id INT NOT NULL UNIQUE,
		class_name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		user_name TEXT NOT NULL,
		items JSONB NOT NULL,
		total_quantity INT NOT NULL,
		total_amount DOUBLE PRECISION NOT NULL,
		receipt_code TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS transactions_user_created_idx ON transactions (user_id, created_at DESC);
`
