package sqlite

const schemaSQL = `
CREATE TABLE IF NOT EXISTS bills (
    id                 TEXT PRIMARY KEY,
    title              TEXT NOT NULL,
    amount             INTEGER NOT NULL,
    frequency          TEXT NOT NULL,
    due_date           TEXT NOT NULL,
    status             TEXT NOT NULL,
    auto_pay           INTEGER NOT NULL DEFAULT 0,
    category_id        TEXT,
    archived           INTEGER NOT NULL DEFAULT 0,
    last_processed_at  TEXT,
    version            INTEGER NOT NULL DEFAULT 1,
    created_at         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
    id          TEXT PRIMARY KEY,
    bill_id     TEXT NOT NULL REFERENCES bills(id) ON DELETE CASCADE,
    amount      INTEGER NOT NULL,
    paid_at     TEXT NOT NULL,
    notes       TEXT,
    historical  INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS categories (
    id    TEXT PRIMARY KEY,
    name  TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS tags (
    id    TEXT PRIMARY KEY,
    name  TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS bill_tags (
    bill_id  TEXT NOT NULL REFERENCES bills(id) ON DELETE CASCADE,
    tag_id   TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
    PRIMARY KEY (bill_id, tag_id)
);

CREATE TABLE IF NOT EXISTS scheduler_watermark (
    id           INTEGER PRIMARY KEY CHECK (id = 1),
    last_run_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bills_due ON bills(due_date);
CREATE INDEX IF NOT EXISTS idx_bills_status ON bills(status);
CREATE INDEX IF NOT EXISTS idx_transactions_bill ON transactions(bill_id);
`
