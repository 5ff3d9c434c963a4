package outbox

// Schema is the DDL for the outbox database.
const Schema = `
CREATE TABLE IF NOT EXISTS pending_drafts (
    token           TEXT PRIMARY KEY,
    request_id      TEXT NOT NULL,
    to_addr         TEXT NOT NULL,
    cc              TEXT,
    subject         TEXT NOT NULL,
    body            TEXT NOT NULL,
    thread_id       TEXT,
    reply_to_id     TEXT,
    created_at      TEXT NOT NULL,
    sent_message_id TEXT,
    sent_at         TEXT
);

CREATE INDEX IF NOT EXISTS idx_pending_drafts_request ON pending_drafts(request_id);
CREATE INDEX IF NOT EXISTS idx_pending_drafts_created ON pending_drafts(created_at DESC);
`
