package postgres

// Schema holds the DDL for the access-code store. Applied by cmd/e2e-setup
// and by the integration test harness; production rollout runs the same
// statements through whatever migration channel operates the database.
const Schema = `
CREATE TABLE IF NOT EXISTS access_codes (
    id                        UUID PRIMARY KEY,
    code                      VARCHAR(32) NOT NULL UNIQUE,
    partner_id                TEXT NOT NULL,
    module_id                 TEXT,
    name                      TEXT NOT NULL,
    description               TEXT NOT NULL DEFAULT '',
    created_at                TIMESTAMPTZ NOT NULL,
    expires_at                TIMESTAMPTZ NOT NULL,
    activity_duration_minutes INT NOT NULL CHECK (activity_duration_minutes >= 1),
    max_uses                  INT NOT NULL CHECK (max_uses >= 1),
    current_uses              INT NOT NULL DEFAULT 0 CHECK (current_uses >= 0 AND current_uses <= max_uses),
    is_active                 BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE INDEX IF NOT EXISTS idx_access_codes_partner ON access_codes (partner_id);

CREATE TABLE IF NOT EXISTS usage_records (
    id                        CHAR(26) PRIMARY KEY,
    access_code_id            UUID NOT NULL REFERENCES access_codes (id) ON DELETE CASCADE,
    redeemer_identity         TEXT NOT NULL,
    used_at                   TIMESTAMPTZ NOT NULL,
    session_started_at        TIMESTAMPTZ NOT NULL,
    session_ended_at          TIMESTAMPTZ,
    session_duration_minutes  INT CHECK (session_duration_minutes >= 0)
);

CREATE INDEX IF NOT EXISTS idx_usage_records_code ON usage_records (access_code_id);
`
