// Affinity - Bantulink Affinity Scoring and Digest Notification Engine
// Copyright 2026 Bantulink Lda
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bantulink/affinity

package sqlstore

// Schema is applied on open. Tag rows are one (owner, tag, axis) triple per
// tag; the axis strings below are the only ones ever written.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id       TEXT PRIMARY KEY,
    name     TEXT NOT NULL DEFAULT '',
    email    TEXT NOT NULL DEFAULT '',
    country  TEXT NOT NULL DEFAULT '',
    city     TEXT NOT NULL DEFAULT '',
    verified INTEGER NOT NULL DEFAULT 0,
    admin    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS tags (
    id   TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS user_tags (
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    tag_id  TEXT NOT NULL,
    axis    TEXT NOT NULL,
    source  TEXT NOT NULL DEFAULT 'interest',
    PRIMARY KEY (user_id, tag_id, axis, source)
);
CREATE INDEX IF NOT EXISTS idx_user_tags_user ON user_tags(user_id);

CREATE TABLE IF NOT EXISTS connections (
    user_a     TEXT NOT NULL,
    user_b     TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (user_a, user_b)
);
CREATE INDEX IF NOT EXISTS idx_connections_a ON connections(user_a);
CREATE INDEX IF NOT EXISTS idx_connections_b ON connections(user_b);

CREATE TABLE IF NOT EXISTS content_items (
    id          TEXT PRIMARY KEY,
    type        TEXT NOT NULL,
    owner_id    TEXT NOT NULL,
    owner_name  TEXT NOT NULL DEFAULT '',
    title       TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    country     TEXT NOT NULL DEFAULT '',
    city        TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_content_type_created ON content_items(type, created_at);
CREATE INDEX IF NOT EXISTS idx_content_owner ON content_items(owner_id);

CREATE TABLE IF NOT EXISTS content_tags (
    content_id TEXT NOT NULL REFERENCES content_items(id) ON DELETE CASCADE,
    tag_id     TEXT NOT NULL,
    axis       TEXT NOT NULL,
    PRIMARY KEY (content_id, tag_id, axis)
);
CREATE INDEX IF NOT EXISTS idx_content_tags_content ON content_tags(content_id);

CREATE TABLE IF NOT EXISTS user_settings (
    user_id       TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
    settings_json TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS applications (
    id           TEXT PRIMARY KEY,
    user_id      TEXT NOT NULL,
    content_id   TEXT NOT NULL REFERENCES content_items(id) ON DELETE CASCADE,
    created_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_applications_user ON applications(user_id);
`

// Tag axes as stored in user_tags.axis and content_tags.axis.
const (
	axisCategory       = "category"
	axisSubcategory    = "subcategory"
	axisSubsubCategory = "subsubcategory"
	axisGoal           = "goal"
	axisIdentity       = "identity"

	axisIndustryCategory       = "industry_category"
	axisIndustrySubcategory    = "industry_subcategory"
	axisIndustrySubsubCategory = "industry_subsubcategory"
)

// Tag sources as stored in user_tags.source.
const (
	sourceInterest  = "interest"
	sourceAttribute = "attribute"
)
