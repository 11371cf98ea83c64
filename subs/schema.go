package subs

// Schema creates the subscriptions table. The primary key mirrors the
// userID_courseID document key used by the surrounding application, and the
// UNIQUE constraint is what makes Upsert replace rather than duplicate.
const Schema = `
CREATE TABLE IF NOT EXISTS subscriptions (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	course_id   TEXT NOT NULL,
	email       TEXT NOT NULL,
	course_name TEXT NOT NULL,
	course_num  TEXT NOT NULL,
	created_at  INTEGER NOT NULL,
	UNIQUE(user_id, course_id)
);
`
