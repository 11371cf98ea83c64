// Package subs is the durable registry of "notify me when a seat opens"
// requests.
package subs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Subscription is one notification request. Identity is (UserID, CourseID);
// a second subscribe for the same pair replaces the first. CourseName holds
// the subject code and CourseNum the course number as shown in the
// timetable — together they locate the course in a scrape.
type Subscription struct {
	ID         string `json:"id"`
	UserID     string `json:"userId"`
	CourseID   string `json:"courseId"`
	Email      string `json:"email"`
	CourseName string `json:"courseName"`
	CourseNum  string `json:"courseNum"`
	CreatedAt  int64  `json:"createdAt"`
}

// Key returns the canonical registry key for a (user, course) pair.
func Key(userID, courseID string) string {
	return userID + "_" + courseID
}

// Store wraps the subscriptions database.
type Store struct {
	DB *sql.DB
}

// NewStore creates a Store from an already-opened database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

// Upsert creates or replaces the subscription for (UserID, CourseID).
// Repeated calls keep exactly one row, reflecting the latest email and
// course metadata. CreatedAt is preserved across replacements so expiry
// policies measure from the original request.
func (s *Store) Upsert(ctx context.Context, sub *Subscription) error {
	if sub.UserID == "" || sub.CourseID == "" {
		return fmt.Errorf("subs: user and course are required")
	}
	sub.ID = Key(sub.UserID, sub.CourseID)
	if sub.CreatedAt == 0 {
		sub.CreatedAt = time.Now().UnixMilli()
	}

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO subscriptions (id, user_id, course_id, email, course_name, course_num, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, course_id) DO UPDATE SET
		   email       = excluded.email,
		   course_name = excluded.course_name,
		   course_num  = excluded.course_num`,
		sub.ID, sub.UserID, sub.CourseID, sub.Email, sub.CourseName, sub.CourseNum, sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("subs: upsert %s: %w", sub.ID, err)
	}
	return nil
}

// Get retrieves a subscription by ID, nil if absent.
func (s *Store) Get(ctx context.Context, id string) (*Subscription, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, user_id, course_id, email, course_name, course_num, created_at
		 FROM subscriptions WHERE id = ?`, id)

	var sub Subscription
	err := row.Scan(&sub.ID, &sub.UserID, &sub.CourseID, &sub.Email,
		&sub.CourseName, &sub.CourseNum, &sub.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("subs: get %s: %w", id, err)
	}
	return &sub, nil
}

// ListAll returns every active subscription, oldest first, for watcher
// iteration.
func (s *Store) ListAll(ctx context.Context) ([]*Subscription, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, user_id, course_id, email, course_name, course_num, created_at
		 FROM subscriptions ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("subs: list: %w", err)
	}
	defer rows.Close()

	var out []*Subscription
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.CourseID, &sub.Email,
			&sub.CourseName, &sub.CourseNum, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("subs: scan: %w", err)
		}
		out = append(out, &sub)
	}
	return out, rows.Err()
}

// Delete removes one subscription. Deleting an absent ID is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("subs: delete %s: %w", id, err)
	}
	return nil
}

// Count returns the number of active subscriptions.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscriptions`).Scan(&n)
	return n, err
}
