// Package store is the administrative store behind the dashboard: message
// templates, business knowledge for the AI preamble, and saved contact lists.
// Backed by a single SQLite file.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/autommensor/wabot/pkg/campaign"
	"github.com/autommensor/wabot/pkg/logger"
	"github.com/autommensor/wabot/pkg/respond"
)

// ErrNotFound is returned for lookups of missing rows.
var ErrNotFound = errors.New("not found")

// Template is a stored message template.
type Template struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Body      string    `json:"body"`
	MediaURL  string    `json:"media_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ContactList is a named, ordered contact list saved from a CSV upload.
type ContactList struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Contacts  []campaign.Contact `json:"contacts"`
	CreatedAt time.Time          `json:"created_at"`
}

// Store wraps the SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the database at path and bootstraps the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	logger.InfoCF("store", "Store opened", map[string]interface{}{"path": path})
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS templates (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	body       TEXT NOT NULL,
	media_url  TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS business_info (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	about         TEXT NOT NULL DEFAULT '',
	products      TEXT NOT NULL DEFAULT '',
	faq           TEXT NOT NULL DEFAULT '',
	refund_policy TEXT NOT NULL DEFAULT '',
	contact       TEXT NOT NULL DEFAULT '',
	updated_at    TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS contact_lists (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- Templates ---

// CreateTemplate inserts a template and returns it with id and timestamps set.
func (s *Store) CreateTemplate(ctx context.Context, name, body, mediaURL string) (Template, error) {
	now := time.Now().UTC()
	t := Template{
		ID:        uuid.NewString(),
		Name:      name,
		Body:      body,
		MediaURL:  mediaURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO templates (id, name, body, media_url, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Body, t.MediaURL, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return Template{}, fmt.Errorf("insert template: %w", err)
	}
	return t, nil
}

// UpdateTemplate replaces a template's content.
func (s *Store) UpdateTemplate(ctx context.Context, id, name, body, mediaURL string) (Template, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE templates SET name = ?, body = ?, media_url = ?, updated_at = ? WHERE id = ?`,
		name, body, mediaURL, now, id)
	if err != nil {
		return Template{}, fmt.Errorf("update template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Template{}, ErrNotFound
	}
	return s.Template(ctx, id)
}

// DeleteTemplate removes a template.
func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Template fetches one template by id.
func (s *Store) Template(ctx context.Context, id string) (Template, error) {
	var t Template
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, body, media_url, created_at, updated_at FROM templates WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.Body, &t.MediaURL, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Template{}, ErrNotFound
	}
	if err != nil {
		return Template{}, fmt.Errorf("query template: %w", err)
	}
	return t, nil
}

// Templates returns all templates, newest first.
func (s *Store) Templates(ctx context.Context) ([]Template, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, body, media_url, created_at, updated_at FROM templates ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	var out []Template
	for rows.Next() {
		var t Template
		if err := rows.Scan(&t.ID, &t.Name, &t.Body, &t.MediaURL, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// --- Business info ---

// BusinessContext returns the stored knowledge base; an empty one if never saved.
// Satisfies respond.BusinessSource.
func (s *Store) BusinessContext(ctx context.Context) (respond.BusinessInfo, error) {
	var info respond.BusinessInfo
	err := s.db.QueryRowContext(ctx,
		`SELECT about, products, faq, refund_policy, contact FROM business_info WHERE id = 1`).
		Scan(&info.About, &info.Products, &info.FAQ, &info.RefundPolicy, &info.Contact)
	if errors.Is(err, sql.ErrNoRows) {
		return respond.BusinessInfo{}, nil
	}
	if err != nil {
		return respond.BusinessInfo{}, fmt.Errorf("query business info: %w", err)
	}
	return info, nil
}

// SaveBusinessContext upserts the single knowledge-base row.
func (s *Store) SaveBusinessContext(ctx context.Context, info respond.BusinessInfo) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO business_info (id, about, products, faq, refund_policy, contact, updated_at)
VALUES (1, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	about = excluded.about,
	products = excluded.products,
	faq = excluded.faq,
	refund_policy = excluded.refund_policy,
	contact = excluded.contact,
	updated_at = excluded.updated_at`,
		info.About, info.Products, info.FAQ, info.RefundPolicy, info.Contact, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save business info: %w", err)
	}
	return nil
}

// --- Contact lists ---

// SaveContactList stores a named contact list and returns it with an id.
func (s *Store) SaveContactList(ctx context.Context, name string, contacts []campaign.Contact) (ContactList, error) {
	data, err := json.Marshal(contacts)
	if err != nil {
		return ContactList{}, fmt.Errorf("encode contacts: %w", err)
	}
	list := ContactList{
		ID:        uuid.NewString(),
		Name:      name,
		Contacts:  contacts,
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO contact_lists (id, name, data, created_at) VALUES (?, ?, ?, ?)`,
		list.ID, list.Name, string(data), list.CreatedAt)
	if err != nil {
		return ContactList{}, fmt.Errorf("insert contact list: %w", err)
	}
	return list, nil
}

// ContactList fetches one saved list by id.
func (s *Store) ContactList(ctx context.Context, id string) (ContactList, error) {
	var list ContactList
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, data, created_at FROM contact_lists WHERE id = ?`, id).
		Scan(&list.ID, &list.Name, &data, &list.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ContactList{}, ErrNotFound
	}
	if err != nil {
		return ContactList{}, fmt.Errorf("query contact list: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &list.Contacts); err != nil {
		return ContactList{}, fmt.Errorf("decode contacts: %w", err)
	}
	return list, nil
}

// ContactLists returns all saved lists without their contact payloads.
func (s *Store) ContactLists(ctx context.Context) ([]ContactList, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM contact_lists ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query contact lists: %w", err)
	}
	defer rows.Close()

	var out []ContactList
	for rows.Next() {
		var list ContactList
		if err := rows.Scan(&list.ID, &list.Name, &list.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan contact list: %w", err)
		}
		out = append(out, list)
	}
	return out, rows.Err()
}
