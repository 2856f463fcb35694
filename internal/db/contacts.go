package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/docvault/internal/apperr"
	"github.com/starford/docvault/internal/models"
)

// CreateContact validates c, assigns an id and stores it.
func (db *DB) CreateContact(ctx context.Context, c models.Contact) (*models.Contact, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Role = strings.TrimSpace(c.Role)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.ID = uuid.NewString()
	c.Emails = nonNil(c.Emails)
	c.Phones = nonNil(c.Phones)

	emails, _ := json.Marshal(c.Emails)
	phones, _ := json.Marshal(c.Phones)
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO contacts (id, name, first_name, last_name, role, organization, emails, phones)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Name, c.FirstName, c.LastName, c.Role, c.Organization, string(emails), string(phones))
	if err != nil {
		return nil, fmt.Errorf("db: insert contact: %w", err)
	}
	return &c, nil
}

// GetContact returns one contact or apperr.ErrNotFound.
func (db *DB) GetContact(ctx context.Context, id string) (*models.Contact, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, name, first_name, last_name, role, organization, emails, phones
		FROM contacts WHERE id = ?
	`, id)
	c, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db: get contact: %w", err)
	}
	return c, nil
}

// ListContacts returns every contact in insertion order.
func (db *DB) ListContacts(ctx context.Context) ([]models.Contact, error) {
	return db.queryContacts(ctx, `
		SELECT id, name, first_name, last_name, role, organization, emails, phones
		FROM contacts ORDER BY created_at, rowid
	`)
}

// SearchContacts matches query against name, role and organization.
func (db *DB) SearchContacts(ctx context.Context, query string, limit int) ([]models.Contact, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	return db.queryContacts(ctx, `
		SELECT id, name, first_name, last_name, role, organization, emails, phones
		FROM contacts
		WHERE name LIKE ? OR role LIKE ? OR organization LIKE ?
		ORDER BY name
		LIMIT ?
	`, like, like, like, limit)
}

func (db *DB) queryContacts(ctx context.Context, q string, args ...any) ([]models.Contact, error) {
	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("db: query contacts: %w", err)
	}
	defer rows.Close()

	out := []models.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContact(s scanner) (*models.Contact, error) {
	var (
		c              models.Contact
		emails, phones string
	)
	if err := s.Scan(&c.ID, &c.Name, &c.FirstName, &c.LastName, &c.Role, &c.Organization, &emails, &phones); err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(emails), &c.Emails)
	_ = json.Unmarshal([]byte(phones), &c.Phones)
	c.Emails = nonNil(c.Emails)
	c.Phones = nonNil(c.Phones)
	return &c, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
