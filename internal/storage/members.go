package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"rejestr/internal/core"
)

// CreateMember registers a new member identity. Names are unique.
func (r *SQLiteRepository) CreateMember(ctx context.Context, name string) (core.Member, error) {
	name = strings.TrimSpace(name)
	if err := core.ValidateName(name); err != nil {
		return core.Member{}, err
	}
	m := core.Member{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: r.now(),
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO members (id, name, created_at) VALUES (?, ?, ?)",
		m.ID, m.Name, m.CreatedAt.Unix(),
	)
	if err != nil {
		return core.Member{}, fmt.Errorf("insert member: %w", err)
	}
	return m, nil
}

// GetMember looks a member up by id.
func (r *SQLiteRepository) GetMember(ctx context.Context, id string) (core.Member, error) {
	var m core.Member
	var createdAt int64
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM members WHERE id = ?", id,
	).Scan(&m.ID, &m.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Member{}, core.ErrMemberNotFound
	}
	if err != nil {
		return core.Member{}, fmt.Errorf("get member: %w", err)
	}
	m.CreatedAt = time.Unix(createdAt, 0)
	return m, nil
}

// ListMembers returns all known members ordered by name.
func (r *SQLiteRepository) ListMembers(ctx context.Context) ([]core.Member, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, created_at FROM members ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []core.Member
	for rows.Next() {
		var m core.Member
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.CreatedAt = time.Unix(createdAt, 0)
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return members, nil
}
