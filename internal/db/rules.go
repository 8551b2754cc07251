package db

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/gamedesk/backend/internal/models"
)

func (s *Store) ListRules(ctx context.Context, enabledOnly bool) ([]models.Rule, error) {
	query := `
		SELECT id, name, enabled, priority_weight, conditions, created_at, deleted_at
		FROM urgency_rules WHERE deleted_at IS NULL`
	if enabledOnly {
		query += ` AND enabled = TRUE`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetRule(ctx context.Context, id string) (models.Rule, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, name, enabled, priority_weight, conditions, created_at, deleted_at
		FROM urgency_rules WHERE id = $1 AND deleted_at IS NULL
	`, id)
	return scanRule(row)
}

func (s *Store) CreateRule(ctx context.Context, r models.Rule) error {
	conditions, err := json.Marshal(r.Conditions)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, `
		INSERT INTO urgency_rules (id, name, enabled, priority_weight, conditions, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.ID, r.Name, r.Enabled, r.PriorityWeight, conditions, r.CreatedAt)
	return err
}

func (s *Store) UpdateRule(ctx context.Context, r models.Rule) error {
	conditions, err := json.Marshal(r.Conditions)
	if err != nil {
		return err
	}
	tag, err := s.Pool.Exec(ctx, `
		UPDATE urgency_rules SET name = $2, enabled = $3, priority_weight = $4, conditions = $5
		WHERE id = $1 AND deleted_at IS NULL
	`, r.ID, r.Name, r.Enabled, r.PriorityWeight, conditions)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SoftDeleteRule(ctx context.Context, id string) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE urgency_rules SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRule(row pgx.Row) (models.Rule, error) {
	var (
		r          models.Rule
		conditions []byte
	)
	err := row.Scan(&r.ID, &r.Name, &r.Enabled, &r.PriorityWeight, &conditions, &r.CreatedAt, &r.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Rule{}, ErrNotFound
	}
	if err != nil {
		return models.Rule{}, err
	}
	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &r.Conditions); err != nil {
			return models.Rule{}, err
		}
	}
	return r, nil
}

func (s *Store) ListIssueTypes(ctx context.Context, enabledOnly bool) ([]models.IssueType, error) {
	query := `
		SELECT id, name, description, enabled, priority_weight, sort_order, created_at, deleted_at
		FROM issue_types WHERE deleted_at IS NULL`
	if enabledOnly {
		query += ` AND enabled = TRUE`
	}
	query += ` ORDER BY sort_order ASC`

	rows, err := s.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.IssueType
	for rows.Next() {
		var it models.IssueType
		if err := rows.Scan(&it.ID, &it.Name, &it.Description, &it.Enabled, &it.PriorityWeight,
			&it.SortOrder, &it.CreatedAt, &it.DeletedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// IssueTypeWeights resolves weights for the given ids; unknown or disabled
// ids are dropped.
func (s *Store) IssueTypeWeights(ctx context.Context, ids []string) ([]int, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT priority_weight FROM issue_types
		WHERE id = ANY($1) AND enabled = TRUE AND deleted_at IS NULL
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var w int
		if err := rows.Scan(&w); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Store) CreateIssueType(ctx context.Context, it models.IssueType) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO issue_types (id, name, description, enabled, priority_weight, sort_order, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, it.ID, it.Name, it.Description, it.Enabled, it.PriorityWeight, it.SortOrder, it.CreatedAt)
	return err
}

func (s *Store) UpdateIssueType(ctx context.Context, it models.IssueType) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE issue_types SET name = $2, description = $3, enabled = $4, priority_weight = $5, sort_order = $6
		WHERE id = $1 AND deleted_at IS NULL
	`, it.ID, it.Name, it.Description, it.Enabled, it.PriorityWeight, it.SortOrder)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SoftDeleteIssueType(ctx context.Context, id string) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE issue_types SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
