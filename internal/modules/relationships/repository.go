package relationships

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Repository persists detected relationships in fund_relationships.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new relationship repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "relationships").Logger(),
	}
}

// Get returns the relationship of a fund, or nil when none is stored.
func (r *Repository) Get(subCode string) (*Relationship, error) {
	var rel Relationship
	var relType string
	var updatedAt int64

	err := r.db.QueryRow(`
		SELECT sub_code, parent_code, parent_name, relation_type, ratio, updated_at
		FROM fund_relationships
		WHERE sub_code = ?
	`, subCode).Scan(&rel.SubCode, &rel.ParentCode, &rel.ParentName, &relType, &rel.Ratio, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get relationship for %s: %w", subCode, err)
	}

	rel.Type = RelationType(relType)
	rel.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &rel, nil
}

// Save upserts a relationship. Last write wins.
func (r *Repository) Save(rel Relationship) error {
	_, err := r.db.Exec(`
		INSERT INTO fund_relationships (sub_code, parent_code, parent_name, relation_type, ratio, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(sub_code) DO UPDATE SET
			parent_code = excluded.parent_code,
			parent_name = excluded.parent_name,
			relation_type = excluded.relation_type,
			ratio = excluded.ratio,
			updated_at = excluded.updated_at
	`, rel.SubCode, rel.ParentCode, rel.ParentName, string(rel.Type), rel.Ratio, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save relationship for %s: %w", rel.SubCode, err)
	}

	r.log.Info().
		Str("sub_code", rel.SubCode).
		Str("parent_code", rel.ParentCode).
		Str("type", string(rel.Type)).
		Float64("ratio", rel.Ratio).
		Msg("Relationship saved")
	return nil
}

// Delete removes a stored relationship.
func (r *Repository) Delete(subCode string) error {
	if _, err := r.db.Exec(`DELETE FROM fund_relationships WHERE sub_code = ?`, subCode); err != nil {
		return fmt.Errorf("failed to delete relationship for %s: %w", subCode, err)
	}
	return nil
}
