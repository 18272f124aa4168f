package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/storyweb/internal/model"
	"github.com/alfredjeanlab/storyweb/internal/store"
)

// elementColumns is the column list used for SELECT statements on the elements table.
const elementColumns = `id, project_id, name, category, description, created_at, updated_at`

// relationshipColumns is the column list used for SELECT statements on the relationships table.
const relationshipColumns = `id, project_id, name, kind, snapshot, created_at, updated_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// notFound translates sql.ErrNoRows into store.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func stampTimes(created, updated *time.Time) {
	now := time.Now().UTC()
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = *created
	}
}

func queryCreateElement(ctx context.Context, db executor, el *model.WorldElement) error {
	stampTimes(&el.CreatedAt, &el.UpdatedAt)
	_, err := db.ExecContext(ctx, `
		INSERT INTO elements (`+elementColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		el.ID,
		el.ProjectID,
		el.Name,
		string(el.Category),
		nullString(el.Description),
		el.CreatedAt,
		el.UpdatedAt,
	)
	return err
}

func queryGetElement(ctx context.Context, db executor, id string) (*model.WorldElement, error) {
	row := db.QueryRowContext(ctx, `SELECT `+elementColumns+` FROM elements WHERE id = $1`, id)
	el, err := scanElement(row)
	if err != nil {
		return nil, notFound(err)
	}
	return el, nil
}

func queryListElements(ctx context.Context, db executor, projectID string, categories []model.ElementCategory) ([]*model.WorldElement, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if len(categories) == 0 {
		rows, err = db.QueryContext(ctx, `
			SELECT `+elementColumns+` FROM elements
			WHERE project_id = $1
			ORDER BY created_at ASC, id ASC`, projectID)
	} else {
		cats := make([]string, len(categories))
		for i, c := range categories {
			cats[i] = string(c)
		}
		rows, err = db.QueryContext(ctx, `
			SELECT `+elementColumns+` FROM elements
			WHERE project_id = $1 AND category = ANY($2)
			ORDER BY created_at ASC, id ASC`, projectID, pq.Array(cats))
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanElements(rows)
}

func queryCreateDirectRelationship(ctx context.Context, db executor, rec *model.DirectRelationshipRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal direct relationship: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO direct_relationships (id, project_id, data, updated_at)
		VALUES ($1, $2, $3, $4)`,
		rec.ID, rec.ProjectID, data, rec.UpdatedAt,
	)
	return err
}

func queryListDirectRelationships(ctx context.Context, db executor, projectID string) ([]model.DirectRelationshipRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, project_id, data, updated_at
		FROM direct_relationships
		WHERE project_id = $1
		ORDER BY updated_at ASC, id ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDirectRelationships(rows)
}

func queryCreateRelationship(ctx context.Context, db executor, rel *model.Relationship) error {
	stampTimes(&rel.CreatedAt, &rel.UpdatedAt)
	snap, err := snapshotBytes(rel.Snapshot)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO relationships (`+relationshipColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rel.ID,
		rel.ProjectID,
		rel.Name,
		string(rel.Kind),
		snap,
		rel.CreatedAt,
		rel.UpdatedAt,
	)
	return err
}

func queryGetRelationship(ctx context.Context, db executor, id string) (*model.Relationship, error) {
	row := db.QueryRowContext(ctx, `SELECT `+relationshipColumns+` FROM relationships WHERE id = $1`, id)
	rel, err := scanRelationship(row)
	if err != nil {
		return nil, notFound(err)
	}
	return rel, nil
}

func queryListRelationships(ctx context.Context, db executor, projectID string) ([]*model.Relationship, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if projectID == "" {
		rows, err = db.QueryContext(ctx, `
			SELECT `+relationshipColumns+` FROM relationships
			ORDER BY project_id ASC, created_at ASC, id ASC`)
	} else {
		rows, err = db.QueryContext(ctx, `
			SELECT `+relationshipColumns+` FROM relationships
			WHERE project_id = $1
			ORDER BY created_at ASC, id ASC`, projectID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRelationships(rows)
}

// querySaveRelationship overwrites name, kind and snapshot. Last write wins.
func querySaveRelationship(ctx context.Context, db executor, rel *model.Relationship) error {
	snap, err := snapshotBytes(rel.Snapshot)
	if err != nil {
		return err
	}
	err = db.QueryRowContext(ctx, `
		UPDATE relationships
		SET name = $2, kind = $3, snapshot = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		rel.ID, rel.Name, string(rel.Kind), snap,
	).Scan(&rel.CreatedAt, &rel.UpdatedAt)
	return notFound(err)
}

func queryDeleteRelationship(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM relationships WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func queryRecordEvent(ctx context.Context, db executor, e *model.Event) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO events (topic, relationship_id, project_id, actor, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		e.Topic, e.RelationshipID, e.ProjectID, nullString(e.Actor), jsonbBytes(e.Payload),
	).Scan(&e.ID, &e.CreatedAt)
}

func queryGetEvents(ctx context.Context, db executor, relationshipID string) ([]*model.Event, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, topic, relationship_id, project_id, actor, payload, created_at
		FROM events
		WHERE relationship_id = $1
		ORDER BY created_at ASC, id ASC`,
		relationshipID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}
