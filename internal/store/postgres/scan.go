package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alfredjeanlab/storyweb/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanElement scans a single row into a model.WorldElement.
// The row must contain columns in the order defined by elementColumns.
func scanElement(row scannable) (*model.WorldElement, error) {
	var el model.WorldElement
	var description sql.NullString
	err := row.Scan(
		&el.ID,
		&el.ProjectID,
		&el.Name,
		&el.Category,
		&description,
		&el.CreatedAt,
		&el.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	el.Description = description.String
	return &el, nil
}

func scanElements(rows *sql.Rows) ([]*model.WorldElement, error) {
	var out []*model.WorldElement
	for rows.Next() {
		el, err := scanElement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, el)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// scanRelationship scans a single row into a model.Relationship.
// The row must contain columns in the order defined by relationshipColumns.
func scanRelationship(row scannable) (*model.Relationship, error) {
	var r model.Relationship
	var snapshot []byte
	err := row.Scan(
		&r.ID,
		&r.ProjectID,
		&r.Name,
		&r.Kind,
		&snapshot,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &r.Snapshot); err != nil {
			return nil, fmt.Errorf("decode snapshot of %s: %w", r.ID, err)
		}
	}
	r.Snapshot = r.Snapshot.Clone()
	return &r, nil
}

func scanRelationships(rows *sql.Rows) ([]*model.Relationship, error) {
	var out []*model.Relationship
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// scanDirectRelationship decodes the stored JSON with every historical alias,
// then lets the indexed columns win for id, project and timestamp.
func scanDirectRelationship(row scannable) (model.DirectRelationshipRecord, error) {
	var (
		rec       model.DirectRelationshipRecord
		id        string
		projectID string
		data      []byte
		updatedAt time.Time
	)
	if err := row.Scan(&id, &projectID, &data, &updatedAt); err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("decode direct relationship %s: %w", id, err)
	}
	rec.ID = id
	rec.ProjectID = projectID
	rec.UpdatedAt = updatedAt
	return rec, nil
}

func scanDirectRelationships(rows *sql.Rows) ([]model.DirectRelationshipRecord, error) {
	var out []model.DirectRelationshipRecord
	for rows.Next() {
		rec, err := scanDirectRelationship(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// scanEvent scans a single row into a model.Event.
func scanEvent(row scannable) (*model.Event, error) {
	var e model.Event
	var (
		actor   sql.NullString
		payload []byte
	)
	err := row.Scan(&e.ID, &e.Topic, &e.RelationshipID, &e.ProjectID, &actor, &payload, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Actor = actor.String
	if len(payload) > 0 {
		e.Payload = json.RawMessage(payload)
	}
	return &e, nil
}

// scanEvents scans multiple rows into a slice of model.Event pointers.
func scanEvents(rows *sql.Rows) ([]*model.Event, error) {
	var events []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// jsonbBytes converts json.RawMessage to a []byte suitable for JSONB columns.
func jsonbBytes(m json.RawMessage) []byte {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}

// snapshotBytes encodes a snapshot for the JSONB column. Empty lists are
// written as [] so readers never see null.
func snapshotBytes(s model.DiagramSnapshot) ([]byte, error) {
	data, err := json.Marshal(s.Clone())
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}
