package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const performerColumns = `
	PerformerID,
	PerformerName,
	COALESCE(InstrumentOrRole, '') AS InstrumentOrRole`

// PerformerByName returns the performer with exactly this name, or nil
func (q *Queries) PerformerByName(ctx context.Context, name string) (*Performer, error) {
	return q.getPerformer(ctx, "SELECT "+performerColumns+" FROM DimPerformer WHERE PerformerName = ?", name)
}

// PerformerByID returns the performer with this id, or nil
func (q *Queries) PerformerByID(ctx context.Context, id string) (*Performer, error) {
	return q.getPerformer(ctx, "SELECT "+performerColumns+" FROM DimPerformer WHERE PerformerID = ?", id)
}

func (q *Queries) getPerformer(ctx context.Context, query string, arg string) (*Performer, error) {
	var p Performer
	err := sqlx.GetContext(ctx, q.ext, &p, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get performer: %w", err)
	}
	return &p, nil
}

// UpsertPerformer inserts a performer or fills in its role.
// An existing role is kept when the new one is empty.
func (q *Queries) UpsertPerformer(ctx context.Context, p *Performer) error {
	_, err := sqlx.NamedExecContext(ctx, q.ext, `
		INSERT INTO DimPerformer (PerformerID, PerformerName, InstrumentOrRole)
		VALUES (:PerformerID, :PerformerName, NULLIF(:InstrumentOrRole, ''))
		ON CONFLICT(PerformerID) DO UPDATE SET
			InstrumentOrRole = COALESCE(excluded.InstrumentOrRole, DimPerformer.InstrumentOrRole)
	`, p)
	if err != nil {
		return fmt.Errorf("failed to upsert performer %s: %w", p.Name, err)
	}
	return nil
}
