package pg

import (
	"context"
	"database/sql"
	"errors"

	"affiliateprograms.wiki/internal/entity"
)

// EntityStore implements entity.Store on the shared handle. All kinds live
// in one table keyed by (kind, id); the public directory tables are owned
// by the out-of-scope importers.
type EntityStore struct {
	s *Store
}

var _ entity.Store = (*EntityStore)(nil)

func (s *Store) Entities() *EntityStore { return &EntityStore{s: s} }

func (e *EntityStore) Get(ctx context.Context, kind entity.Kind, id int64) (entity.Record, error) {
	var (
		rec       entity.Record
		extracted []byte
	)
	err := e.s.db.QueryRowContext(ctx, `
		select kind, id, name, extracted, updated_at
		from entities where kind=$1 and id=$2
	`, string(kind), id).Scan(&rec.Kind, &rec.ID, &rec.Name, &extracted, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Record{}, entity.ErrNotFound
	}
	if err != nil {
		return entity.Record{}, err
	}
	if err := fromJSON(extracted, &rec.Extracted); err != nil {
		return entity.Record{}, err
	}
	return rec, nil
}

func (e *EntityStore) UpdateExtracted(ctx context.Context, kind entity.Kind, id int64, extracted map[string]any) error {
	data, err := toJSON(extracted)
	if err != nil {
		return err
	}
	res, err := e.s.db.ExecContext(ctx, `
		update entities set extracted=$3, updated_at=now()
		where kind=$1 and id=$2
	`, string(kind), id, data)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return entity.ErrNotFound
	}
	return nil
}
