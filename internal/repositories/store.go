package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/mkoziy/ga4mirror/internal/models"
)

// Store persists mirrored properties and websites keyed by remote id.
type Store struct {
	db *bun.DB
}

// NewStore wraps an opened database.
func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// FindPropertyByRemoteID returns models.ErrNotFound when no row matches.
func (s *Store) FindPropertyByRemoteID(ctx context.Context, remoteID string) (*models.Property, error) {
	p := new(models.Property)
	err := s.db.NewSelect().
		Model(p).
		Where("p.remote_id = ?", remoteID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// UpsertProperty inserts a new row or rewrites the mutable fields of an existing one.
// The returned row carries the local surrogate key.
func (s *Store) UpsertProperty(ctx context.Context, p *models.Property) (*models.Property, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("property %s: %w", p.RemoteID, err)
	}

	if p.ID != 0 {
		_, err := s.db.NewUpdate().
			Model(p).
			Column("display_name", "account_id", "remote_update_time", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return nil, fmt.Errorf("update property %s: %w", p.RemoteID, err)
		}
		return p, nil
	}

	_, err := s.db.NewInsert().
		Model(p).
		On("CONFLICT (remote_id) DO UPDATE").
		Set("display_name = EXCLUDED.display_name").
		Set("account_id = EXCLUDED.account_id").
		Set("remote_update_time = EXCLUDED.remote_update_time").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("insert property %s: %w", p.RemoteID, err)
	}
	return p, nil
}

// FindWebsiteByRemoteID returns models.ErrNotFound when no row matches.
func (s *Store) FindWebsiteByRemoteID(ctx context.Context, remoteID string) (*models.Website, error) {
	w := new(models.Website)
	err := s.db.NewSelect().
		Model(w).
		Where("w.remote_id = ?", remoteID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return w, nil
}

// UpsertWebsite inserts a new row or rewrites the mutable fields of an existing one.
func (s *Store) UpsertWebsite(ctx context.Context, w *models.Website) (*models.Website, error) {
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("website %s: %w", w.RemoteID, err)
	}

	if w.ID != 0 {
		_, err := s.db.NewUpdate().
			Model(w).
			Column("display_name", "default_uri", "measurement_id", "remote_update_time", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return nil, fmt.Errorf("update website %s: %w", w.RemoteID, err)
		}
		return w, nil
	}

	_, err := s.db.NewInsert().
		Model(w).
		On("CONFLICT (remote_id) DO UPDATE").
		Set("display_name = EXCLUDED.display_name").
		Set("default_uri = EXCLUDED.default_uri").
		Set("measurement_id = EXCLUDED.measurement_id").
		Set("remote_update_time = EXCLUDED.remote_update_time").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("insert website %s: %w", w.RemoteID, err)
	}
	return w, nil
}

// ListProperties returns every property with its websites, ordered by local id.
func (s *Store) ListProperties(ctx context.Context) ([]*models.Property, error) {
	var props []*models.Property
	err := s.db.NewSelect().
		Model(&props).
		Relation("Websites", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("w.id ASC")
		}).
		Order("p.id ASC").
		Scan(ctx)
	return props, err
}

// CountProperties returns the number of stored properties.
func (s *Store) CountProperties(ctx context.Context) (int, error) {
	return s.db.NewSelect().Model((*models.Property)(nil)).Count(ctx)
}

// CountWebsites returns the number of stored websites.
func (s *Store) CountWebsites(ctx context.Context) (int, error) {
	return s.db.NewSelect().Model((*models.Website)(nil)).Count(ctx)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	return err
}
