package models

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

// Website is the local mirror of a RemoteDataStream. It references its
// property by local surrogate key.
type Website struct {
	bun.BaseModel `bun:"table:websites,alias:w"`

	ID               int64      `bun:"id,pk,autoincrement" json:"id"`
	RemoteID         string     `bun:"remote_id,unique,notnull" json:"remote_id"`
	PropertyID       int64      `bun:"property_id,notnull" json:"property_id"`
	StreamType       StreamType `bun:"stream_type,notnull" json:"stream_type"`
	DisplayName      string     `bun:"display_name,notnull,default:''" json:"display_name"`
	DefaultURI       *string    `bun:"default_uri" json:"default_uri,omitempty"`
	MeasurementID    *string    `bun:"measurement_id" json:"measurement_id,omitempty"`
	RemoteCreateTime *time.Time `bun:"remote_create_time" json:"remote_create_time,omitempty"`
	RemoteUpdateTime *time.Time `bun:"remote_update_time" json:"remote_update_time,omitempty"`
	CreatedAt        time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt        time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`

	Property *Property `bun:"rel:belongs-to,join:property_id=id,on_delete:CASCADE" json:"-"`
}

var _ bun.BeforeAppendModelHook = (*Website)(nil)

// BeforeAppendModel stamps timestamps on inserts and updates.
func (w *Website) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if w.CreatedAt.IsZero() {
			w.CreatedAt = now
		}
		w.UpdatedAt = now
	case *bun.UpdateQuery:
		w.UpdatedAt = now
	}
	return nil
}

// NewWebsiteFromRemote builds a row for a stream owned by the property with the given local id.
func NewWebsiteFromRemote(propertyID int64, ds RemoteDataStream) *Website {
	streamType := ds.Type
	if streamType == "" {
		streamType = StreamUnknown
	}
	return &Website{
		RemoteID:         ds.RemoteID,
		PropertyID:       propertyID,
		StreamType:       streamType,
		DisplayName:      ds.DisplayName,
		DefaultURI:       ds.DefaultURI,
		MeasurementID:    ds.MeasurementID,
		RemoteCreateTime: ds.CreatedAt,
		RemoteUpdateTime: ds.UpdatedAt,
	}
}

// ApplyRemote overwrites the mutable fields from the provider copy and
// reports whether any of them changed.
func (w *Website) ApplyRemote(ds RemoteDataStream) bool {
	changed := false
	if w.DisplayName != ds.DisplayName {
		w.DisplayName = ds.DisplayName
		changed = true
	}
	if !sameString(w.DefaultURI, ds.DefaultURI) {
		w.DefaultURI = ds.DefaultURI
		changed = true
	}
	if !sameString(w.MeasurementID, ds.MeasurementID) {
		w.MeasurementID = ds.MeasurementID
		changed = true
	}
	if !sameTime(w.RemoteUpdateTime, ds.UpdatedAt) && ds.UpdatedAt != nil {
		w.RemoteUpdateTime = ds.UpdatedAt
		changed = true
	}
	return changed
}

// URL returns the default URI or an empty string for app streams.
func (w *Website) URL() string {
	if w.DefaultURI == nil {
		return ""
	}
	return *w.DefaultURI
}

// Validate checks that required fields are present.
func (w *Website) Validate() error {
	if w.RemoteID == "" {
		return errors.New("remote id is required")
	}
	if w.PropertyID <= 0 {
		return errors.New("property id must reference a stored property")
	}
	return nil
}
