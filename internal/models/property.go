package models

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

// Property is the local mirror of a RemoteProperty.
type Property struct {
	bun.BaseModel `bun:"table:properties,alias:p"`

	ID               int64      `bun:"id,pk,autoincrement" json:"id"`
	RemoteID         string     `bun:"remote_id,unique,notnull" json:"remote_id"`
	DisplayName      string     `bun:"display_name,notnull" json:"display_name"`
	AccountID        string     `bun:"account_id,notnull" json:"account_id"`
	RemoteCreateTime *time.Time `bun:"remote_create_time" json:"remote_create_time,omitempty"`
	RemoteUpdateTime *time.Time `bun:"remote_update_time" json:"remote_update_time,omitempty"`
	CreatedAt        time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt        time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`

	Websites []*Website `bun:"rel:has-many,join:id=property_id" json:"websites,omitempty"`
}

var _ bun.BeforeAppendModelHook = (*Property)(nil)

// BeforeAppendModel stamps timestamps on inserts and updates.
func (p *Property) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = now
	case *bun.UpdateQuery:
		p.UpdatedAt = now
	}
	return nil
}

// NewPropertyFromRemote builds a row for a property seen for the first time.
func NewPropertyFromRemote(rp RemoteProperty) *Property {
	return &Property{
		RemoteID:         rp.RemoteID,
		DisplayName:      rp.DisplayName,
		AccountID:        ShortID(rp.ParentAccountID),
		RemoteCreateTime: rp.CreatedAt,
		RemoteUpdateTime: rp.UpdatedAt,
	}
}

// ApplyRemote overwrites the mutable fields from the provider copy and
// reports whether any of them changed. The remote id and the local surrogate
// key never change.
func (p *Property) ApplyRemote(rp RemoteProperty) bool {
	changed := false
	if p.DisplayName != rp.DisplayName {
		p.DisplayName = rp.DisplayName
		changed = true
	}
	if account := ShortID(rp.ParentAccountID); account != "" && p.AccountID != account {
		p.AccountID = account
		changed = true
	}
	if !sameTime(p.RemoteUpdateTime, rp.UpdatedAt) && rp.UpdatedAt != nil {
		p.RemoteUpdateTime = rp.UpdatedAt
		changed = true
	}
	return changed
}

// Validate checks that required fields are present.
func (p *Property) Validate() error {
	if p.RemoteID == "" {
		return errors.New("remote id is required")
	}
	if p.DisplayName == "" {
		return errors.New("display name is required")
	}
	return nil
}
