package models

import "time"

// Account is a provider account reachable with the configured credentials.
type Account struct {
	RemoteID    string `json:"remote_id"`
	DisplayName string `json:"display_name"`
}

// RemoteProperty is a provider-side analytics property.
type RemoteProperty struct {
	RemoteID        string     `json:"remote_id"`
	DisplayName     string     `json:"display_name"`
	ParentAccountID string     `json:"parent_account_id"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

// RemoteDataStream is a child stream of exactly one RemoteProperty.
type RemoteDataStream struct {
	RemoteID               string     `json:"remote_id"`
	ParentPropertyRemoteID string     `json:"parent_property_remote_id"`
	DisplayName            string     `json:"display_name"`
	Type                   StreamType `json:"type"`
	DefaultURI             *string    `json:"default_uri,omitempty"`
	MeasurementID          *string    `json:"measurement_id,omitempty"`
	CreatedAt              *time.Time `json:"created_at,omitempty"`
	UpdatedAt              *time.Time `json:"updated_at,omitempty"`
}
