package models

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by the local store when no row matches a natural key.
	ErrNotFound = errors.New("not found")
	// ErrRemoteNotFound is returned by the gateway when the provider reports a missing resource.
	ErrRemoteNotFound = errors.New("remote resource not found")
	// ErrRemoteUnavailable marks transport, credential and exhausted-retry failures of the gateway.
	ErrRemoteUnavailable = errors.New("remote api unavailable")
)

// StreamType is the provider-side kind of a data stream.
type StreamType string

const (
	StreamWeb     StreamType = "WEB_DATA_STREAM"
	StreamAndroid StreamType = "ANDROID_APP_DATA_STREAM"
	StreamIOS     StreamType = "IOS_APP_DATA_STREAM"
	StreamUnknown StreamType = "DATA_STREAM_TYPE_UNSPECIFIED"
)

// IsWeb reports whether the stream is a web stream carrying a default URI.
func (t StreamType) IsWeb() bool {
	return t == StreamWeb
}

const propertyPrefix = "properties/"

// PropertyResource normalizes a bare numeric id into the provider resource path.
func PropertyResource(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || strings.HasPrefix(id, propertyPrefix) {
		return id
	}
	return propertyPrefix + id
}

// ShortID returns the last path segment of a resource path.
func ShortID(resource string) string {
	if i := strings.LastIndex(resource, "/"); i >= 0 {
		return resource[i+1:]
	}
	return resource
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
