package models

import (
	"encoding/base64"
	"fmt"
	"time"
)

// Photo is a captured vehicle image.
type Photo struct {
	URI        string    `json:"uri"`
	Base64     string    `json:"-"`
	CapturedAt time.Time `json:"captured_at"`
}

// Bytes decodes the base64 payload.
func (p Photo) Bytes() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(p.Base64)
	if err != nil {
		return nil, fmt.Errorf("decode photo: %w", err)
	}
	return data, nil
}

// IsEmpty reports whether no image data was captured.
func (p Photo) IsEmpty() bool {
	return p.Base64 == ""
}
