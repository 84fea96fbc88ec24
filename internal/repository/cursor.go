package repository

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrMalformedCursor signals an undecodable pagination cursor.
var ErrMalformedCursor = errors.New("malformed cursor")

// Cursor is the decoded form of an opaque pagination token: the last-seen
// (created_at, id) pair of a listing ordered descending on both.
type Cursor struct {
	CreatedAt time.Time `json:"t"`
	ID        string    `json:"id"`
}

// EncodeCursor serializes the pair into an opaque token.
func EncodeCursor(createdAt time.Time, id string) string {
	raw, _ := json.Marshal(Cursor{CreatedAt: createdAt, ID: id})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses an opaque token back into its sort-key pair.
func DecodeCursor(token string) (*Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrMalformedCursor
	}
	var cursor Cursor
	if err := json.Unmarshal(raw, &cursor); err != nil {
		return nil, ErrMalformedCursor
	}
	if cursor.ID == "" || cursor.CreatedAt.IsZero() {
		return nil, ErrMalformedCursor
	}
	// The id is bound against a uuid column; reject anything else up front so a
	// decodable-but-bogus token cannot turn into a database error.
	if _, err := uuid.Parse(cursor.ID); err != nil {
		return nil, ErrMalformedCursor
	}
	return &cursor, nil
}
