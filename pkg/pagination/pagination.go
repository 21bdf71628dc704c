// Package pagination implements keyset paging over rows ordered newest
// first by (created_at, id).
package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/agriconnect/agriconnect-backend/pkg/errors"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Params is the raw paging input from a request.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the position of the last row a client has seen.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Window is a validated page request.
type Window struct {
	Size  int
	After *Cursor
}

// Window clamps the limit and decodes the cursor. A malformed cursor is a
// validation error.
func (p Params) Window() (Window, error) {
	size := p.Limit
	switch {
	case size <= 0:
		size = DefaultLimit
	case size > MaxLimit:
		size = MaxLimit
	}
	after, err := ParseCursor(p.Cursor)
	if err != nil {
		return Window{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	return Window{Size: size, After: after}, nil
}

// Scope applies the keyset predicate, newest-first ordering and a limit of
// Size+1 so Trim can tell whether another page exists. prefix qualifies the
// columns when the query joins other tables, e.g. "orders.".
func (w Window) Scope(prefix string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if w.After != nil {
			db = db.Where(
				fmt.Sprintf("(%[1]screated_at < ?) OR (%[1]screated_at = ? AND %[1]sid < ?)", prefix),
				w.After.CreatedAt, w.After.CreatedAt, w.After.ID,
			)
		}
		return db.
			Order(prefix + "created_at DESC").
			Order(prefix + "id DESC").
			Limit(w.Size + 1)
	}
}

// Trim cuts rows fetched through Scope down to one page and returns the
// cursor for the next page, or "" on the last one.
func Trim[T any](w Window, rows []T, key func(T) Cursor) ([]T, string) {
	if len(rows) <= w.Size {
		return rows, ""
	}
	rows = rows[:w.Size]
	return rows, key(rows[len(rows)-1]).String()
}

// String encodes the cursor as an opaque URL-safe token.
func (c Cursor) String() string {
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// ParseCursor decodes a token produced by Cursor.String. Blank input means
// the first page.
func ParseCursor(token string) (*Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	at, id, ok := strings.Cut(string(decoded), "|")
	if !ok {
		return nil, fmt.Errorf("invalid cursor format")
	}
	createdAt, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor timestamp: %w", err)
	}
	rowID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor id: %w", err)
	}
	return &Cursor{CreatedAt: createdAt, ID: rowID}, nil
}
