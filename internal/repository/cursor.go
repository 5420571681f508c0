package repository

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// Cursor is a keyset pagination position: the (created_at, id) pair of the
// last message the caller has seen. The zero value means "from the start".
type Cursor struct {
	After   time.Time
	AfterID string
}

func (c Cursor) IsZero() bool { return c.After.IsZero() && c.AfterID == "" }

// Encode packs the cursor into an opaque URL-safe token.
func (c Cursor) Encode() string {
	if c.IsZero() {
		return ""
	}
	raw := c.After.UTC().Format(time.RFC3339Nano) + "|" + c.AfterID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func DecodeCursor(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("malformed cursor: %w", err)
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return Cursor{}, fmt.Errorf("malformed cursor")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return Cursor{}, fmt.Errorf("malformed cursor timestamp: %w", err)
	}
	return Cursor{After: ts, AfterID: parts[1]}, nil
}
