package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Cursor is the canonical, opaque pagination token (pre-encoding) with short field names to
// minimize payload size. It is serialized to minified JSON and encoded with URL-safe base64.
//
// Fields:
//   - v:   version of the cursor schema
//   - src: healthiness source (upload handle or canonical path)
//   - okr: optional OKR source
//   - k:   section key
//   - sh:  selection hash the page was produced under
//   - off: row offset into the section table
//   - ps:  page size in rows
//   - iat: issued-at timestamp (unix seconds)
type Cursor struct {
	V   int    `json:"v"`
	Src string `json:"src"`
	Okr string `json:"okr,omitempty"`
	K   string `json:"k"`
	Sh  string `json:"sh"`
	Off int    `json:"off"`
	Ps  int    `json:"ps"`
	Iat int64  `json:"iat"`
}

// ErrStale indicates a structurally valid cursor issued for different inputs.
var ErrStale = errors.New("cursor: issued for a different selection or source")

// EncodeCursor serializes and encodes the cursor as URL-safe base64 (without padding).
func EncodeCursor(c Cursor) (string, error) {
	if err := validate(&c); err != nil {
		return "", err
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeCursor decodes a URL-safe base64 token and parses the JSON cursor.
func DecodeCursor(token string) (*Cursor, error) {
	t := strings.TrimSpace(token)
	if t == "" {
		return nil, errors.New("cursor: empty token")
	}
	data, err := base64.RawURLEncoding.DecodeString(t)
	if err != nil {
		return nil, fmt.Errorf("cursor: invalid base64: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("cursor: invalid json: %w", err)
	}
	if err := validate(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Bind reports ErrStale unless the cursor was issued for the same sources,
// section and selection hash.
func (c *Cursor) Bind(src, okr, key, selectionHash string) error {
	if c.Src != src || c.Okr != okr || c.K != key || c.Sh != selectionHash {
		return ErrStale
	}
	return nil
}

// validate performs structural checks and defaulting.
func validate(c *Cursor) error {
	if c.V <= 0 {
		c.V = 1
	}
	if c.Iat == 0 {
		c.Iat = time.Now().Unix()
	}
	if strings.TrimSpace(c.Src) == "" {
		return errors.New("cursor: src required")
	}
	if strings.TrimSpace(c.K) == "" {
		return errors.New("cursor: k (section key) required")
	}
	if strings.TrimSpace(c.Sh) == "" {
		return errors.New("cursor: sh (selection hash) required")
	}
	if c.Off < 0 {
		return errors.New("cursor: off must be >= 0")
	}
	if c.Ps <= 0 {
		return errors.New("cursor: ps must be > 0")
	}
	return nil
}

// NextOffset computes the next offset after returning n rows.
func NextOffset(curr, n int) int {
	if curr < 0 {
		curr = 0
	}
	if n <= 0 {
		return curr
	}
	return curr + n
}

// Next returns the token for the page after c when returned rows still leave
// some of total unread, or "" on the last page.
func Next(c Cursor, returned, total int) (string, error) {
	off := NextOffset(c.Off, returned)
	if returned <= 0 || off >= total {
		return "", nil
	}
	c.Off = off
	c.Iat = 0
	return EncodeCursor(c)
}
