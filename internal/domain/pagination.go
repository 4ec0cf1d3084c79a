package domain

import (
	"encoding/base64"
	"strconv"
)

// DefaultPageSize is used when a PageRequest does not set MaxResults.
const DefaultPageSize = 50

// MaxPageSize caps MaxResults.
const MaxPageSize = 500

// PageRequest holds pagination parameters for history listings.
type PageRequest struct {
	MaxResults int
	PageToken  string // opaque; base64 of the offset
}

// Offset decodes the page token. Invalid tokens start from the beginning.
func (p PageRequest) Offset() int {
	if p.PageToken == "" {
		return 0
	}
	decoded, err := base64.RawURLEncoding.DecodeString(p.PageToken)
	if err != nil {
		return 0
	}
	offset, err := strconv.Atoi(string(decoded))
	if err != nil || offset < 0 {
		return 0
	}
	return offset
}

// Limit returns the effective page size, clamped to [1, MaxPageSize].
func (p PageRequest) Limit() int {
	switch {
	case p.MaxResults <= 0:
		return DefaultPageSize
	case p.MaxResults > MaxPageSize:
		return MaxPageSize
	default:
		return p.MaxResults
	}
}

// NextPageToken returns the token for the page after [offset, offset+limit),
// or "" when total has been reached.
func NextPageToken(offset, limit int, total int64) string {
	next := offset + limit
	if int64(next) >= total {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(next)))
}
