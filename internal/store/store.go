package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNameRequired    = errors.New("name is required")
	ErrImmutableField  = errors.New("field cannot be updated")
	ErrUnknownField    = errors.New("unknown field")
	ErrEmptyPatch      = errors.New("empty patch")
	ErrInvalidQuantity = errors.New("quantity must not be negative")
	ErrInvalidStatus   = errors.New("invalid project status")
)

// Patch is a partial update keyed by column name. A nil value stores NULL.
type Patch map[string]any

// nowMillis is the store clock in epoch milliseconds.
var nowMillis = func() int64 { return time.Now().UnixMilli() }

func newID() string {
	return uuid.NewString()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullRef(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func refPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// buildUpdate validates p against the updatable columns of table and returns
// an UPDATE statement keyed on id. When bump is set the statement also moves
// updated_at strictly forward.
func buildUpdate(table string, updatable map[string]bool, p Patch, bump bool) (string, []any, error) {
	if len(p) == 0 {
		return "", nil, ErrEmptyPatch
	}

	keys := make([]string, 0, len(p))
	for k := range p {
		switch {
		case k == "id" || k == "created_at" || k == "updated_at":
			return "", nil, fmt.Errorf("%w: %s", ErrImmutableField, k)
		case !updatable[k]:
			return "", nil, fmt.Errorf("%w: %s", ErrUnknownField, k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sets := make([]string, 0, len(keys)+1)
	args := make([]any, 0, len(keys)+2)
	for _, k := range keys {
		sets = append(sets, k+" = ?")
		args = append(args, patchValue(p[k]))
	}
	if bump {
		sets = append(sets, "updated_at = MAX(?, updated_at + 1)")
		args = append(args, nowMillis())
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(sets, ", "))
	return query, args, nil
}

// patchValue normalises values decoded from JSON or passed from Go code.
func patchValue(v any) any {
	switch x := v.(type) {
	case bool:
		return boolInt(x)
	case *string:
		if x == nil {
			return nil
		}
		return *x
	}
	return v
}

func intValue(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case float64:
		return int64(x), true
	}
	return 0, false
}
