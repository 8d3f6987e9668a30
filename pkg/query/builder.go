package query

import (
	"fmt"
	"reflect"
	"strings"
)

// SortField represents a single column in an ORDER BY clause.
// Field is the logical field name (mapped via ProjectionMap).
type SortField struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending"`
}

// Builder constructs SQL queries using a fluent API. Conditions are numbered as
// they are added, so clauses and args always stay aligned.
type Builder struct {
	projection  *ProjectionMap
	clauses     []string
	args        []any
	orderBy     []SortField
	defaultSort []SortField
}

// NewBuilder creates a Builder for the given projection with optional default sort fields.
func NewBuilder(projection *ProjectionMap, defaultSort ...SortField) *Builder {
	return &Builder{
		projection:  projection,
		defaultSort: defaultSort,
	}
}

// ParseSortFields parses a comma-separated sort string into a SortField slice.
// Fields prefixed with "-" are descending. Example: "status,-updatedAt".
func ParseSortFields(s string) []SortField {
	if s == "" {
		return nil
	}

	var fields []SortField
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, desc := strings.CutPrefix(part, "-")
		fields = append(fields, SortField{Field: name, Descending: desc})
	}
	return fields
}

// BuildCount returns a COUNT(*) query with the current conditions.
func (b *Builder) BuildCount() (string, []any) {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s%s", b.projection.Table(), b.where()), b.args
}

// BuildPage returns a paginated SELECT query with ordering, limit, and offset.
func (b *Builder) BuildPage(page, pageSize int) (string, []any) {
	sql := fmt.Sprintf(
		"SELECT %s FROM %s%s%s LIMIT %d OFFSET %d",
		b.projection.Columns(),
		b.projection.Table(),
		b.where(),
		b.order(),
		pageSize,
		(page-1)*pageSize,
	)
	return sql, b.args
}

// BuildSingle returns a SELECT query for a single record by key.
func (b *Builder) BuildSingle(keyField string, key any) (string, []any) {
	sql := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1",
		b.projection.Columns(),
		b.projection.Table(),
		b.projection.Column(keyField),
	)
	return sql, []any{key}
}

// OrderByFields sets the sort order, overriding default sort fields.
// Fields that are not projected are ignored.
func (b *Builder) OrderByFields(fields []SortField) *Builder {
	b.orderBy = b.orderBy[:0]
	for _, f := range fields {
		if b.projection.Has(f.Field) {
			b.orderBy = append(b.orderBy, f)
		}
	}
	return b
}

// WhereEquals adds an equality condition. No-op for nil values.
func (b *Builder) WhereEquals(field string, value any) *Builder {
	if isNil(value) {
		return b
	}
	b.add(fmt.Sprintf("%s = %s", b.projection.Column(field), b.param(value)))
	return b
}

// WhereIn adds an IN condition. No-op for an empty slice.
func (b *Builder) WhereIn(field string, values []string) *Builder {
	if len(values) == 0 {
		return b
	}
	params := make([]string, len(values))
	for i, v := range values {
		params[i] = b.param(v)
	}
	b.add(fmt.Sprintf("%s IN (%s)", b.projection.Column(field), strings.Join(params, ", ")))
	return b
}

// WhereContains adds a case-insensitive ILIKE condition. No-op for nil or empty values.
func (b *Builder) WhereContains(field string, value *string) *Builder {
	if value == nil || *value == "" {
		return b
	}
	b.add(fmt.Sprintf("%s ILIKE %s", b.projection.Column(field), b.param("%"+*value+"%")))
	return b
}

// WhereSearch adds an OR of ILIKE conditions across fields. No-op for nil or empty search.
func (b *Builder) WhereSearch(search *string, fields ...string) *Builder {
	if search == nil || *search == "" || len(fields) == 0 {
		return b
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("%s ILIKE %s", b.projection.Column(f), b.param("%"+*search+"%"))
	}
	b.add("(" + strings.Join(parts, " OR ") + ")")
	return b
}

func (b *Builder) add(clause string) {
	b.clauses = append(b.clauses, clause)
}

func (b *Builder) param(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *Builder) where() string {
	if len(b.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.clauses, " AND ")
}

func (b *Builder) order() string {
	fields := b.orderBy
	if len(fields) == 0 {
		fields = b.defaultSort
	}
	if len(fields) == 0 {
		return ""
	}

	parts := make([]string, len(fields))
	for i, f := range fields {
		dir := "ASC"
		if f.Descending {
			dir = "DESC"
		}
		parts[i] = b.projection.Column(f.Field) + " " + dir
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}
