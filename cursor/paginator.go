package cursor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/samber/lo"

	"github.com/goliatone/go-graph-datasource/query"
)

// Bind variables reserved by Paginate. A base query must not bind them.
const (
	BindSortField = "pageSortField"
	BindAfter     = "pageAfter"
	BindBefore    = "pageBefore"
	BindLimit     = "pageLimit"
)

var reservedBindVars = []string{BindSortField, BindAfter, BindBefore, BindLimit}

var (
	// ErrInvalidSortField is returned for sort field names outside [A-Za-z0-9_].
	ErrInvalidSortField = errors.New("cursor: invalid sort field")
	// ErrEmptyQuery is returned when paginating an empty base query.
	ErrEmptyQuery = errors.New("cursor: empty base query")
	// ErrNoPage is returned when a paginated query produced no result row.
	ErrNoPage = errors.New("cursor: paginated query returned no rows")
)

var sortFieldSymbols = append([]rune("_"), lo.AlphanumericCharset...)

// Config bounds the page size. DefaultLimit applies when a caller asks for
// no limit, MaxLimit caps every request.
type Config struct {
	DefaultLimit int
	MaxLimit     int
}

// DefaultConfig returns the default page size limits.
func DefaultConfig() Config {
	return Config{DefaultLimit: 10, MaxLimit: 100}
}

// Validate checks the limits. Both must be positive and DefaultLimit must
// not exceed MaxLimit.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.DefaultLimit,
			validation.Required.Error("must be greater than 0"),
			validation.Min(1).Error("must be greater than 0"),
			validation.Max(c.MaxLimit).Error("must not exceed MaxLimit"),
		),
		validation.Field(&c.MaxLimit,
			validation.Required.Error("must be greater than 0"),
			validation.Min(1).Error("must be greater than 0"),
		),
	)
}

// NormalizeLimit maps non positive limits to DefaultLimit and caps the rest at MaxLimit.
func (c Config) NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return c.DefaultLimit
	case limit > c.MaxLimit:
		return c.MaxLimit
	}
	return limit
}

// PageInfo describes the boundaries of a page.
type PageInfo struct {
	StartCursor     string `json:"startCursor"`
	EndCursor       string `json:"endCursor"`
	HasNextPage     bool   `json:"hasNextPage"`
	HasPreviousPage bool   `json:"hasPreviousPage"`
}

// Page is the result of Fetch. Records is never nil, and Total counts the
// whole base set rather than the window.
type Page struct {
	Records  []any    `json:"records"`
	Total    int      `json:"total"`
	PageInfo PageInfo `json:"pageInfo"`
}

// Paginator builds range queries over records sorted by one field.
type Paginator struct {
	sortField string
	config    Config
}

// NewPaginator returns a Paginator ordering by sortField. The field is bound
// as a query variable and must match [A-Za-z0-9_]+; cfg is validated.
func NewPaginator(sortField string, cfg Config) (*Paginator, error) {
	if sortField == "" || !lo.Every(sortFieldSymbols, []rune(sortField)) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSortField, sortField)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("cursor: invalid config: %w", err)
	}
	return &Paginator{sortField: sortField, config: cfg}, nil
}

// SortField returns the field the paginator orders by.
func (p *Paginator) SortField() string {
	return p.sortField
}

// Cursor encodes value under the sort field. The token is accepted by After
// and Before of any paginator on the same field.
func (p *Paginator) Cursor(value any) (string, error) {
	return Encode(p.sortField, value)
}

// After returns a filter keeping records strictly after the token. An empty
// token returns an empty query.
func (p *Paginator) After(token string) (query.Query, error) {
	return p.bound(token, ">", BindAfter)
}

// Before returns a filter keeping records strictly before the token. An empty
// token returns an empty query.
func (p *Paginator) Before(token string) (query.Query, error) {
	return p.bound(token, "<", BindBefore)
}

func (p *Paginator) bound(token, op, name string) (query.Query, error) {
	if token == "" {
		return query.Query{}, nil
	}

	c, err := Decode(token)
	if err != nil {
		return query.Query{}, err
	}
	if c.Field != p.sortField {
		return query.Query{}, fmt.Errorf("%w: cursor for %q, paginating by %q", ErrFieldMismatch, c.Field, p.sortField)
	}

	return query.New(
		fmt.Sprintf("    FILTER record[@%s] %s @%s", BindSortField, op, name),
		map[string]any{BindSortField: p.sortField, name: c.Value},
	), nil
}

// Paginate wraps base in a query returning a single row:
//
//	{records: [...], pagination: {total, first, last}}
//
// total, first and last are computed over the unfiltered base set, records
// is the window after the cursors and the limit are applied.
func (p *Paginator) Paginate(base query.Query, limit int, after, before string) (query.Query, error) {
	if base.IsEmpty() {
		return query.Query{}, ErrEmptyQuery
	}
	for _, name := range reservedBindVars {
		if _, ok := base.BindVars[name]; ok {
			return query.Query{}, fmt.Errorf("%w: @%s is reserved for pagination", query.ErrBindVarConflict, name)
		}
	}

	afterFilter, err := p.After(after)
	if err != nil {
		return query.Query{}, err
	}
	beforeFilter, err := p.Before(before)
	if err != nil {
		return query.Query{}, err
	}

	head := query.Query{
		Text: fmt.Sprintf(`LET records = (%s)

LET total = LENGTH(records)
LET first = FIRST(records)[@%[2]s]
LET last = LAST(records)[@%[2]s]

LET output = (
  FOR record IN records`, base.Text, BindSortField),
	}
	head.BindVars, err = query.MergeBindVars(base.BindVars, map[string]any{BindSortField: p.sortField})
	if err != nil {
		return query.Query{}, err
	}

	tail := query.New(fmt.Sprintf(`    LIMIT @%s
    RETURN record
)

RETURN { records: output, pagination: { total: total, first: first, last: last } }`, BindLimit),
		map[string]any{BindLimit: p.config.NormalizeLimit(limit)},
	)

	return query.Join("\n", head, afterFilter, beforeFilter, tail)
}

// PageInfo derives cursors and page flags. first and last are the sort
// values of the whole unfiltered set, values those of the returned window.
// Values that cannot be encoded yield empty cursors.
func (p *Paginator) PageInfo(first, last any, values []any) PageInfo {
	info := PageInfo{
		StartCursor: p.cursorOrEmpty(first),
		EndCursor:   p.cursorOrEmpty(last),
	}

	if first == nil || last == nil || len(values) == 0 {
		return info
	}

	info.HasNextPage = !sameValue(values[len(values)-1], last)
	info.HasPreviousPage = !sameValue(values[0], first)
	return info
}

func (p *Paginator) cursorOrEmpty(value any) string {
	if value == nil {
		return ""
	}
	token, err := p.Cursor(value)
	if err != nil {
		return ""
	}
	return token
}

// Fetch runs the paginated form of base through exec and returns the window
// with its page info.
func (p *Paginator) Fetch(ctx context.Context, exec query.Executor, base query.Query, limit int, after, before string) (*Page, error) {
	q, err := p.Paginate(base, limit, after, before)
	if err != nil {
		return nil, err
	}

	rows, err := exec.Execute(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoPage
	}

	var result struct {
		Records    []any `json:"records"`
		Pagination struct {
			Total int             `json:"total"`
			First json.RawMessage `json:"first"`
			Last  json.RawMessage `json:"last"`
		} `json:"pagination"`
	}

	// rows come back as generic maps; a JSON round trip gives them shape
	data, err := json.Marshal(rows[0])
	if err != nil {
		return nil, fmt.Errorf("cursor: encode page row: %w", err)
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("cursor: decode page row: %w", err)
	}

	values := lo.Map(result.Records, func(record any, _ int) any {
		fields, _ := record.(map[string]any)
		return fields[p.sortField]
	})

	if result.Records == nil {
		result.Records = []any{}
	}

	return &Page{
		Records:  result.Records,
		Total:    result.Pagination.Total,
		PageInfo: p.PageInfo(boundary(result.Pagination.First), boundary(result.Pagination.Last), values),
	}, nil
}

// boundary keeps a number as the literal the store returned, so the cursor
// built from it carries the same literal.
func boundary(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}

// sameValue compares sort values, treating numbers by value regardless of
// their Go type.
func sameValue(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	if n, ok := v.(json.Number); ok {
		f, err := n.Float64()
		return f, err == nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
