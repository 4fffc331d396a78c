package di

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/goliatone/go-graph-datasource/cursor"
	"github.com/goliatone/go-graph-datasource/datasource"
	"github.com/goliatone/go-graph-datasource/loader"
	"github.com/goliatone/go-graph-datasource/query"
)

// Request carries the components scoped to one incoming request. Its loaders
// memoize for the request's lifetime and must not be reused by another request.
type Request struct {
	ID        string
	Queries   *datasource.QueryCache
	Documents *datasource.DocumentLoader
	Existence *datasource.ExistenceLoader

	page   cursor.Config
	logger *slog.Logger
}

// NewRequest builds the request scoped components. ctx is the request
// context; batches started from it are not cancelled with it.
func (c *Container) NewRequest(ctx context.Context) *Request {
	id := uuid.NewString()
	logger := c.logger.With(slog.String("request_id", id))

	loaderOpts := []loader.Option{
		loader.WithConfig(c.config.Loader),
		loader.WithLogger(logger),
	}

	return &Request{
		ID:        id,
		Queries:   c.queries,
		Documents: datasource.NewDocumentLoader(ctx, c.exec, loaderOpts...),
		Existence: datasource.NewExistenceLoader(ctx, c.exec, loaderOpts...),
		page:      c.config.Page,
		logger:    logger,
	}
}

// Logger returns a logger tagged with the request id.
func (r *Request) Logger() *slog.Logger {
	return r.logger
}

// Paginator returns a paginator ordering by sortField with the configured limits.
func (r *Request) Paginator(sortField string) (*cursor.Paginator, error) {
	return cursor.NewPaginator(sortField, r.page)
}

// Page runs the paginated form of base through the query cache.
func (r *Request) Page(ctx context.Context, sortField string, base query.Query, limit int, after, before string) (*cursor.Page, error) {
	p, err := r.Paginator(sortField)
	if err != nil {
		return nil, err
	}
	return p.Fetch(ctx, r.Queries, base, limit, after, before)
}

type requestContextKey struct{}

// WithRequest attaches r to ctx.
func WithRequest(ctx context.Context, r *Request) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if r == nil {
		return ctx
	}
	return context.WithValue(ctx, requestContextKey{}, r)
}

// RequestFromContext returns the request attached with WithRequest.
func RequestFromContext(ctx context.Context) (*Request, bool) {
	if ctx == nil {
		return nil, false
	}
	r, ok := ctx.Value(requestContextKey{}).(*Request)
	return r, ok
}
