// Package cursor implements opaque pagination cursors and range pagination
// over a single sort field.
//
// A cursor is the standard base64 encoding of the JSON object
//
//	{"field": "<sort field>", "value": <scalar>}
//
// Paginator turns cursors into strict range filters and wraps a base query so
// that one round trip returns the page window together with the total count
// and the first and last sort values of the unfiltered set:
//
//	p, _ := cursor.NewPaginator("createdAt", cursor.DefaultConfig())
//	page, err := p.Fetch(ctx, exec, base, 20, after, "")
//	// page.PageInfo.EndCursor, page.PageInfo.HasNextPage ...
package cursor
