// Package datasource is the read side of the graph data access layer.
//
// QueryCache wraps a query.Executor with a fingerprint keyed result cache.
// DocumentLoader and ExistenceLoader are request scoped batched loaders for
// point reads by _id:
//
//	docs := datasource.NewDocumentLoader(ctx, exec)
//	a := docs.GetThunk("users/1")
//	b := docs.GetThunk("users/2")
//	user, found, err := a() // RETURN DOCUMENT(@ids) runs once for both
//
// Loaded documents are copies of the executor's rows with "id" set to "_id".
package datasource
