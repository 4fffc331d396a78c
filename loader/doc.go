// Package loader provides a generic batched, deduplicated, memoizing loader
// for key based lookups.
//
// Keys requested before the first caller waits share one call to the batch
// function:
//
//	l := loader.New(ctx, fetchUsers)
//	a := l.LoadThunk("users/1")
//	b := l.LoadThunk("users/2")
//	user, found, err := a() // one fetch for both keys
//	_, _, _ = b()
//
// Callers fanning out across goroutines should set Config.Wait so the batch
// stays open for a short window instead of closing on the first wait.
//
// A Loader memoizes every resolved key, found or not, for its lifetime and is
// meant to be scoped to a single request.
package loader
