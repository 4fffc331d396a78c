// Package manager holds the write side of the data access layer: document
// and edge managers over narrow collection contracts, and a collection
// adapter for go-repository-bun repositories.
//
// Every write returns a Change carrying the versions the caller asked the
// store to return. Update follows the document store's patch rules: null
// attributes are removed unless KeepNull is set, nested objects are replaced
// unless MergeObjects is set.
package manager
