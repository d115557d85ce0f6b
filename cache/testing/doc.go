// Package testing provides an in-memory cache.Cache for unit tests.
//
// MockCache supports failure injection and operation counting so token
// stores built on the cache contract can be exercised without Redis:
//
//	mock := testing.NewMockCache().WithGetFailure(errors.New("boom"))
//	store := auth.NewCacheStore(mock, "token", 0, log)
//	_, ok := store.Read() // false, failure is logged
//
// For behaviour that needs a real server use the redis testcontainer in
// testing/containers behind the integration build tag.
package testing
