// Package store persists item records as JSON documents on top of a
// create-only crawler.BlobStore. It must not import concrete storage clients;
// backends live under internal/storage.
package store
