// Package crawler defines the types and interfaces shared by the listing crawler:
// item records, fetch requests/responses, the storage and fetch abstractions, and the
// typed item errors that decide whether a run aborts.
package crawler
