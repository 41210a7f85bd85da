// Package pipe holds the bounded-concurrency fan-out primitive shared by
// the search worker and the debrid providers.
package pipe

const defaultConcurrency = 5
