// Package library is the vocabulary and media store the tagging pipeline
// reads from and, on approval, writes to. It shares the SQLite database
// opened by the queue store and queries it through sqlx.
package library
