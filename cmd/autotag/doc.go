// Package main hosts the autotag CLI entrypoint and command graph.
//
// Every command except run opens the SQLite database directly and exits;
// only run loads Tier 1 models and processes the queue. A run loop and CLI
// invocations can share the database because the store uses WAL mode.
package main
