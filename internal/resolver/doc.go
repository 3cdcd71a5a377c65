// Package resolver maps free-form labels from the analysis tiers onto the
// curated tag vocabulary. Each label walks a cascade of exact, synonym and
// partial matching and stops at the first hit; labels with no match become
// new-tag suggestions when they are confident and long enough.
//
// The vocabulary is cached in memory and reloaded when the cache is empty or
// older than the configured TTL. CreateNewTags invalidates it.
package resolver
