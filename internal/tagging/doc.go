// Package tagging holds the value types that flow between the pipeline tiers
// and the persisted analysis results: scored labels, NSFW categories, content
// types, matched vocabulary tags, and new-tag suggestions.
package tagging
