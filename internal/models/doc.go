// Package models locates Tier 1 model assets on disk and loads the small
// sidecar files that accompany them: the descriptive tagger's label CSV and
// the zero-shot prompt embedding bank. Downloading assets is out of scope;
// a missing file simply reports as absent.
package models
