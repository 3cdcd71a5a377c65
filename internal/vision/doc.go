// Package vision is the optional Tier 2 stage: a handful of frames go to a
// remote multimodal model, which answers with a title, a description,
// additional tags and a fixed attribute set.
//
// The stage never fails an item. Transport problems surface as
// ErrRateLimited, ErrInvalidCredentials or ErrAPI so callers can log and
// count them, and an unparseable answer yields an empty Result.
package vision
