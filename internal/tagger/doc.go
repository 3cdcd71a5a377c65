// Package tagger is the Tier 1 local-inference stage. Up to four scorers
// run on every sampled frame:
//
//   - an NSFW categorizer (normal, sexy, porn, hentai, drawings)
//   - a descriptive tagger over a fixed label vocabulary
//   - a body-region detector mapped to readable tags
//   - a zero-shot classifier against a bank of prompt embeddings
//
// Aggregate fuses the per-frame outputs into one ranked tag list, an NSFW
// verdict taken from the single strongest frame, and a drawn-vs-photographic
// content type. It is pure and carries every threshold in its Thresholds
// argument.
package tagger
