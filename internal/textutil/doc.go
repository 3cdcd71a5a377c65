// Package textutil provides label normalisation shared by the tagger and the
// vocabulary resolver.
//
// Labels coming out of models use booru conventions (underscores, mixed case,
// decorated unicode) while curated vocabularies use plain phrases. NormalizeLabel
// folds both into one comparable form: NFKC, Unicode case folding, underscores
// to spaces, and collapsed whitespace.
package textutil
