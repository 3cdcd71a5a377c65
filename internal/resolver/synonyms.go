package resolver

import (
	"slices"
	"sync"

	"autotag/internal/textutil"
)

// synonymGroups maps a canonical tag name to the labels that mean the same
// thing. Keys and values are written in normalized form.
var synonymGroups = map[string][]string{
	"blowjob":      {"bj", "blow job", "fellatio", "oral sex"},
	"cumshot":      {"cum shot", "money shot"},
	"nude":         {"naked", "nudity", "undressed"},
	"topless":      {"bare breasts", "bare chest"},
	"breasts":      {"boobs", "tits", "breast", "chest"},
	"ass":          {"butt", "buttocks", "booty", "rear"},
	"lingerie":     {"underwear", "panties", "bra"},
	"swimsuit":     {"swimwear", "bathing suit", "one-piece swimsuit"},
	"bikini":       {"two-piece swimsuit", "string bikini"},
	"stockings":    {"thighhighs", "thigh highs", "pantyhose", "nylons"},
	"high heels":   {"heels", "stilettos", "pumps"},
	"blonde":       {"blond", "blonde hair", "blond hair", "yellow hair"},
	"brunette":     {"brown hair", "dark brown hair"},
	"redhead":      {"red hair", "ginger", "orange hair"},
	"black hair":   {"dark hair", "raven hair"},
	"long hair":    {"very long hair"},
	"short hair":   {"pixie cut", "bob cut"},
	"outdoors":     {"outdoor", "outside", "exterior", "outdoor setting"},
	"indoors":      {"indoor", "inside", "interior", "indoor setting"},
	"beach":        {"seaside", "shore", "seashore", "coast"},
	"pool":         {"swimming pool", "poolside"},
	"bedroom":      {"bed", "on bed", "in bed"},
	"shower":       {"showering", "in shower"},
	"bathroom":     {"bath", "bathtub", "bathing"},
	"kitchen":      {"in kitchen"},
	"close-up":     {"closeup", "close up", "macro"},
	"pov":          {"point of view", "first person", "first-person view"},
	"selfie":       {"self portrait", "self-portrait", "mirror selfie"},
	"solo":         {"solo female", "solo male", "single person", "one person"},
	"couple":       {"duo", "two people", "2 people"},
	"group":        {"group sex", "multiple people", "crowd"},
	"threesome":    {"3some", "three people"},
	"lesbian":      {"girl on girl", "yuri"},
	"gay":          {"yaoi", "male on male"},
	"kissing":      {"kiss", "french kiss", "making out"},
	"masturbation": {"masturbating", "self pleasure", "fingering"},
	"sex":          {"intercourse", "penetration", "vaginal"},
	"tattoo":       {"tattoos", "tattooed", "ink"},
	"piercing":     {"piercings", "pierced", "navel piercing", "nipple piercing"},
	"glasses":      {"eyewear", "spectacles", "eyeglasses"},
	"curvy":        {"thick", "voluptuous", "plump", "chubby"},
	"slim":         {"skinny", "thin", "slender", "petite"},
	"muscular":     {"muscles", "athletic", "toned", "abs"},
	"cosplay":      {"costume", "cosplayer"},
	"amateur":      {"homemade", "home video"},
	"hentai":       {"anime porn", "ecchi"},
	"anime":        {"manga", "anime style", "cartoon"},
	"smiling":      {"smile", "grin", "happy"},
	"dancing":      {"dance", "dancer"},
	"explicit":     {"nsfw", "adult content", "xxx"},
}

var (
	reverseOnce    sync.Once
	reverseIndex   map[string]string
	canonicalNames []string
)

// canonicalFor returns the canonical name for a normalized label using the
// reverse index.
func canonicalFor(label string) (string, bool) {
	reverseOnce.Do(buildReverseIndex)
	canonical, ok := reverseIndex[label]
	return canonical, ok
}

func buildReverseIndex() {
	canonicalNames = make([]string, 0, len(synonymGroups))
	for canonical := range synonymGroups {
		canonicalNames = append(canonicalNames, canonical)
	}
	slices.Sort(canonicalNames)

	reverseIndex = make(map[string]string, len(synonymGroups)*4)
	for _, canonical := range canonicalNames {
		synonyms := synonymGroups[canonical]
		key := textutil.NormalizeLabel(canonical)
		reverseIndex[key] = key
		for _, s := range synonyms {
			s = textutil.NormalizeLabel(s)
			if _, taken := reverseIndex[s]; taken {
				continue
			}
			reverseIndex[s] = key
		}
	}
}

// scanSynonyms is the fallback for labels the reverse index misses: it
// compares punctuation-free forms so "blow-job" and "fellatio." still land.
func scanSynonyms(label string) (string, bool) {
	compact := textutil.Compact(label)
	if compact == "" {
		return "", false
	}
	reverseOnce.Do(buildReverseIndex)
	for _, canonical := range canonicalNames {
		synonyms := synonymGroups[canonical]
		if textutil.Compact(canonical) == compact {
			return textutil.NormalizeLabel(canonical), true
		}
		for _, s := range synonyms {
			if textutil.Compact(s) == compact {
				return textutil.NormalizeLabel(canonical), true
			}
		}
	}
	return "", false
}

// groupMembers returns the canonical name followed by its synonyms.
func groupMembers(canonical string) []string {
	synonyms := synonymGroups[canonical]
	out := make([]string, 0, len(synonyms)+1)
	out = append(out, canonical)
	for _, s := range synonyms {
		out = append(out, textutil.NormalizeLabel(s))
	}
	return out
}
