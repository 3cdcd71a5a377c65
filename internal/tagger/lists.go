package tagger

import "autotag/internal/tagging"

// realContentAllow holds photographic descriptors the anime-trained tagger
// under-scores on real footage. They get a lower floor and a boost when the
// item is classified real.
var realContentAllow = setOf(
	"solo", "couple", "group",
	"long hair", "short hair", "medium hair", "blonde hair", "brown hair", "black hair", "red hair",
	"grey hair", "ponytail", "braid", "curly hair",
	"breasts", "small breasts", "medium breasts", "large breasts", "nipples", "ass", "pussy", "penis",
	"navel", "thighs", "feet", "dark skin", "tan", "tanlines", "freckles", "tattoo", "piercing",
	"nude", "completely nude", "topless", "bottomless", "lingerie", "underwear", "panties", "bra",
	"bikini", "swimsuit", "stockings", "thighhighs", "pantyhose", "high heels", "dress", "skirt",
	"shirt", "jeans", "shorts", "glasses", "jewelry", "necklace", "earrings",
	"smile", "open mouth", "tongue", "tongue out", "looking at viewer", "closed eyes", "kiss",
	"sex", "oral", "fellatio", "blowjob", "cunnilingus", "masturbation", "vaginal", "anal",
	"kneeling", "lying", "on back", "on stomach", "sitting", "standing", "spread legs", "from behind",
	"indoors", "outdoors", "bed", "bedroom", "bathroom", "shower", "couch", "beach", "pool", "car",
	"realistic", "photorealistic", "photo (medium)",
)

// realContentDeny holds labels that make no sense for real people: booru
// counting conventions, art-medium tags, impossible anatomy and unnatural
// hair or eye colours.
var realContentDeny = setOf(
	"1girl", "2girls", "3girls", "4girls", "5girls", "6+girls", "multiple girls",
	"1boy", "2boys", "3boys", "multiple boys", "solo focus", "1other",
	"anime coloring", "monochrome", "greyscale", "sketch", "lineart", "traditional media",
	"official art", "comic", "manga", "4koma", "chibi", "pixel art", "3d", "cel shading",
	"artist name", "signature", "watermark", "web address", "dated", "commentary request",
	"highres", "absurdres", "lowres",
	"animal ears", "cat ears", "fox ears", "dog ears", "rabbit ears", "tail", "cat tail", "fox tail",
	"horns", "wings", "halo", "pointy ears", "elf", "extra arms", "tentacles", "gigantic breasts",
	"futanari",
	"blue hair", "green hair", "pink hair", "purple hair", "aqua hair", "white hair", "silver hair",
	"multicolored hair", "two-tone hair", "gradient hair", "streaked hair", "ahoge", "hair intakes",
	"red eyes", "purple eyes", "pink eyes", "yellow eyes", "aqua eyes", "orange eyes",
	"heterochromia", "glowing eyes", "slit pupils",
)

// nsfwLinkedTags are injected when the item's NSFW confidence clears the gate.
var nsfwLinkedTags = map[tagging.NSFWCategory][]string{
	tagging.CategoryPorn:     {"explicit", "nsfw", "adult content", "real", "live action"},
	tagging.CategoryHentai:   {"explicit", "nsfw", "hentai", "anime", "drawn"},
	tagging.CategorySexy:     {"suggestive", "sexy", "real"},
	tagging.CategoryDrawings: {"drawing", "illustration", "anime"},
	tagging.CategoryNormal:   {"sfw"},
}

// categoryRule synthesizes one category:* tag when any trigger label survived.
type categoryRule struct {
	tag      string
	triggers map[string]struct{}
}

var categoryRules = []categoryRule{
	{"category:female", setOf("1girl", "2girls", "3girls", "multiple girls", "woman", "women", "girl", "female", "female face", "exposed breasts", "covered breasts", "exposed female genitalia")},
	{"category:male", setOf("1boy", "2boys", "multiple boys", "man", "men", "boy", "male", "male face", "exposed male genitalia", "exposed male chest")},
	{"category:solo", setOf("solo", "1girl", "1boy", "one person", "single person")},
	{"category:duo", setOf("couple", "2girls", "2boys", "two people", "1boy 1girl")},
	{"category:group", setOf("group", "multiple girls", "multiple boys", "3girls", "3boys", "group of people", "three or more people")},
	{"category:curvy", setOf("curvy", "plump", "thick thighs", "wide hips", "voluptuous", "large breasts")},
	{"category:slim", setOf("slim", "skinny", "petite", "slender", "small breasts")},
	{"category:muscular", setOf("muscular", "muscular female", "muscular male", "athletic", "abs")},
}

var ratingTierTags = map[tagging.NSFWCategory]string{
	tagging.CategoryPorn:     "category:explicit",
	tagging.CategoryHentai:   "category:explicit",
	tagging.CategorySexy:     "category:suggestive",
	tagging.CategoryNormal:   "category:safe",
	tagging.CategoryDrawings: "category:safe",
}

var contentTypeTags = map[tagging.ContentType]string{
	tagging.ContentAnime: "category:anime",
	tagging.ContentReal:  "category:real",
}

func setOf(values ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}

func inSet(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}
