package slug

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var slugRegexp = regexp.MustCompile(`[^a-z0-9]+`)

var transliterator = strings.NewReplacer(
	// Azerbaijani Latin
	"ə", "e", "ç", "c", "ğ", "g", "ı", "i", "ö", "o", "ş", "s", "ü", "u",
	// Russian Cyrillic
	"а", "a", "б", "b", "в", "v", "г", "g", "д", "d", "е", "e", "ё", "e",
	"ж", "zh", "з", "z", "и", "i", "й", "y", "к", "k", "л", "l", "м", "m",
	"н", "n", "о", "o", "п", "p", "р", "r", "с", "s", "т", "t", "у", "u",
	"ф", "f", "х", "kh", "ц", "ts", "ч", "ch", "ш", "sh", "щ", "shch",
	"ъ", "", "ы", "y", "ь", "", "э", "e", "ю", "yu", "я", "ya",
	"&", " and ",
)

// Generate creates a URL-friendly slug from name. Anything after '?' or '#'
// is dropped and Azerbaijani or Cyrillic letters are transliterated.
//
//	"Qadın Köynəyi" → "qadin-koyneyi"
//	"Платье & Юбка" → "plate-and-yubka"
func Generate(name string) string {
	base := name
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}

	s := strings.ToLower(strings.TrimSpace(base))
	s = transliterator.Replace(s)
	s = slugRegexp.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Unique appends the millisecond timestamp so repeated names do not collide.
func Unique(name string, now time.Time) string {
	suffix := strconv.FormatInt(now.UnixMilli(), 10)
	base := Generate(name)
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}
