package whisper

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fmueller/speechbridge/internal/engine"
	"golang.org/x/text/language"
)

const autoLanguage = "auto"

// Language is a whisper language keyed by its ISO 639-1 code.
type Language struct {
	Code string
	Name string
}

var languages = map[string]string{
	"af": "Afrikaans",
	"ar": "Arabic",
	"hy": "Armenian",
	"az": "Azerbaijani",
	"be": "Belarusian",
	"bs": "Bosnian",
	"bg": "Bulgarian",
	"ca": "Catalan",
	"zh": "Chinese",
	"hr": "Croatian",
	"cs": "Czech",
	"da": "Danish",
	"nl": "Dutch",
	"en": "English",
	"et": "Estonian",
	"fi": "Finnish",
	"fr": "French",
	"gl": "Galician",
	"de": "German",
	"el": "Greek",
	"he": "Hebrew",
	"hi": "Hindi",
	"hu": "Hungarian",
	"is": "Icelandic",
	"id": "Indonesian",
	"it": "Italian",
	"ja": "Japanese",
	"kn": "Kannada",
	"kk": "Kazakh",
	"ko": "Korean",
	"lv": "Latvian",
	"lt": "Lithuanian",
	"mk": "Macedonian",
	"ms": "Malay",
	"mr": "Marathi",
	"mi": "Maori",
	"ne": "Nepali",
	"no": "Norwegian",
	"fa": "Persian",
	"pl": "Polish",
	"pt": "Portuguese",
	"ro": "Romanian",
	"ru": "Russian",
	"sr": "Serbian",
	"sk": "Slovak",
	"sl": "Slovenian",
	"es": "Spanish",
	"sw": "Swahili",
	"sv": "Swedish",
	"tl": "Tagalog",
	"ta": "Tamil",
	"th": "Thai",
	"tr": "Turkish",
	"uk": "Ukrainian",
	"ur": "Urdu",
	"vi": "Vietnamese",
	"cy": "Welsh",
}

// BCP 47 bases whisper knows under a different code.
var baseAliases = map[string]string{
	"nb":  "no",
	"nn":  "no",
	"fil": "tl",
	"iw":  "he",
	"in":  "id",
}

// ResolveLanguage maps a locale such as "en-US", "zh_CN" or "pt-BR" to the
// whisper language code. An empty locale selects auto-detection.
func ResolveLanguage(locale string) (string, error) {
	locale = strings.TrimSpace(locale)
	if locale == "" || strings.EqualFold(locale, autoLanguage) {
		return autoLanguage, nil
	}

	tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
	if err != nil {
		return "", fmt.Errorf("%w: %q", engine.ErrUnsupportedLocale, locale)
	}

	base, _ := tag.Base()
	code := base.String()
	if alias, ok := baseAliases[code]; ok {
		code = alias
	}
	if _, ok := languages[code]; !ok {
		return "", fmt.Errorf("%w: %q", engine.ErrUnsupportedLocale, locale)
	}
	return code, nil
}

// Languages returns the supported languages sorted by code.
func Languages() []Language {
	out := make([]Language, 0, len(languages))
	for code, name := range languages {
		out = append(out, Language{Code: code, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
