package i18n

import (
	"os"
	"strings"
)

// ResolveLocale picks the display language. The first non-empty source
// wins: CDRINTEL_LANG, the configured language, LC_ALL, LANG. The result
// defaults to "en".
func ResolveLocale(configLang string) string {
	if v := os.Getenv("CDRINTEL_LANG"); v != "" {
		return v
	}
	if configLang != "" {
		return configLang
	}
	for _, env := range []string{"LC_ALL", "LANG"} {
		if v := os.Getenv(env); v != "" {
			return posixToBCP47(v)
		}
	}
	return "en"
}

// posixToBCP47 turns a POSIX locale such as "es_MX.UTF-8@euro" into "es-MX".
func posixToBCP47(posix string) string {
	if posix == "C" || posix == "POSIX" {
		return "en"
	}
	tag, _, _ := strings.Cut(posix, ".")
	tag, _, _ = strings.Cut(tag, "@")
	return strings.ReplaceAll(tag, "_", "-")
}
