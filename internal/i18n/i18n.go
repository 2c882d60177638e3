// Package i18n localizes analyzer findings and CLI output. Messages live in
// the embedded locales/*.toml files; every call site also carries its English
// text so an unknown id or an uninitialized package still renders something
// readable.
//
//	i18n.Init(i18n.ResolveLocale(cfg.Lang))
//	i18n.T("anomaly.silence.title", "Sudden Silence Detected")
//	i18n.Tf("cmd.ingest.done", "Inserted %d records", n)
//	i18n.Tn("cmd.sessions.count", "{{.Count}} session", "{{.Count}} sessions", n)
package i18n

import (
	"embed"
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.toml
var localeFS embed.FS

// loadBundle parses the embedded locale files once per process.
var loadBundle = sync.OnceValue(func() *goi18n.Bundle {
	b := goi18n.NewBundle(language.English)
	b.RegisterUnmarshalFunc("toml", toml.Unmarshal)
	files, _ := localeFS.ReadDir("locales")
	for _, f := range files {
		if _, err := b.LoadMessageFileFS(localeFS, path.Join("locales", f.Name())); err != nil {
			panic(fmt.Sprintf("i18n: bad locale file %s: %v", f.Name(), err))
		}
	}
	return b
})

var (
	mu        sync.RWMutex
	localizer *goi18n.Localizer
	current   string
)

// Init selects the active language. Unknown tags fall back to English.
// It may be called again at any time, e.g. after `cdrintel language es`.
func Init(lang string) {
	l := goi18n.NewLocalizer(loadBundle(), lang, "en")
	mu.Lock()
	localizer, current = l, lang
	mu.Unlock()
}

// Current returns the tag passed to the last Init, or "" before Init.
func Current() string {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Available lists the languages that have a locale file.
func Available() []string {
	tags := loadBundle().LanguageTags()
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.String()
	}
	return out
}

// Supports reports whether lang matches one of the embedded locales.
// Regional variants match their base language, so "es-MX" is supported.
func Supports(lang string) bool {
	tag, err := language.Parse(lang)
	if err != nil {
		return false
	}
	_, _, conf := language.NewMatcher(loadBundle().LanguageTags()).Match(tag)
	return conf >= language.High
}

func active() *goi18n.Localizer {
	mu.RLock()
	defer mu.RUnlock()
	return localizer
}

// T returns the message for id, or defaultMsg when it has no translation.
func T(id string, defaultMsg string) string {
	l := active()
	if l == nil {
		return defaultMsg
	}
	s, err := l.Localize(&goi18n.LocalizeConfig{
		DefaultMessage: &goi18n.Message{ID: id, Other: defaultMsg},
	})
	if err != nil {
		return defaultMsg
	}
	return s
}

// Tf is T followed by fmt.Sprintf. Translations keep the verbs of the
// English text in the same order.
func Tf(id string, defaultMsg string, args ...any) string {
	return fmt.Sprintf(T(id, defaultMsg), args...)
}

// Tn picks the plural form for count. Both forms use {{.Count}}.
func Tn(id string, one string, other string, count int) string {
	fallback := other
	if count == 1 {
		fallback = one
	}
	fallback = strings.ReplaceAll(fallback, "{{.Count}}", strconv.Itoa(count))

	l := active()
	if l == nil {
		return fallback
	}
	s, err := l.Localize(&goi18n.LocalizeConfig{
		DefaultMessage: &goi18n.Message{ID: id, One: one, Other: other},
		PluralCount:    count,
		TemplateData:   map[string]int{"Count": count},
	})
	if err != nil {
		return fallback
	}
	return s
}
