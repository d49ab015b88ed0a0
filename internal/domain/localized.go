package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Lang is a storefront language tag.
type Lang string

const (
	LangAZ Lang = "az"
	LangEN Lang = "en"
	LangRU Lang = "ru"

	DefaultLang = LangAZ
)

// fallbackChain is consulted after the requested language.
var fallbackChain = []Lang{LangAZ, LangEN, LangRU}

// ParseLang reports whether s names a supported language.
func ParseLang(s string) (Lang, bool) {
	switch l := Lang(strings.ToLower(strings.TrimSpace(s))); l {
	case LangAZ, LangEN, LangRU:
		return l, true
	default:
		return "", false
	}
}

// LangOrDefault returns the parsed language or DefaultLang.
func LangOrDefault(s string) Lang {
	if l, ok := ParseLang(s); ok {
		return l
	}
	return DefaultLang
}

// Localized is either plain text or a record keyed by language. The backend
// also sends records JSON-encoded inside a string; those decode as records.
type Localized struct {
	text   string
	values map[Lang]string
}

// Text returns plain, unlocalized text.
func Text(s string) Localized {
	return Localized{text: s}
}

// Record returns a language-keyed value.
func Record(values map[Lang]string) Localized {
	cp := make(map[Lang]string, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return Localized{values: cp}
}

// IsRecord reports whether l is language-keyed.
func (l Localized) IsRecord() bool { return l.values != nil }

// IsZero reports whether l resolves to nothing in every language.
func (l Localized) IsZero() bool {
	return l.Resolve(DefaultLang) == ""
}

// Resolve returns the text for lang, falling back through az, en and ru, and
// finally to "".
func (l Localized) Resolve(lang Lang) string {
	if l.values == nil {
		return l.text
	}
	if v := l.values[lang]; v != "" {
		return v
	}
	for _, fb := range fallbackChain {
		if v := l.values[fb]; v != "" {
			return v
		}
	}
	return ""
}

// Matches reports whether s equals the plain text or any language value.
func (l Localized) Matches(s string) bool {
	if l.values == nil {
		return l.text == s
	}
	for _, lang := range fallbackChain {
		if v, ok := l.values[lang]; ok && v == s {
			return true
		}
	}
	return false
}

func (l Localized) MarshalJSON() ([]byte, error) {
	if l.values == nil {
		return json.Marshal(l.text)
	}
	return json.Marshal(l.values)
}

func (l *Localized) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*l = Localized{}

	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if rec, ok := parseRecord([]byte(strings.TrimSpace(s))); ok {
			l.values = rec
			return nil
		}
		l.text = s
		return nil
	case '{':
		rec, _ := parseRecord(data)
		if rec == nil {
			rec = map[Lang]string{}
		}
		l.values = rec
		return nil
	case '[':
		var parts []string
		if err := json.Unmarshal(data, &parts); err != nil {
			return nil
		}
		l.text = strings.Join(parts, "\n")
		return nil
	default:
		l.text = string(data)
		return nil
	}
}

// parseRecord decodes an object carrying at least one non-empty language
// value. Non-string members are ignored.
func parseRecord(data []byte) (map[Lang]string, bool) {
	if len(data) == 0 || data[0] != '{' {
		return nil, false
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, false
	}

	rec := make(map[Lang]string, len(fallbackChain))
	found := false
	for _, lang := range fallbackChain {
		msg, ok := raw[string(lang)]
		if !ok {
			continue
		}
		var v string
		if err := json.Unmarshal(msg, &v); err != nil {
			continue
		}
		rec[lang] = v
		if v != "" {
			found = true
		}
	}
	return rec, found
}
