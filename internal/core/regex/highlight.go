package regex

import (
	"strings"
	"unicode"

	"codenav/internal/core/cache"
)

type HighlightOptions struct {
	IgnoreCase bool
	// SmartCase ignores case when the pattern has no upper-case letter.
	// It only applies when IgnoreCase is false.
	SmartCase bool
	Literal   bool
	Word      bool
	// Symbol marks a tag-name query: the pattern is anchored on word
	// boundaries and '.' matches a word character.
	Symbol   bool
	PerlLike bool
}

// Pattern is one highlight overlay in Vim syntax.
type Pattern struct {
	Regex      string `json:"regex"`
	Literal    bool   `json:"literal,omitempty"`
	IgnoreCase bool   `json:"ignore_case,omitempty"`
}

// Highlight builds the overlay for a user-supplied pattern. It reports false
// for an empty pattern.
func Highlight(pattern string, opts HighlightOptions) (Pattern, bool) {
	return defaultTranslator.Highlight(pattern, opts)
}

func (t *Translator) Highlight(pattern string, opts HighlightOptions) (Pattern, bool) {
	ignore := opts.IgnoreCase
	if !ignore && opts.SmartCase {
		ignore = !hasUpper(pattern)
	}
	casePrefix := `\C`
	if ignore {
		casePrefix = `\c`
	}

	p, doubleQuoted := Unquote(pattern)
	if p == "" {
		return Pattern{}, false
	}

	if opts.Literal {
		if doubleQuoted {
			p = escapeBackslashes(p, '"')
		} else {
			p = strings.ReplaceAll(p, `\`, `\\`)
		}
		if opts.Word {
			p = `\<` + p + `\>`
		}
		return Pattern{Regex: `\V` + casePrefix + p, Literal: true, IgnoreCase: ignore}, true
	}

	if opts.Symbol {
		v := t.Translate(casePrefix+`\b`+p+`\b`, opts.PerlLike)
		return Pattern{Regex: strings.ReplaceAll(v, ".", `\w`), IgnoreCase: ignore}, true
	}
	if opts.Word {
		p = "<" + p + ">"
	}
	return Pattern{Regex: t.Translate(casePrefix+p, opts.PerlLike), IgnoreCase: ignore}, true
}

// Unquote strips one pair of matching surrounding quotes. The second result
// reports whether they were double quotes.
func Unquote(s string) (string, bool) {
	if len(s) > 1 && s[0] == s[len(s)-1] && (s[0] == '"' || s[0] == '\'') {
		return s[1 : len(s)-1], s[0] == '"'
	}
	return s, false
}

// escapeBackslashes doubles every backslash not followed by keep.
func escapeBackslashes(s string, keep byte) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && (i+1 >= len(s) || s[i+1] != keep) {
			b.WriteString(`\\`)
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

type translateKey struct {
	pattern string
	perl    bool
}

// Translator memoizes Translate for patterns that are highlighted repeatedly.
type Translator struct {
	lru *cache.LRU[translateKey, string]
}

var defaultTranslator = NewTranslator(256)

func NewTranslator(size int) *Translator {
	return &Translator{lru: cache.NewLRU[translateKey, string](size)}
}

func (t *Translator) Translate(pattern string, perlLike bool) string {
	if t == nil {
		return Translate(pattern, perlLike)
	}
	k := translateKey{pattern: pattern, perl: perlLike}
	if v, ok := t.lru.Get(k); ok {
		return v
	}
	v := Translate(pattern, perlLike)
	t.lru.Put(k, v)
	return v
}
