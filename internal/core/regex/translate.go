// Package regex rewrites grep-tool regular expressions (PCRE-ish and Rust
// regex) into Vim's very-magic dialect for highlight overlays. The rewrite is
// best-effort: constructs without a Vim counterpart pass through unchanged.
package regex

import (
	"regexp"
	"strings"
)

// rule replaces every match of re with repl. When unescaped is set a match
// preceded by a backslash is skipped and matching resumes one byte later.
type rule struct {
	re        *regexp.Regexp
	repl      string
	unescaped bool
}

func (r rule) apply(s string) string {
	if !r.unescaped {
		return r.re.ReplaceAllString(s, r.repl)
	}
	return replaceUnescaped(r.re, s, r.repl)
}

func replaceUnescaped(re *regexp.Regexp, s, repl string) string {
	var b strings.Builder
	last, pos := 0, 0
	for pos <= len(s) {
		loc := re.FindStringSubmatchIndex(s[pos:])
		if loc == nil {
			break
		}
		for i := range loc {
			if loc[i] >= 0 {
				loc[i] += pos
			}
		}
		start, end := loc[0], loc[1]
		if start > 0 && s[start-1] == '\\' {
			pos = start + 1
			continue
		}
		b.WriteString(s[last:start])
		b.Write(re.ExpandString(nil, repl, s, loc))
		last = end
		pos = end
		if end == start {
			pos++
		}
	}
	b.WriteString(s[last:])
	return b.String()
}

var (
	specialChars = rule{re: regexp.MustCompile(`([%@&])`), repl: `\${1}`}

	nonGreedy = []rule{
		{re: regexp.MustCompile(`\*\?`), repl: `{-}`, unescaped: true},
		{re: regexp.MustCompile(`\+\?`), repl: `{-1,}`, unescaped: true},
		{re: regexp.MustCompile(`\?\?`), repl: `{-0,1}`, unescaped: true},
		{re: regexp.MustCompile(`\{(.*?)\}\?`), repl: `{-${1}}`, unescaped: true},
	}

	perlOnly = []rule{
		{re: regexp.MustCompile(`([*+?}])\+`), repl: `${1}`, unescaped: true},
		{re: regexp.MustCompile(`\(\?#.*?\)`), repl: ``},
		{re: regexp.MustCompile(`\(\?=(.+?)\)`), repl: `(${1})@=`},
		{re: regexp.MustCompile(`\(\?!(.+?)\)`), repl: `(${1})@!`},
		{re: regexp.MustCompile(`\(\?<=(.+?)\)`), repl: `(${1})@<=`},
		{re: regexp.MustCompile(`\(\?<!(.+?)\)`), repl: `(${1})@<!`},
		{re: regexp.MustCompile(`\(\?>(.+?)\)`), repl: `(${1})@>`},
	}

	namedGroup   = rule{re: regexp.MustCompile(`\(\?P<\w+>`), repl: `(`}
	nonCapturing = rule{re: regexp.MustCompile(`\(\?:(.+?)\)`), repl: `%(${1})`}
	hexEscape    = rule{re: regexp.MustCompile(`\\(x[0-9A-Fa-f][0-9A-Fa-f])`), repl: `%${1}`}
	unicodeEsc   = rule{re: regexp.MustCompile(`\\([uU])`), repl: `%${1}`}
)

var classes = []struct{ from, to string }{
	{`[[:ascii:]]`, `[\x00-\x7F]`},
	{`[[:word:]]`, `[0-9A-Za-z_]`},
	{`[[:^alnum:]]`, `[^0-9A-Za-z]`},
	{`[[:^alpha:]]`, `[^A-Za-z]`},
	{`[[:^ascii:]]`, `[^\x00-\x7F]`},
	{`[[:^blank:]]`, `[^\t ]`},
	{`[[:^cntrl:]]`, `[^\x00-\x1F\x7F]`},
	{`[[:^digit:]]`, `[^0-9]`},
	{`[[:^graph:]]`, `[^!-~]`},
	{`[[:^lower:]]`, `[^a-z]`},
	{`[[:^print:]]`, `[^ -~]`},
	{`[[:^punct:]]`, `[^!-/:-@\[-` + "`" + `{-~]`},
	{`[[:^space:]]`, `[^\t\n\r ]`},
	{`[[:^upper:]]`, `[^A-Z]`},
	{`[[:^word:]]`, `[^0-9A-Za-z_]`},
	{`[[:^xdigit:]]`, `[^0-9A-Fa-f]`},
}

// Translate returns the very-magic (`\v`) form of pattern. perlLike enables
// the PCRE-only rewrites (possessive quantifiers, comments, lookaround,
// atomic groups).
func Translate(pattern string, perlLike bool) string {
	s := specialChars.apply(pattern)

	for _, r := range nonGreedy {
		s = r.apply(s)
	}
	if perlLike {
		for _, r := range perlOnly {
			s = r.apply(s)
		}
	}

	s = strings.ReplaceAll(s, `\A`, `^`)
	s = strings.ReplaceAll(s, `\z`, `$`)
	s = strings.ReplaceAll(s, `\B`, ``)

	s = strings.ReplaceAll(s, `\b`, `(<|>)`)

	s = strings.ReplaceAll(s, `(?i)`, `\c`)
	s = strings.ReplaceAll(s, `(?-i)`, `\C`)

	s = namedGroup.apply(s)
	s = nonCapturing.apply(s)

	s = strings.ReplaceAll(s, `\a`, `%x07`)
	s = strings.ReplaceAll(s, `\f`, `%x0C`)
	s = strings.ReplaceAll(s, `\v`, `%x0B`)
	s = hexEscape.apply(s)
	s = unicodeEsc.apply(s)

	for _, c := range classes {
		s = strings.ReplaceAll(s, c.from, c.to)
	}
	return `\v` + s
}
