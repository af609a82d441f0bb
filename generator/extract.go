package generator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ExtractNotes pulls best-effort developer/marketing values out of an
// arbitrary prefix of the model's JSON output. Priority order: strict
// whole-document parse, then the first balanced {...} span, then per-field
// regex recovery (closed quoted string first, open quoted string as the
// still-streaming fallback). Fields default to "".
//
// The regex path is a heuristic: values containing escaped quotes or nested
// braces near a field boundary can misparse mid-stream. Callers keep the
// last known good value via Notes.Merge rather than trusting every call.
func ExtractNotes(text string) Notes {
	trimmed := strings.TrimSpace(text)
	if gjson.Valid(trimmed) {
		doc := gjson.Parse(trimmed)
		return Notes{
			Developer: doc.Get("developer").String(),
			Marketing: doc.Get("marketing").String(),
		}
	}
	if span := balancedSpan(trimmed); span != "" && gjson.Valid(span) {
		doc := gjson.Parse(span)
		return Notes{
			Developer: doc.Get("developer").String(),
			Marketing: doc.Get("marketing").String(),
		}
	}
	return Notes{
		Developer: extractField(trimmed, "developer"),
		Marketing: extractField(trimmed, "marketing"),
	}
}

// ParseNotes is the strict final-parse used when the stream ends: the text
// must be a valid JSON object carrying both string fields.
func ParseNotes(text string) (Notes, error) {
	trimmed := strings.TrimSpace(stripFences(text))
	if trimmed == "" {
		return Notes{}, fmt.Errorf("model returned empty output")
	}
	if !gjson.Valid(trimmed) {
		return Notes{}, fmt.Errorf("final output is not valid JSON")
	}
	doc := gjson.Parse(trimmed)
	dev := doc.Get("developer")
	mkt := doc.Get("marketing")
	if !dev.Exists() || !mkt.Exists() {
		return Notes{}, fmt.Errorf("final output missing developer/marketing fields")
	}
	return Notes{Developer: dev.String(), Marketing: mkt.String()}, nil
}

// Models occasionally wrap the object in a markdown code fence despite the
// prompt; tolerate that in the strict path.
func stripFences(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return t
}

// balancedSpan returns the first top-level {...} span whose braces balance,
// tracking strings and escapes so braces inside values do not count.
func balancedSpan(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

var fieldRes = map[string]struct{ closed, open *regexp.Regexp }{
	"developer": compileFieldRes("developer"),
	"marketing": compileFieldRes("marketing"),
}

func compileFieldRes(name string) struct{ closed, open *regexp.Regexp } {
	return struct{ closed, open *regexp.Regexp }{
		closed: regexp.MustCompile(`"` + name + `"\s*:\s*"((?:[^"\\]|\\.)*)"`),
		open:   regexp.MustCompile(`"` + name + `"\s*:\s*"((?:[^"\\]|\\.)*)`),
	}
}

func extractField(text, name string) string {
	res := fieldRes[name]
	if m := res.closed.FindStringSubmatch(text); len(m) >= 2 {
		return unescapeValue(m[1])
	}
	if m := res.open.FindStringSubmatch(text); len(m) >= 2 {
		return unescapeValue(m[1])
	}
	return ""
}

func unescapeValue(raw string) string {
	if !strings.ContainsRune(raw, '\\') {
		return raw
	}
	// An open match can end mid-escape; drop the dangling backslash so
	// strconv has a chance.
	if strings.HasSuffix(raw, `\`) && !strings.HasSuffix(raw, `\\`) {
		raw = raw[:len(raw)-1]
	}
	if v, err := strconv.Unquote(`"` + raw + `"`); err == nil {
		return v
	}
	r := strings.NewReplacer(`\"`, `"`, `\\`, `\`, `\n`, "\n", `\t`, "\t")
	return r.Replace(raw)
}
