package render

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	fencePattern     = regexp.MustCompile("(?s)```(?:html)?\\s*(.*?)```")
	slideDivPattern  = regexp.MustCompile(`(?i)<div([^>]*class="[^"]*slide[^"]*")`)
	indexAttrPattern = regexp.MustCompile(`(?i)\sdata-slide-index\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s>]*))`)
)

const wrapperStyle = "width:100%;height:100%;min-height:100%;max-width:100%;box-sizing:border-box;overflow:hidden;padding:2%;"

// NormalizeMarkup guarantees raw is a single root block carrying the slide
// class and its zero-based index. Markup whose slide div already carries
// the right index is returned unchanged apart from fence stripping and
// surrounding whitespace; a wrong index on that div is rewritten.
func NormalizeMarkup(raw string, index int) string {
	html := stripFences(raw)
	if !hasSlideClass(html) {
		return wrap(html, index)
	}
	loc := slideDivPattern.FindStringSubmatchIndex(html)
	if loc == nil {
		// slide class on something other than a double-quoted div
		return wrap(html, index)
	}
	attr := fmt.Sprintf(` data-slide-index="%d"`, index)

	start, end := loc[0], len(html)
	if n := strings.IndexByte(html[start:], '>'); n >= 0 {
		end = start + n
	}
	if m := indexAttrPattern.FindStringSubmatchIndex(html[start:end]); m != nil {
		if attrValue(html[start:end], m) == strconv.Itoa(index) {
			return html
		}
		return html[:start+m[0]] + attr + html[start+m[1]:]
	}
	attrEnd := loc[3]
	return html[:attrEnd] + attr + html[attrEnd:]
}

// attrValue returns whichever quoting form of the index attribute matched.
func attrValue(tag string, m []int) string {
	for g := 1; g <= 3; g++ {
		if m[2*g] >= 0 {
			return strings.TrimSpace(tag[m[2*g]:m[2*g+1]])
		}
	}
	return ""
}

func wrap(inner string, index int) string {
	return fmt.Sprintf(`<div class="slide" data-slide-index="%d" style="%s">%s</div>`, index, wrapperStyle, inner)
}

func hasSlideClass(html string) bool {
	return strings.Contains(html, `class="slide`) || strings.Contains(html, `class='slide`)
}

// stripFences removes a markdown code fence, including an unterminated one
// left by a truncated stream.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "html")
	}
	return strings.TrimSpace(s)
}
