// Package statute models the lexical structure of Korean statutory
// identifiers: composite path ids, law-tier classification, and citation
// extraction. Parsing is best-effort. Malformed ids degrade to a partial
// parse, never an error, because downstream ranking must tolerate missing
// fields.
package statute

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/lawgraph/lawgraph/types"
)

// Separator joins the segments of a composite identifier. The same convention
// is used at write time (id generation) and read time (parsing ids back).
const Separator = "::"

var (
	chapterRe   = regexp.MustCompile(`^제\s*\d+\s*장`)
	sectionRe   = regexp.MustCompile(`^제\s*\d+\s*절`)
	articleRe   = regexp.MustCompile(`^제\s*\d+\s*조(의\s*\d+)?$`)
	numeralRe   = regexp.MustCompile(`^\d+$`)
	citationRe  = regexp.MustCompile(`제?\s*(\d+)\s*조(?:의\s*(\d+))?`)
	paragraphRe = regexp.MustCompile(`^\s*제?\s*(\d+)\s*항`)
)

// circledDigits maps the circled numerals used for paragraph numbering in
// published statute text to their plain form.
var circledDigits = map[rune]int{
	'①': 1, '②': 2, '③': 3, '④': 4, '⑤': 5,
	'⑥': 6, '⑦': 7, '⑧': 8, '⑨': 9, '⑩': 10,
	'⑪': 11, '⑫': 12, '⑬': 13, '⑭': 14, '⑮': 15,
	'⑯': 16, '⑰': 17, '⑱': 18, '⑲': 19, '⑳': 20,
}

// Components is the structural decomposition of a composite identifier.
// Fields after LawName are empty when the corresponding level is absent.
type Components struct {
	LawName   string
	Tier      types.LawTier
	Chapter   string
	Section   string
	Article   string
	Paragraph string
	Item      string
}

// Classify determines the law tier from substrings of the law-name segment.
// This is a lexical convention, not a stored flag: "시행령" marks an
// implementing decree, "시행규칙" an enforcement rule, anything else a statute.
func Classify(lawName string) types.LawTier {
	switch {
	case strings.Contains(lawName, "시행규칙"):
		return types.TierRule
	case strings.Contains(lawName, "시행령"):
		return types.TierDecree
	default:
		return types.TierStatute
	}
}

// Parse decomposes a composite identifier into its structural components.
// Trailing empty segments are tolerated (an Article may be referenced without
// a Paragraph), and unrecognizable segments are skipped rather than rejected.
func Parse(fullID string) Components {
	var c Components
	segments := strings.Split(fullID, Separator)
	if len(segments) == 0 {
		return c
	}
	c.LawName = strings.TrimSpace(segments[0])
	c.Tier = Classify(c.LawName)

	sawArticle := false
	for _, raw := range segments[1:] {
		seg := strings.TrimSpace(raw)
		if seg == "" {
			continue
		}
		switch {
		case chapterRe.MatchString(seg) && c.Chapter == "":
			c.Chapter = seg
		case sectionRe.MatchString(seg) && c.Section == "":
			c.Section = seg
		case articleRe.MatchString(seg) && c.Article == "":
			c.Article = seg
			sawArticle = true
		case sawArticle && c.Paragraph == "":
			if n, ok := normalizeNumeral(seg); ok {
				c.Paragraph = strconv.Itoa(n)
			}
		case sawArticle && c.Paragraph != "" && c.Item == "":
			if n, ok := normalizeNumeral(seg); ok {
				c.Item = strconv.Itoa(n)
			}
		}
	}
	return c
}

// FullID recomposes the components into a composite identifier. For any
// identifier produced by the corpus loader, Parse followed by FullID yields
// the original string.
func (c Components) FullID() string {
	segments := []string{c.LawName}
	for _, seg := range []string{c.Chapter, c.Section, c.Article, c.Paragraph, c.Item} {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return strings.Join(segments, Separator)
}

// ArticleReference builds a human-readable citation from an identifier path:
// the first article token, with paragraph/item tokens that immediately follow
// it appended in the conventional 제N항/제N호 form. Returns "" when the path
// carries no article token.
func ArticleReference(fullID string) string {
	c := Parse(fullID)
	if c.Article == "" {
		return ""
	}
	ref := c.Article
	if c.Paragraph != "" {
		ref += " 제" + c.Paragraph + "항"
	}
	if c.Item != "" {
		ref += " 제" + c.Item + "호"
	}
	return ref
}

// Citation is an explicit article reference found in free query text.
type Citation struct {
	Article   string // normalized, e.g. "제36조" or "제36조의2"
	Paragraph string // plain numeral, "" when the citation is article-level
}

// FindCitations extracts explicit statutory citations from query text.
// Both "제36조" and the colloquial "36조" normalize to "제36조". A paragraph
// token binds to the article it immediately follows, so a query naming
// several articles keeps each paragraph with its own article.
func FindCitations(query string) []Citation {
	var citations []Citation
	seen := make(map[string]bool)
	matches := citationRe.FindAllStringSubmatchIndex(query, -1)
	for i, m := range matches {
		article := "제" + query[m[2]:m[3]] + "조"
		if m[4] >= 0 {
			article += "의" + query[m[4]:m[5]]
		}

		tail := query[m[1]:]
		if i+1 < len(matches) {
			tail = query[m[1]:matches[i+1][0]]
		}
		var paragraph string
		if pm := paragraphRe.FindStringSubmatch(tail); pm != nil {
			paragraph = pm[1]
		}

		key := article + "/" + paragraph
		if seen[key] {
			continue
		}
		seen[key] = true
		citations = append(citations, Citation{Article: article, Paragraph: paragraph})
	}
	return citations
}

// Matches reports whether the identifier refers to the cited article (and
// paragraph, when the citation names one).
func (ct Citation) Matches(fullID string) bool {
	c := Parse(fullID)
	if normalizeArticle(c.Article) != normalizeArticle(ct.Article) {
		return false
	}
	if ct.Paragraph != "" && c.Paragraph != ct.Paragraph {
		return false
	}
	return true
}

func normalizeArticle(article string) string {
	return strings.ReplaceAll(strings.TrimSpace(article), " ", "")
}

// normalizeNumeral accepts plain numerals and the circled forms used for
// paragraph numbers in published text.
func normalizeNumeral(seg string) (int, bool) {
	if numeralRe.MatchString(seg) {
		n, err := strconv.Atoi(seg)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	runes := []rune(seg)
	if len(runes) == 1 {
		if n, ok := circledDigits[runes[0]]; ok {
			return n, true
		}
	}
	return 0, false
}
