package statute

import (
	"testing"

	"github.com/lawgraph/lawgraph/types"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		lawName string
		want    types.LawTier
	}{
		{"국토의 계획 및 이용에 관한 법률(법률)", types.TierStatute},
		{"국토의 계획 및 이용에 관한 법률 시행령", types.TierDecree},
		{"국토의 계획 및 이용에 관한 법률 시행규칙", types.TierRule},
		{"건축법", types.TierStatute},
	}
	for _, tc := range cases {
		if got := Classify(tc.lawName); got != tc.want {
			t.Errorf("Classify(%q) = %q, want %q", tc.lawName, got, tc.want)
		}
	}
}

func TestParse_FullPath(t *testing.T) {
	t.Parallel()

	c := Parse("국토의 계획 및 이용에 관한 법률(법률)::제4장::제36조::1")

	if c.LawName != "국토의 계획 및 이용에 관한 법률(법률)" {
		t.Errorf("unexpected law name %q", c.LawName)
	}
	if c.Tier != types.TierStatute {
		t.Errorf("expected statute tier, got %q", c.Tier)
	}
	if c.Chapter != "제4장" {
		t.Errorf("expected chapter 제4장, got %q", c.Chapter)
	}
	if c.Article != "제36조" {
		t.Errorf("expected article 제36조, got %q", c.Article)
	}
	if c.Paragraph != "1" {
		t.Errorf("expected paragraph 1, got %q", c.Paragraph)
	}
}

func TestParse_ComposeRoundTrip(t *testing.T) {
	t.Parallel()

	ids := []string{
		"국토의 계획 및 이용에 관한 법률(법률)::제4장::제36조::1",
		"국토의 계획 및 이용에 관한 법률 시행령::제5장::제1절::제51조::2::3",
		"건축법::제12조",
		"건축법 시행규칙::제3조::1",
	}
	for _, id := range ids {
		if got := Parse(id).FullID(); got != id {
			t.Errorf("round-trip mismatch: %q -> %q", id, got)
		}
	}
}

func TestParse_TrailingEmptySegments(t *testing.T) {
	t.Parallel()

	c := Parse("건축법::제12조::")
	if c.Article != "제12조" {
		t.Errorf("expected article 제12조, got %q", c.Article)
	}
	if c.Paragraph != "" {
		t.Errorf("expected empty paragraph, got %q", c.Paragraph)
	}
}

func TestParse_MalformedDegradesToPartial(t *testing.T) {
	t.Parallel()

	// Non-numeric where a numeral is expected: the bad segment is skipped.
	c := Parse("건축법::제12조::abc")
	if c.Article != "제12조" {
		t.Errorf("expected article to survive, got %q", c.Article)
	}
	if c.Paragraph != "" {
		t.Errorf("expected no paragraph, got %q", c.Paragraph)
	}

	// No structure at all still yields the law name.
	c = Parse("그냥 문자열")
	if c.LawName != "그냥 문자열" {
		t.Errorf("expected law name fallback, got %q", c.LawName)
	}
}

func TestParse_CircledParagraphNumeral(t *testing.T) {
	t.Parallel()

	c := Parse("건축법::제12조::②")
	if c.Paragraph != "2" {
		t.Errorf("expected paragraph 2, got %q", c.Paragraph)
	}
}

func TestArticleReference(t *testing.T) {
	t.Parallel()

	cases := []struct {
		fullID string
		want   string
	}{
		{"국토의 계획 및 이용에 관한 법률(법률)::제4장::제36조::1", "제36조 제1항"},
		{"건축법::제12조", "제12조"},
		{"건축법::제12조::1::2", "제12조 제1항 제2호"},
		{"건축법", ""},
	}
	for _, tc := range cases {
		if got := ArticleReference(tc.fullID); got != tc.want {
			t.Errorf("ArticleReference(%q) = %q, want %q", tc.fullID, got, tc.want)
		}
	}
}

func TestFindCitations(t *testing.T) {
	t.Parallel()

	cites := FindCitations("용도지역 지정은 36조에 따라 어떻게 되나요?")
	if len(cites) != 1 {
		t.Fatalf("expected 1 citation, got %d", len(cites))
	}
	if cites[0].Article != "제36조" {
		t.Errorf("expected 제36조, got %q", cites[0].Article)
	}

	cites = FindCitations("제36조의2 제2항의 내용은?")
	if len(cites) != 1 {
		t.Fatalf("expected 1 citation, got %d", len(cites))
	}
	if cites[0].Article != "제36조의2" {
		t.Errorf("expected 제36조의2, got %q", cites[0].Article)
	}
	if cites[0].Paragraph != "2" {
		t.Errorf("expected paragraph 2, got %q", cites[0].Paragraph)
	}

	if got := FindCitations("일반적인 질문입니다"); len(got) != 0 {
		t.Errorf("expected no citations, got %v", got)
	}
}

func TestFindCitations_ParagraphBindsToOwnArticle(t *testing.T) {
	t.Parallel()

	cites := FindCitations("제36조 제1항과 제40조 제3항을 비교해줘")
	if len(cites) != 2 {
		t.Fatalf("expected 2 citations, got %d: %v", len(cites), cites)
	}
	want := []Citation{
		{Article: "제36조", Paragraph: "1"},
		{Article: "제40조", Paragraph: "3"},
	}
	for i, w := range want {
		if cites[i] != w {
			t.Errorf("citation %d: expected %+v, got %+v", i, w, cites[i])
		}
	}

	// A paragraph token that does not immediately follow an article token
	// binds to nothing.
	cites = FindCitations("제3항은 제36조와 어떤 관계인가요?")
	if len(cites) != 1 {
		t.Fatalf("expected 1 citation, got %d: %v", len(cites), cites)
	}
	if cites[0].Article != "제36조" || cites[0].Paragraph != "" {
		t.Errorf("expected article-level 제36조, got %+v", cites[0])
	}
}

func TestCitationMatches(t *testing.T) {
	t.Parallel()

	ct := Citation{Article: "제36조"}
	if !ct.Matches("국토의 계획 및 이용에 관한 법률(법률)::제4장::제36조::1") {
		t.Error("expected article-level citation to match any paragraph")
	}
	if ct.Matches("국토의 계획 및 이용에 관한 법률(법률)::제4장::제37조::1") {
		t.Error("expected mismatch for a different article")
	}

	ct = Citation{Article: "제36조", Paragraph: "2"}
	if ct.Matches("국토의 계획 및 이용에 관한 법률(법률)::제4장::제36조::1") {
		t.Error("expected paragraph-level citation to reject paragraph 1")
	}
	if !ct.Matches("국토의 계획 및 이용에 관한 법률(법률)::제4장::제36조::2") {
		t.Error("expected paragraph-level citation to match paragraph 2")
	}
}
