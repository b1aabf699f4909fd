package types

// LawTier is the rank of legal authority a unit belongs to.
type LawTier string

const (
	TierStatute LawTier = "statute"
	TierDecree  LawTier = "decree"
	TierRule    LawTier = "rule"
)

// UnitKind is the level of a node in the statute hierarchy.
type UnitKind string

const (
	UnitLaw       UnitKind = "Law"
	UnitChapter   UnitKind = "Chapter"
	UnitSection   UnitKind = "Section"
	UnitArticle   UnitKind = "Article"
	UnitParagraph UnitKind = "Paragraph"
	UnitItem      UnitKind = "Item"
)

// Stage is a provenance tag recording how a result entered the ranking.
type Stage string

const (
	StageVectorSeed            Stage = "vector_seed"
	StageRelationshipExpansion Stage = "relationship_expansion"
	StageExactMatch            Stage = "exact_match"
)

// Result is the record every retrieval stage exchanges. ID, Score and Stages
// are always populated; the enrichment fields are filled by the aggregator
// and degrade to explicit markers when the identifier cannot be parsed.
type Result struct {
	ID            string   `json:"id"`
	Content       string   `json:"content"`
	Score         float64  `json:"score"`
	Stages        []Stage  `json:"stages"`
	SourceDomains []string `json:"source_domains,omitempty"`

	// Enrichment fields, populated by the aggregator.
	Article string  `json:"article,omitempty"`
	LawName string  `json:"law_name,omitempty"`
	LawTier LawTier `json:"law_tier,omitempty"`
	Title   string  `json:"title,omitempty"`
}

// HasStage reports whether the result carries the given provenance tag.
func (r *Result) HasStage(stage Stage) bool {
	for _, s := range r.Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// AddStage appends a provenance tag if it is not already present.
func (r *Result) AddStage(stage Stage) {
	if !r.HasStage(stage) {
		r.Stages = append(r.Stages, stage)
	}
}

// AddSourceDomain records the domain a result came from, keeping the list
// duplicate-free so merging is idempotent.
func (r *Result) AddSourceDomain(domainID string) {
	if domainID == "" {
		return
	}
	for _, d := range r.SourceDomains {
		if d == domainID {
			return
		}
	}
	r.SourceDomains = append(r.SourceDomains, domainID)
}
