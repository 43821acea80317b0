package tools

import (
	"sort"
	"strings"

	"github.com/antigravity-dev/maestro/internal/knowledge"
)

// SearchHit is one ranked search result.
type SearchHit struct {
	PageName   string   `json:"page_name"`
	Score      int      `json:"score"`
	Reasons    []string `json:"reasons"`
	Discipline string   `json:"discipline"`
	Summary    string   `json:"summary"`
}

const (
	scorePageName = 5
	scoreKeyword  = 3
	scoreMaterial = 2
	maxRefsPerTerm = 80
	maxReasons    = 6
	summaryChars  = 380
)

// Search scores every page in the project against a lowercase query using
// the deterministic, total-ordered algorithm from the tool surface design:
// page-name substring (+5), keyword containment per distinct page (+3,
// capped at 80 refs/term), material containment per page (+2, same cap).
// Results are ranked by (-score, page_name) and truncated to limit.
func Search(loader *knowledge.Loader, slug, query string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 20
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []SearchHit{}, nil
	}

	idx, err := loader.LoadIndex(slug)
	if err != nil {
		return nil, err
	}
	pages, err := loader.ListPages(slug, "")
	if err != nil {
		return nil, err
	}
	pageMeta := make(map[string]knowledge.PageMeta, len(pages))
	for _, p := range pages {
		pageMeta[p.PageName] = p
	}

	scores := map[string]int{}
	reasons := map[string][]string{}

	addReason := func(page, reason string, delta int) {
		scores[page] += delta
		if len(reasons[page]) < maxReasons {
			reasons[page] = append(reasons[page], reason)
		}
	}

	for page := range pageMeta {
		if strings.Contains(strings.ToLower(page), q) {
			addReason(page, "page_name", scorePageName)
		}
	}

	for keyword, refs := range idx.Keyword {
		if !strings.Contains(strings.ToLower(keyword), q) {
			continue
		}
		seen := map[string]bool{}
		capped := refs
		if len(capped) > maxRefsPerTerm {
			capped = capped[:maxRefsPerTerm]
		}
		for _, ref := range capped {
			if seen[ref.Page] {
				continue
			}
			seen[ref.Page] = true
			addReason(ref.Page, "keyword:"+keyword, scoreKeyword)
		}
	}

	for material, refs := range idx.Material {
		if !strings.Contains(strings.ToLower(material), q) {
			continue
		}
		seen := map[string]bool{}
		capped := refs
		if len(capped) > maxRefsPerTerm {
			capped = capped[:maxRefsPerTerm]
		}
		for _, ref := range capped {
			if seen[ref.Page] {
				continue
			}
			seen[ref.Page] = true
			addReason(ref.Page, "material:"+material, scoreMaterial)
		}
	}

	hits := make([]SearchHit, 0, len(scores))
	for page, score := range scores {
		meta := pageMeta[page]
		_, p1, err := loader.LoadPass1(slug, page)
		summary := ""
		discipline := meta.Discipline
		if err == nil {
			summary = truncate(p1.SheetReflection, summaryChars)
			discipline = p1.Discipline
		}
		hits = append(hits, SearchHit{
			PageName:   page,
			Score:      score,
			Reasons:    reasons[page],
			Discipline: discipline,
			Summary:    summary,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].PageName < hits[j].PageName
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
