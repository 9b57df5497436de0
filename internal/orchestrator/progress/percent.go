package progress

import "crawlorch/internal/domain/entity"

// Calculator accumulates completed-phase weight and converts it to a
// clamped 0-100 overall percentage, floor-rounded as the original
// crawler's progress math does.
type Calculator struct {
	completed map[entity.ScrapePhase]int // phase -> percent complete within that phase (0-100)
	phases    []entity.ScrapePhase        // phases this task run will execute, in order
}

// NewCalculator builds a Calculator scoped to the phases a given scrape
// mode will actually run, so a links_only task's 100% is computed from
// fetch_links + update_dataframe + save_to_csv + save_to_database alone,
// not against fetch_contents' unused weight.
func NewCalculator(phases []entity.ScrapePhase) *Calculator {
	return &Calculator{
		completed: make(map[entity.ScrapePhase]int, len(phases)),
		phases:    phases,
	}
}

// SetPhaseProgress records that phase is pct percent complete (0-100).
func (c *Calculator) SetPhaseProgress(phase entity.ScrapePhase, pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	c.completed[phase] = pct
}

// CompletePhase marks phase fully done.
func (c *Calculator) CompletePhase(phase entity.ScrapePhase) {
	c.SetPhaseProgress(phase, 100)
}

// Overall returns the floor-rounded, 0-100-clamped weighted completion
// percentage across every phase this calculator was scoped to.
func (c *Calculator) Overall() int {
	totalWeight := 0
	earned := 0
	for _, phase := range c.phases {
		w := entity.PhaseWeights[phase]
		totalWeight += w
		earned += w * c.completed[phase]
	}
	if totalWeight == 0 {
		return 0
	}
	pct := (earned * 100) / (totalWeight * 100)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}

// PhasesForMode returns the ordered phase list a given scrape mode
// executes, used to scope a Calculator correctly.
func PhasesForMode(mode entity.ScrapeMode) []entity.ScrapePhase {
	switch mode {
	case entity.ScrapeModeLinksOnly:
		return []entity.ScrapePhase{
			entity.ScrapePhaseFetchLinks,
			entity.ScrapePhaseUpdateDataframe,
			entity.ScrapePhaseSaveToCSV,
			entity.ScrapePhaseSaveToDatabase,
		}
	case entity.ScrapeModeContentOnly:
		return []entity.ScrapePhase{
			entity.ScrapePhaseFetchContents,
			entity.ScrapePhaseUpdateDataframe,
			entity.ScrapePhaseSaveToCSV,
			entity.ScrapePhaseSaveToDatabase,
		}
	default: // full_scrape
		return []entity.ScrapePhase{
			entity.ScrapePhaseFetchLinks,
			entity.ScrapePhaseFetchContents,
			entity.ScrapePhaseUpdateDataframe,
			entity.ScrapePhaseSaveToCSV,
			entity.ScrapePhaseSaveToDatabase,
		}
	}
}
