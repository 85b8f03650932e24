package reconcile

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ///////////////////////////////////////////////
// Repair Heuristics
// ///////////////////////////////////////////////

// Repair is a best-effort enrichment pass for episodic media whose
// metadata lacked explicit season/episode numbers: the code is recognized
// from the raw title by pattern matching and folded into the rendered
// text. Repairs are purely textual; unparseable titles leave the payload
// unchanged and never produce an error.

// episodeMatcher recognizes one season/episode title convention.
type episodeMatcher struct {
	// name tags the convention for logging and tests.
	name string
	// re captures the season in group 1 and the episode in group 2.
	re *regexp.Regexp
}

// episodeMatchers is tried in order; the first match wins. The bare "N-M"
// form is last because it is the loosest and would otherwise shadow the
// more specific conventions.
var episodeMatchers = []episodeMatcher{
	{"SxxExx", regexp.MustCompile(`(?i)\bS(\d{1,2})\s*E(\d{1,3})\b`)},
	{"SeasonNEpisodeM", regexp.MustCompile(`(?i)\bSeason\s*(\d{1,2})\b.*?\bEpisode\s*(\d{1,3})\b`)},
	{"NxM", regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{1,3})\b`)},
	{"N-M", regexp.MustCompile(`\b(\d{1,2})-(\d{1,3})\b`)},
}

// EpisodeCode extracts a season/episode code from a raw title, normalized
// to the "S02E05" form regardless of which convention matched. The second
// return reports whether any pattern matched.
func EpisodeCode(title string) (string, bool) {
	for _, m := range episodeMatchers {
		groups := m.re.FindStringSubmatch(title)
		if groups == nil {
			continue
		}
		season, err1 := strconv.Atoi(groups[1])
		episode, err2 := strconv.Atoi(groups[2])
		if err1 != nil || err2 != nil {
			continue
		}
		return fmt.Sprintf("S%02dE%02d", season, episode), true
	}
	return "", false
}

// repairDetails folds a recognized episode code into the details line when
// the renderer's output does not already carry one. Returns details
// unchanged when no pattern matches or the code is already present.
func repairDetails(details, title, seriesName string) string {
	code, ok := EpisodeCode(title)
	if !ok || strings.Contains(details, code) {
		return details
	}
	if seriesName == "" {
		if details == "" {
			return code
		}
		return details + " " + code
	}
	return seriesName + " " + code
}

// repairState prepends the quoted episode title to the state line when it
// is known, distinct from the series name, and not already present.
func repairState(state, title, seriesName string) string {
	if title == "" || title == seriesName {
		return state
	}
	quoted := `"` + title + `"`
	if strings.Contains(state, quoted) {
		return state
	}
	if state == "" {
		return quoted
	}
	return quoted + " • " + state
}
