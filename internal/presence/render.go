package presence

import "strings"

// ///////////////////////////////////////////////
// Template Renderer
// ///////////////////////////////////////////////

// Rendering substitutes the fixed token vocabulary into user-configured
// template strings. Substitution is literal replace-all per token; the
// tokens are mutually exclusive substrings so replacement order is
// irrelevant. Unrecognized {tokens} pass through unchanged.
//
// {time_left} is handled in a second pass by [RenderTimeLeft] because the
// remaining-time value is only known after the timestamp calculator runs;
// the first pass leaves the token in place.

// timeLeftToken is the token deferred to the second rendering pass.
const timeLeftToken = "{time_left}"

// Render substitutes every token except {time_left} into tmpl.
func Render(tmpl string, f Fields) string {
	r := strings.NewReplacer(
		"{title}", f.Title,
		"{series_name}", f.SeriesName,
		"{season_episode}", f.SeasonEpisode,
		"{progress_percent}", f.ProgressPercent,
		"{play_state}", f.PlayState,
		"{genres}", f.Genres,
		"{activity}", f.Activity,
		"{series_or_title}", f.SeriesOrTitle,
	)
	return r.Replace(tmpl)
}

// RenderTimeLeft performs the second rendering pass, substituting the
// final time-remaining value. An empty timeLeft erases the token and
// tidies the separator it would have hung off of.
func RenderTimeLeft(s, timeLeft string) string {
	if timeLeft != "" {
		return strings.ReplaceAll(s, timeLeftToken, timeLeft)
	}
	// Drop a dangling " • " joiner so an absent duration doesn't leave
	// "Drama • " behind.
	s = strings.ReplaceAll(s, " • "+timeLeftToken, "")
	s = strings.ReplaceAll(s, timeLeftToken+" • ", "")
	return strings.ReplaceAll(s, timeLeftToken, "")
}
