package presence

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"tools.zach/dev/jellycord/internal/jellyfin"
)

// maxGenres is how many genres are joined into the {genres} token.
const maxGenres = 3

// ///////////////////////////////////////////////
// Derived Fields
// ///////////////////////////////////////////////

// Fields is the flat set of display values derived from one playing item
// and its play state. Every field is a string; absent inputs derive to the
// empty string, never to a sentinel, so template substitution is always safe.
type Fields struct {
	// Title is the item's own name (episode title for episodic content).
	Title string
	// SeriesName is the parent series or album name; empty for movies.
	SeriesName string
	// SeasonEpisode is the "S02E05" style code; "E05" without a season;
	// empty without an episode number.
	SeasonEpisode string
	// ProgressPercent is the rounded playback percentage as a string.
	ProgressPercent string
	// PlayState is "Paused" or "Playing".
	PlayState string
	// Genres is the first few genres joined with ", ".
	Genres string
	// Activity is "Listening" for audio, "Watching" otherwise.
	Activity string
	// SeriesOrTitle is the series name (with episode code when known),
	// falling back to the title.
	SeriesOrTitle string
}

// Derive computes the display fields for one playing item. It is a pure
// function: the same item and play state always derive the same fields.
func Derive(item *jellyfin.NowPlayingItem, ps *jellyfin.PlayState) Fields {
	f := Fields{
		Title:         item.Name,
		SeriesName:    seriesName(item),
		SeasonEpisode: SeasonEpisodeCode(item.ParentIndexNumber, item.IndexNumber),
		PlayState:     "Playing",
		Genres:        joinGenres(item.Genres),
		Activity:      activityVerb(item.MediaType),
	}

	if ps != nil {
		if ps.IsPaused {
			f.PlayState = "Paused"
		}
		f.ProgressPercent = progressPercent(ps.PositionTicks, item.RunTimeTicks)
	} else {
		f.ProgressPercent = "0"
	}

	f.SeriesOrTitle = f.Title
	if f.SeriesName != "" {
		f.SeriesOrTitle = f.SeriesName
		if f.SeasonEpisode != "" {
			f.SeriesOrTitle = f.SeriesName + " " + f.SeasonEpisode
		}
	}

	return f
}

// SeasonEpisodeCode formats season/episode numbers as "S02E05".
// Without a season number the code is "E05"; without an episode number
// the code is empty.
func SeasonEpisodeCode(season, episode *int) string {
	if episode == nil {
		return ""
	}
	if season == nil {
		return fmt.Sprintf("E%02d", *episode)
	}
	return fmt.Sprintf("S%02dE%02d", *season, *episode)
}

// seriesName returns the parent name for episodic or track content: the
// series for episodes, the album (or album artist) for audio.
func seriesName(item *jellyfin.NowPlayingItem) string {
	if item.SeriesName != "" {
		return item.SeriesName
	}
	if item.Album != "" {
		return item.Album
	}
	if item.AlbumArtist != "" {
		return item.AlbumArtist
	}
	if len(item.Artists) > 0 {
		return item.Artists[0]
	}
	return ""
}

// progressPercent computes round(100 * position / runtime) as a string.
// Returns "0" when either value is absent or the runtime is not positive.
// The result is not clamped: a position past the runtime reports >100.
func progressPercent(positionTicks *int64, runtimeTicks int64) string {
	if positionTicks == nil || runtimeTicks <= 0 {
		return "0"
	}
	pct := math.Round(100 * float64(*positionTicks) / float64(runtimeTicks))
	return strconv.Itoa(int(pct))
}

// activityVerb maps the media type to a presence verb.
func activityVerb(mediaType string) string {
	if strings.EqualFold(mediaType, "Audio") {
		return "Listening"
	}
	return "Watching"
}

// joinGenres joins the first [maxGenres] genres with ", ".
func joinGenres(genres []string) string {
	if len(genres) > maxGenres {
		genres = genres[:maxGenres]
	}
	return strings.Join(genres, ", ")
}
