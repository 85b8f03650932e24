package jellyfin

import "time"

// TicksPerSecond is the Jellyfin tick resolution: positions and runtimes
// are reported in 100-nanosecond units.
const TicksPerSecond = 10_000_000

// ///////////////////////////////////////////////
// Session Types
// ///////////////////////////////////////////////

// Session represents one active playback context on the Jellyfin server.
// A user may have several concurrently (one per device). Sessions are
// re-fetched every resolution cycle; nothing here is cached or mutated.
type Session struct {
	ID         string `json:"Id"`
	UserID     string `json:"UserId"`
	UserName   string `json:"UserName"`
	Client     string `json:"Client"`
	DeviceName string `json:"DeviceName"`
	DeviceID   string `json:"DeviceId"`

	// LastActivityDate is the ISO timestamp of the session's last activity,
	// used as the selection tie-breaker.
	LastActivityDate time.Time `json:"LastActivityDate"`

	// NowPlayingItem is nil when the session is idle.
	NowPlayingItem *NowPlayingItem `json:"NowPlayingItem,omitempty"`
	PlayState      *PlayState      `json:"PlayState,omitempty"`
}

// NowPlayingItem is the immutable snapshot of the content a session is
// playing.
type NowPlayingItem struct {
	ID        string `json:"Id"`
	Name      string `json:"Name"`
	Type      string `json:"Type"`      // "Movie", "Episode", "Audio", "MusicAlbum", ...
	MediaType string `json:"MediaType"` // "Video", "Audio"

	// Episode fields. Index numbers are pointers because zero is a valid
	// episode number on some specials.
	SeriesID          string `json:"SeriesId,omitempty"`
	SeriesName        string `json:"SeriesName,omitempty"`
	IndexNumber       *int   `json:"IndexNumber,omitempty"`       // episode/track number
	ParentIndexNumber *int   `json:"ParentIndexNumber,omitempty"` // season/disc number

	// Music fields.
	Album       string   `json:"Album,omitempty"`
	AlbumArtist string   `json:"AlbumArtist,omitempty"`
	Artists     []string `json:"Artists,omitempty"`

	RunTimeTicks int64    `json:"RunTimeTicks,omitempty"`
	Genres       []string `json:"Genres,omitempty"`

	// Images. Jellyfin exposes the primary image tag both as a flat field
	// and inside ImageTags depending on endpoint and version.
	PrimaryImageTag       string            `json:"PrimaryImageTag,omitempty"`
	ImageTags             map[string]string `json:"ImageTags,omitempty"`
	SeriesPrimaryImageTag string            `json:"SeriesPrimaryImageTag,omitempty"`

	// ProviderIDs maps external catalog providers ("Imdb", "Tmdb") to ids.
	ProviderIDs map[string]string `json:"ProviderIds,omitempty"`
}

// PlayState holds the playback position and pause state of a session.
type PlayState struct {
	// PositionTicks is nil while the client has not reported a position.
	PositionTicks *int64 `json:"PositionTicks,omitempty"`
	IsPaused      bool   `json:"IsPaused"`
	CanSeek       bool   `json:"CanSeek"`
	PlayMethod    string `json:"PlayMethod,omitempty"`
}

// User represents a Jellyfin user account.
type User struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

// PrimaryTag returns the item's own primary image tag, checking the flat
// field first and the ImageTags map second.
func (i *NowPlayingItem) PrimaryTag() string {
	if i.PrimaryImageTag != "" {
		return i.PrimaryImageTag
	}
	return i.ImageTags["Primary"]
}
