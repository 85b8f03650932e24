// Package presence implements the presence resolution pipeline: selecting
// the relevant Jellyfin playback session, deriving display fields from its
// metadata, rendering configured templates, computing timestamps, and
// resolving artwork and external links into one flat payload.
package presence

// Link is one external reference attached to the presence (e.g. an IMDb page).
type Link struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Payload is the pipeline's output contract. When Active is false all
// other fields are zero and must be ignored by consumers.
type Payload struct {
	// Active reports whether any eligible session is playing.
	Active bool `json:"active"`

	// Details is the rendered top presence line.
	Details string `json:"details,omitempty"`
	// State is the rendered bottom presence line.
	State string `json:"state,omitempty"`

	// LargeImageKey is the Discord asset key or cover URL for the large image.
	LargeImageKey string `json:"large_image_key,omitempty"`
	// LargeImageText is the rendered large image tooltip.
	LargeImageText string `json:"large_image_text,omitempty"`
	// SmallImageKey is the Discord asset key for the small image.
	SmallImageKey string `json:"small_image_key,omitempty"`
	// SmallImageText is the rendered small image tooltip.
	SmallImageText string `json:"small_image_text,omitempty"`

	// StartTimestamp is the Unix second playback effectively started at,
	// back-dated by the current position. Zero when timestamps are disabled
	// or the position is unknown.
	StartTimestamp int64 `json:"start_timestamp,omitempty"`
	// EndTimestamp is the Unix second playback will finish at. Zero when
	// the runtime is unknown or playback is paused.
	EndTimestamp int64 `json:"end_timestamp,omitempty"`

	// CoverURL is the resolved cover image reference (relative path or
	// absolute URL). Empty when no cover could be resolved.
	CoverURL string `json:"cover_url,omitempty"`
	// Links are external reference links derived from provider IDs.
	Links []Link `json:"links,omitempty"`

	// Raw item metadata carried for the reconciler's repair heuristics.
	ItemID     string `json:"item_id,omitempty"`
	ItemType   string `json:"item_type,omitempty"`
	Title      string `json:"title,omitempty"`
	SeriesName string `json:"series_name,omitempty"`
	// Activity is the verb for the presence activity: "Watching" or "Listening".
	Activity string `json:"activity,omitempty"`
	// Paused reports whether the selected session is paused.
	Paused bool `json:"paused,omitempty"`
}
