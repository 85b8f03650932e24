package presence

import (
	"fmt"
	"log/slog"
	"strings"

	"tools.zach/dev/jellycord/internal/config"
	"tools.zach/dev/jellycord/internal/jellyfin"
)

// ///////////////////////////////////////////////
// Artwork & Link Resolver
// ///////////////////////////////////////////////

// Artwork is the resolved cover reference for one item: either a Discord
// asset key (when covers are uploaded assets) or an image URL/path.
type Artwork struct {
	// AssetKey is the synthesized Discord asset key; empty unless the
	// use_item_cover mode is enabled.
	AssetKey string
	// CoverURL is the image fetch reference: a server-relative path, or
	// an absolute URL when a public image base is configured.
	CoverURL string
}

// ResolveArtwork derives the cover reference for an item. In URL mode,
// episodes prefer the series' primary image over their own so the presence
// shows the show poster rather than a per-episode still, and the zero
// Artwork is returned when no image tag is available. In asset-key mode
// the key is built from the item id alone.
//
// Artwork resolution must never fail the cycle: any panic while deriving
// is recovered and degrades to "no cover".
func ResolveArtwork(item *jellyfin.NowPlayingItem, display config.DisplayConfig) (art Artwork) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("artwork resolution failed", "item", item.ID, "panic", r)
			art = Artwork{}
		}
	}()

	// Asset-key mode does not depend on image tags: the key encodes the
	// playing item's own id and the matching asset is assumed uploaded.
	if display.UseItemCover {
		return Artwork{AssetKey: display.AssetKeyPrefix + strings.ReplaceAll(item.ID, "-", "")}
	}

	coverID, tag := coverImage(item)
	if coverID == "" {
		return Artwork{}
	}

	path := "Items/" + coverID + "/Images/Primary"
	if tag != "" {
		path += "?tag=" + tag
	}

	if display.PublicImageURL != "" {
		sep := "?"
		if tag != "" {
			sep = "&"
		}
		return Artwork{
			CoverURL: strings.TrimRight(display.PublicImageURL, "/") + "/" + path +
				sep + "quality=90&fillHeight=512&fillWidth=512",
		}
	}
	return Artwork{CoverURL: path}
}

// coverImage picks the item whose primary image should be shown and its
// cache tag. Episodes use the series image when one exists; everything
// else uses the item's own primary image.
func coverImage(item *jellyfin.NowPlayingItem) (id, tag string) {
	if strings.EqualFold(item.Type, "Episode") && item.SeriesID != "" && item.SeriesPrimaryImageTag != "" {
		return item.SeriesID, item.SeriesPrimaryImageTag
	}
	if t := item.PrimaryTag(); t != "" {
		return item.ID, t
	}
	return "", ""
}

// ///////////////////////////////////////////////
// External Links
// ///////////////////////////////////////////////

// ResolveLinks builds external catalog links from the item's provider IDs.
// Missing providers simply yield fewer links; the list may be empty.
// Like artwork, link derivation never fails the cycle.
func ResolveLinks(item *jellyfin.NowPlayingItem) (links []Link) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("link resolution failed", "item", item.ID, "panic", r)
			links = nil
		}
	}()

	if id := item.ProviderIDs["Imdb"]; id != "" {
		if !strings.HasPrefix(id, "tt") {
			id = "tt" + id
		}
		links = append(links, Link{
			Label: "IMDb",
			URL:   fmt.Sprintf("https://www.imdb.com/title/%s/", id),
		})
	}

	if id := item.ProviderIDs["Tmdb"]; id != "" {
		kind := "movie"
		if strings.EqualFold(item.Type, "Episode") || strings.EqualFold(item.Type, "Series") {
			kind = "tv"
		}
		links = append(links, Link{
			Label: "TMDB",
			URL:   fmt.Sprintf("https://www.themoviedb.org/%s/%s", kind, id),
		})
	}

	return links
}
