// Tests for artwork and link resolution: series-over-episode cover
// preference, asset-key synthesis, public URL construction, and provider
// link derivation. Exercises [ResolveArtwork] and [ResolveLinks].
package presence

import (
	"testing"

	"tools.zach/dev/jellycord/internal/config"
	"tools.zach/dev/jellycord/internal/jellyfin"
)

// ///////////////////////////////////////////////
// ResolveArtwork
// ///////////////////////////////////////////////

func TestResolveArtwork(t *testing.T) {
	episode := &jellyfin.NowPlayingItem{
		ID:                    "ep-1",
		Type:                  "Episode",
		SeriesID:              "series-1",
		SeriesPrimaryImageTag: "stag",
		PrimaryImageTag:       "etag",
	}
	movie := &jellyfin.NowPlayingItem{
		ID:              "mov-1",
		Type:            "Movie",
		PrimaryImageTag: "mtag",
	}

	tests := []struct {
		name    string
		item    *jellyfin.NowPlayingItem
		display config.DisplayConfig
		want    Artwork
	}{
		{
			name: "episode prefers series cover",
			item: episode,
			want: Artwork{CoverURL: "Items/series-1/Images/Primary?tag=stag"},
		},
		{
			name: "episode without series image uses own",
			item: &jellyfin.NowPlayingItem{ID: "ep-2", Type: "Episode", PrimaryImageTag: "etag"},
			want: Artwork{CoverURL: "Items/ep-2/Images/Primary?tag=etag"},
		},
		{
			name: "movie uses its primary image",
			item: movie,
			want: Artwork{CoverURL: "Items/mov-1/Images/Primary?tag=mtag"},
		},
		{
			name: "image tags map fallback",
			item: &jellyfin.NowPlayingItem{ID: "i", Type: "Movie", ImageTags: map[string]string{"Primary": "ptag"}},
			want: Artwork{CoverURL: "Items/i/Images/Primary?tag=ptag"},
		},
		{
			name: "no image yields no cover",
			item: &jellyfin.NowPlayingItem{ID: "bare", Type: "Movie"},
			want: Artwork{},
		},
		{
			name: "asset key mode strips punctuation",
			item: &jellyfin.NowPlayingItem{
				ID:              "ab-cd-ef",
				Type:            "Movie",
				PrimaryImageTag: "tag",
			},
			display: config.DisplayConfig{UseItemCover: true, AssetKeyPrefix: "cover_"},
			want:    Artwork{AssetKey: "cover_abcdef"},
		},
		{
			name: "asset key mode uses the episode's own id, not the series",
			item: &jellyfin.NowPlayingItem{
				ID:                    "aaaa-bbbb",
				Type:                  "Episode",
				SeriesID:              "cccc-dddd",
				SeriesPrimaryImageTag: "stag",
			},
			display: config.DisplayConfig{UseItemCover: true, AssetKeyPrefix: "cover_"},
			want:    Artwork{AssetKey: "cover_aaaabbbb"},
		},
		{
			name:    "asset key mode works without any image tag",
			item:    &jellyfin.NowPlayingItem{ID: "eeee-ffff", Type: "Movie"},
			display: config.DisplayConfig{UseItemCover: true, AssetKeyPrefix: "cover_"},
			want:    Artwork{AssetKey: "cover_eeeeffff"},
		},
		{
			name: "public base URL builds resize query",
			item: movie,
			display: config.DisplayConfig{
				PublicImageURL: "https://media.example.com/",
			},
			want: Artwork{
				CoverURL: "https://media.example.com/Items/mov-1/Images/Primary?tag=mtag&quality=90&fillHeight=512&fillWidth=512",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveArtwork(tt.item, tt.display)
			if got != tt.want {
				t.Errorf("ResolveArtwork() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// ///////////////////////////////////////////////
// ResolveLinks
// ///////////////////////////////////////////////

func TestResolveLinks(t *testing.T) {
	tests := []struct {
		name string
		item *jellyfin.NowPlayingItem
		want []Link
	}{
		{
			name: "imdb with tt prefix",
			item: &jellyfin.NowPlayingItem{Type: "Movie", ProviderIDs: map[string]string{"Imdb": "tt0111161"}},
			want: []Link{{Label: "IMDb", URL: "https://www.imdb.com/title/tt0111161/"}},
		},
		{
			name: "imdb without prefix is normalized",
			item: &jellyfin.NowPlayingItem{Type: "Movie", ProviderIDs: map[string]string{"Imdb": "0111161"}},
			want: []Link{{Label: "IMDb", URL: "https://www.imdb.com/title/tt0111161/"}},
		},
		{
			name: "tmdb movie",
			item: &jellyfin.NowPlayingItem{Type: "Movie", ProviderIDs: map[string]string{"Tmdb": "278"}},
			want: []Link{{Label: "TMDB", URL: "https://www.themoviedb.org/movie/278"}},
		},
		{
			name: "tmdb episode uses tv shape",
			item: &jellyfin.NowPlayingItem{Type: "Episode", ProviderIDs: map[string]string{"Tmdb": "1399"}},
			want: []Link{{Label: "TMDB", URL: "https://www.themoviedb.org/tv/1399"}},
		},
		{
			name: "both providers keep order",
			item: &jellyfin.NowPlayingItem{Type: "Movie", ProviderIDs: map[string]string{
				"Imdb": "tt1", "Tmdb": "2",
			}},
			want: []Link{
				{Label: "IMDb", URL: "https://www.imdb.com/title/tt1/"},
				{Label: "TMDB", URL: "https://www.themoviedb.org/movie/2"},
			},
		},
		{
			name: "no providers yields no links",
			item: &jellyfin.NowPlayingItem{Type: "Movie"},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveLinks(tt.item)
			if len(got) != len(tt.want) {
				t.Fatalf("ResolveLinks() = %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("link[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
