package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tools.zach/dev/jellycord/internal/config"
	"tools.zach/dev/jellycord/internal/jellyfin"
)

// ErrUnauthorized is returned when no principal identity can be resolved:
// the configured token is rejected or belongs to no user.
var ErrUnauthorized = errors.New("presence: principal identity could not be resolved")

// SessionSource is the host query capability the resolver consumes.
// *jellyfin.Client satisfies it.
type SessionSource interface {
	// Sessions returns all active sessions on the server.
	Sessions(ctx context.Context) ([]jellyfin.Session, error)
	// CurrentUser returns the user the API token belongs to.
	CurrentUser(ctx context.Context) (*jellyfin.User, error)
}

// ///////////////////////////////////////////////
// Resolver
// ///////////////////////////////////////////////

// Resolver runs the full resolution pipeline: principal resolution,
// session selection, field derivation, template rendering, timestamp
// calculation, and artwork/link resolution.
//
// Resolution is stateless: every call re-fetches sessions and recomputes
// the payload from scratch, so concurrent resolutions are independent.
type Resolver struct {
	source SessionSource
	// now is the clock used for timestamp anchoring; replaced in tests.
	now func() time.Time
}

// NewResolver creates a Resolver over the given session source.
func NewResolver(source SessionSource) *Resolver {
	return &Resolver{source: source, now: time.Now}
}

// Resolve runs one resolution cycle against a config snapshot.
//
// Errors: [ErrUnauthorized] when the principal cannot be resolved; any
// other error means the session query failed and the cycle should be
// reported as an upstream failure. A principal with no eligible session
// is not an error: the result is exactly {active: false}.
func (r *Resolver) Resolve(ctx context.Context, cfg *config.Config) (*Payload, error) {
	principal, err := r.resolvePrincipal(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sessions, err := r.source.Sessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}

	own := sessions[:0:0]
	for _, s := range sessions {
		if s.UserID == principal {
			own = append(own, s)
		}
	}

	selected := SelectSession(own, cfg.IsIgnoredSession)
	if selected == nil {
		return &Payload{Active: false}, nil
	}

	return r.build(selected, cfg), nil
}

// resolvePrincipal returns the user ID whose sessions are considered.
// A configured user_id pins the principal; otherwise the token's own
// user is looked up. A credential rejection maps to [ErrUnauthorized];
// any other lookup failure (timeout, server error) stays an upstream
// failure so an outage is not mistaken for a bad api_key.
func (r *Resolver) resolvePrincipal(ctx context.Context, cfg *config.Config) (string, error) {
	if cfg.Jellyfin.UserID != "" {
		return cfg.Jellyfin.UserID, nil
	}
	user, err := r.source.CurrentUser(ctx)
	if err != nil {
		if errors.Is(err, jellyfin.ErrAccessDenied) {
			return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		return "", fmt.Errorf("resolve principal: %w", err)
	}
	if user.ID == "" {
		return "", ErrUnauthorized
	}
	return user.ID, nil
}

// build assembles the payload for one selected session.
func (r *Resolver) build(session *jellyfin.Session, cfg *config.Config) *Payload {
	item := session.NowPlayingItem
	ps := session.PlayState

	fields := Derive(item, ps)
	set := cfg.TemplatesFor(config.CategoryFor(item.Type, item.MediaType))

	// First rendering pass: everything except {time_left}.
	details := Render(set.Details, fields)
	state := Render(set.State, fields)
	largeText := Render(set.LargeText, fields)
	smallText := Render(set.SmallText, fields)

	var positionTicks *int64
	paused := false
	if ps != nil {
		positionTicks = ps.PositionTicks
		paused = ps.IsPaused
	}
	ts := ComputeTimestamps(r.now(), positionTicks, item.RunTimeTicks, paused, cfg.Display.IncludeTimestamps)

	// Second pass now that the remaining time is known.
	details = RenderTimeLeft(details, ts.TimeLeft)
	state = RenderTimeLeft(state, ts.TimeLeft)
	largeText = RenderTimeLeft(largeText, ts.TimeLeft)
	smallText = RenderTimeLeft(smallText, ts.TimeLeft)

	p := &Payload{
		Active:         true,
		Details:        details,
		State:          state,
		LargeImageKey:  cfg.Display.LargeImageKey,
		LargeImageText: largeText,
		SmallImageKey:  cfg.Display.SmallImageKey,
		SmallImageText: smallText,
		StartTimestamp: ts.Start,
		EndTimestamp:   ts.End,
		ItemID:         item.ID,
		ItemType:       item.Type,
		Title:          item.Name,
		SeriesName:     fields.SeriesName,
		Activity:       fields.Activity,
		Paused:         paused,
	}

	art := ResolveArtwork(item, cfg.Display)
	switch {
	case art.AssetKey != "":
		p.LargeImageKey = art.AssetKey
	case art.CoverURL != "":
		p.CoverURL = art.CoverURL
		if cfg.Display.PublicImageURL != "" {
			// An absolute cover URL can be shown directly by Discord.
			p.LargeImageKey = art.CoverURL
		}
	default:
		if cfg.Display.DefaultImageKey != "" {
			p.LargeImageKey = cfg.Display.DefaultImageKey
		}
	}

	p.Links = ResolveLinks(item)
	return p
}
