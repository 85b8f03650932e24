// Package reconcile owns the publishing side of the pipeline: it maps a
// resolved presence payload onto Discord activity fields, applies textual
// repair heuristics for under-specified episodic metadata, and issues
// exactly one set or clear call per state change against the transport.
package reconcile

import (
	"log/slog"
	"strings"
	"sync"

	"tools.zach/dev/jellycord/internal/discord"
	"tools.zach/dev/jellycord/internal/presence"
)

// discordMaxLen is the maximum character length Discord accepts for the
// activity Details and State fields.
const discordMaxLen = 128

// maxButtons is the number of buttons Discord renders on an activity.
const maxButtons = 2

// Transport is the narrow presence-publish capability the reconciler
// drives. *discord.Client satisfies it.
type Transport interface {
	SetActivity(activity *discord.Activity) error
	ClearActivity() error
}

// ///////////////////////////////////////////////
// Reconciler
// ///////////////////////////////////////////////

// Reconciler is a two-state machine: Idle (nothing published) and
// Published (some activity currently set). Applying an active payload
// publishes it; applying an inactive payload while Published issues one
// clear call. Clearing while already Idle is a no-op, so clears are
// idempotent.
//
// Publish calls are serialized by an internal mutex so a clear-then-set
// race can never reorder relative to a newer update.
type Reconciler struct {
	transport Transport

	mu sync.Mutex
	// published is true while an activity is set on the transport.
	published bool
	// lastHash identifies the published activity so identical payloads
	// skip the redundant re-send.
	lastHash string
}

// New creates a Reconciler in the Idle state over the given transport.
func New(transport Transport) *Reconciler {
	return &Reconciler{transport: transport}
}

// Apply reconciles the transport against one resolved payload: an active
// payload is repaired, mapped, and set; an inactive (or nil) payload
// clears any published activity.
func (r *Reconciler) Apply(p *presence.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p == nil || !p.Active {
		return r.clearLocked()
	}

	activity := buildActivity(p)
	hash := activity.Hash()
	if r.published && hash == r.lastHash {
		// No-op re-send; the transport already shows this activity.
		return nil
	}

	if err := r.transport.SetActivity(activity); err != nil {
		return err
	}
	r.published = true
	r.lastHash = hash
	return nil
}

// Clear transitions to Idle, issuing one clear call if anything is
// published. Safe to call repeatedly.
func (r *Reconciler) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clearLocked()
}

// Reset forgets the published state without touching the transport.
// Called after a transport reconnect, when whatever was set before the
// connection dropped is gone.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = false
	r.lastHash = ""
}

// Published reports whether an activity is currently set.
func (r *Reconciler) Published() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.published
}

// clearLocked issues the clear call when needed. The caller must hold r.mu.
func (r *Reconciler) clearLocked() error {
	if !r.published {
		return nil
	}
	if err := r.transport.ClearActivity(); err != nil {
		return err
	}
	r.published = false
	r.lastHash = ""
	return nil
}

// ///////////////////////////////////////////////
// Activity Mapping
// ///////////////////////////////////////////////

// buildActivity maps a payload onto Discord activity fields, applying the
// repair heuristics for episodic media first.
func buildActivity(p *presence.Payload) *discord.Activity {
	details := p.Details
	state := p.State

	if strings.EqualFold(p.ItemType, "Episode") {
		repairedDetails := repairDetails(details, p.Title, p.SeriesName)
		if repairedDetails != details {
			slog.Debug("repaired details from title", "title", p.Title, "details", repairedDetails)
			details = repairedDetails
		}
		state = repairState(state, p.Title, p.SeriesName)
	}

	activity := &discord.Activity{
		Type:    activityType(p.Activity),
		Details: truncate(details, discordMaxLen),
		State:   truncate(state, discordMaxLen),
		Assets: &discord.Assets{
			LargeImage: p.LargeImageKey,
			LargeText:  p.LargeImageText,
			SmallImage: p.SmallImageKey,
			SmallText:  p.SmallImageText,
		},
	}

	if p.StartTimestamp > 0 {
		activity.Timestamps = &discord.Timestamps{
			Start: p.StartTimestamp,
			End:   p.EndTimestamp,
		}
	}

	for _, l := range p.Links {
		if len(activity.Buttons) == maxButtons {
			break
		}
		activity.Buttons = append(activity.Buttons, discord.Button{Label: l.Label, URL: l.URL})
	}

	return activity
}

// activityType maps the derived activity verb onto Discord's numeric
// activity types.
func activityType(verb string) int {
	if strings.EqualFold(verb, "Listening") {
		return discord.TypeListening
	}
	return discord.TypeWatching
}

// truncate limits s to max runes, appending an ellipsis when cut.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
