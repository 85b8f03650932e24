package presence

import "tools.zach/dev/jellycord/internal/jellyfin"

// ///////////////////////////////////////////////
// Session Selector
// ///////////////////////////////////////////////

// SelectSession picks the single session whose presence should be
// published. Sessions without a playing item, and sessions matched by the
// ignore filter, are skipped. Among the rest, a playing session always
// beats a paused one regardless of recency; ties break by most recent
// LastActivityDate; remaining ties keep input order, so selection is
// deterministic and total. Returns nil when no session is eligible.
func SelectSession(sessions []jellyfin.Session, ignored func(deviceName, clientName string) bool) *jellyfin.Session {
	var best *jellyfin.Session
	for i := range sessions {
		s := &sessions[i]
		if s.NowPlayingItem == nil {
			continue
		}
		if ignored != nil && ignored(s.DeviceName, s.Client) {
			continue
		}
		if best == nil || betterSession(s, best) {
			best = s
		}
	}
	return best
}

// betterSession reports whether a should be selected over b. Only a
// strictly better session wins, which keeps selection stable for ties.
func betterSession(a, b *jellyfin.Session) bool {
	ap, bp := isPaused(a), isPaused(b)
	if ap != bp {
		return !ap
	}
	return a.LastActivityDate.After(b.LastActivityDate)
}

// isPaused reports the session's paused state; a missing play state
// counts as playing.
func isPaused(s *jellyfin.Session) bool {
	return s.PlayState != nil && s.PlayState.IsPaused
}
