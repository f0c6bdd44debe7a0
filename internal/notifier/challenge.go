package notifier

import (
	"context"
	"strconv"

	"flagcast/internal/platform"
	"flagcast/internal/settings"
	logx "flagcast/pkg/logx"
)

// AnnounceChallenge is the challenge-updated listener. It fires a message
// only on the edge into "visible": a challenge that was already visible,
// stays hidden, or transitions away from visible is a no-op.
func (s *Service) AnnounceChallenge(ctx context.Context, ev platform.ChallengeUpdate) {
	if ev.Old == platform.StateVisible || ev.New != platform.StateVisible {
		return
	}

	snap := s.settings.Load(ctx)
	if !snap.ChallengeEnabled {
		s.log.Debug("challenge notifications disabled", logx.Int64("challenge_id", ev.Challenge.ID))
		return
	}

	ch := ev.Challenge
	vars := map[string]string{
		"name":      ch.Name,
		"challenge": ch.Name,
		"category":  ch.Category,
		"value":     strconv.Itoa(ch.Value),
	}
	text := s.renderOrFallback(snap.ChallengeTemplate, settings.DefaultChallengeTemplate, vars)
	if snap.BaseURL != "" {
		text += "\n\nAdmin: " + snap.BaseURL + "/admin/challenges"
	}

	s.deliver(ctx, snap, "challenge", text, snap.ChallengeThreadID)
}
