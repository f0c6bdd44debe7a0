package notifier

import (
	"context"
	"strconv"

	"github.com/gosimple/slug"

	"flagcast/internal/platform"
	"flagcast/internal/settings"
	logx "flagcast/pkg/logx"
)

// AnnounceSolve is the solve-recorded listener.
//
// Policy, in order: solve notifications disabled -> nothing; ordinal past
// the configured limit -> nothing; first solve -> first-blood template;
// otherwise the normal template with the ordinal. The ordinal is the
// persisted solve count read after the insert committed, so it includes the
// new solver. Concurrent solves may race the count; first blood is
// best-effort, not exactly-once.
func (s *Service) AnnounceSolve(ctx context.Context, ev platform.SolveRecord) {
	snap := s.settings.Load(ctx)
	if !snap.SolveEnabled {
		s.log.Debug("solve notifications disabled", logx.Int64("challenge_id", ev.Challenge.ID))
		return
	}

	ordinal, err := s.counter.CountSolves(ctx, ev.Challenge.ID)
	if err != nil {
		s.log.Warn("solve count failed; notification skipped",
			logx.Int64("challenge_id", ev.Challenge.ID),
			logx.Err(err),
		)
		return
	}
	if ordinal < 1 {
		// The event's own solve has committed; never announce below 1.
		ordinal = 1
	}

	if snap.SolveLimit > 0 && ordinal > snap.SolveLimit {
		s.log.Debug("solve past announce limit",
			logx.Int64("challenge_id", ev.Challenge.ID),
			logx.Int("ordinal", ordinal),
			logx.Int("limit", snap.SolveLimit),
		)
		return
	}

	ch := ev.Challenge
	vars := map[string]string{
		"user":      ev.Solve.UserName,
		"challenge": ch.Name,
		"name":      ch.Name,
		"num":       strconv.Itoa(ordinal),
	}

	var text string
	if ordinal == 1 {
		text = s.renderOrFallback(snap.FirstBloodTemplate, settings.DefaultFirstBloodTemplate, vars)
	} else {
		text = s.renderOrFallback(snap.SolveTemplate, settings.DefaultSolveTemplate, vars)
	}

	if snap.BaseURL != "" {
		text += "\n\n" + snap.BaseURL + "/challenges#" + slug.Make(ch.Name) + "-" + strconv.FormatInt(ch.ID, 10)
	}

	s.deliver(ctx, snap, "solve", text, snap.SolveThreadID)
}
