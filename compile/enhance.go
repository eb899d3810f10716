package compile

import (
	"context"
	"time"

	"github.com/hazyhaar/promptcap/prompt"
)

// Enhance publishes the local summary immediately, then races the cloud
// path against RaceTimeout. A cloud result that arrives in time is
// published too and returned; otherwise the local summary is final and no
// further cloud attempt is made. publish may be nil.
func (p *Pipeline) Enhance(ctx context.Context, prompts []prompt.Prompt, opts Options, publish func(*prompt.SummaryResult)) (*prompt.SummaryResult, error) {
	local, err := Local(prompts)
	if err != nil {
		return nil, err
	}
	if publish == nil {
		publish = func(*prompt.SummaryResult) {}
	}
	publish(local)

	cctx, cancel := context.WithTimeout(ctx, p.cfg.RaceTimeout)
	defer cancel()

	type outcome struct {
		res *prompt.SummaryResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := p.Cloud(cctx, prompts, opts)
		done <- outcome{res, err}
	}()

	timer := time.NewTimer(p.cfg.RaceTimeout)
	defer timer.Stop()

	select {
	case o := <-done:
		if o.err != nil {
			return local, nil
		}
		publish(o.res)
		return o.res, nil
	case <-timer.C:
		p.cfg.Logger.Info("compile: cloud race timed out, keeping local summary",
			"timeout_ms", p.cfg.RaceTimeout.Milliseconds())
		return local, nil
	case <-ctx.Done():
		return local, nil
	}
}
