package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/promptcap/capture"
)

//go:embed send_hook.js
var sendHookJS string

const bindingName = "__promptcap_send"

// sendPayload is what send_hook.js posts through the binding.
type sendPayload struct {
	Text string `json:"text"`
	HTML string `json:"html"`
	At   int64  `json:"at"` // epoch ms
}

// decodeSend turns a binding payload into a capture event for pageURL.
func decodeSend(payload, pageURL string) (capture.Event, error) {
	var sp sendPayload
	if err := json.Unmarshal([]byte(payload), &sp); err != nil {
		return capture.Event{}, fmt.Errorf("browser: send payload: %w", err)
	}
	if strings.TrimSpace(sp.Text) == "" && sp.HTML == "" {
		return capture.Event{}, fmt.Errorf("browser: empty send payload")
	}
	ev := capture.Event{Text: sp.Text, HTML: sp.HTML, URL: pageURL}
	if sp.At > 0 {
		ev.At = time.UnixMilli(sp.At)
	}
	return ev, nil
}

// SendSource returns a capture.Source that hooks the page's Enter key and
// send buttons. The hook is reinstalled on every navigation.
func (p *Page) SendSource() capture.Source {
	return capture.SourceFunc(p.runSendHook)
}

func (p *Page) runSendHook(ctx context.Context, out chan<- capture.Event) error {
	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(p.page); err != nil {
		p.logger.Warn("browser: addBinding failed (may already exist)", "error", err)
	}
	remove, err := p.page.EvalOnNewDocument(sendHookJS)
	if err != nil {
		return fmt.Errorf("browser: install send hook: %w", err)
	}
	defer remove()
	if _, err := p.page.Eval(`() => {` + sendHookJS + `}`); err != nil {
		return fmt.Errorf("browser: inject send hook: %w", err)
	}

	// Track the URL from navigation events; the handlers run on the event
	// loop and must not issue CDP calls themselves.
	pageURL := p.URL()
	wait := p.page.Context(ctx).EachEvent(func(e *proto.PageFrameNavigated) {
		if e.Frame.ParentID == "" {
			pageURL = e.Frame.URL
		}
	}, func(e *proto.PageNavigatedWithinDocument) {
		pageURL = e.URL
	}, func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		ev, err := decodeSend(e.Payload, pageURL)
		if err != nil {
			p.logger.Debug("browser: send hook", "error", err)
			return
		}
		select {
		case out <- ev:
		case <-ctx.Done():
		}
	})
	wait()
	return nil
}
