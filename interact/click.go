package interact

import (
	"math/rand"
	"sync"
	"time"

	pw "github.com/playwright-community/playwright-go"

	"rewardsbot/botlog"
)

const (
	defaultAttempts  = 3
	attachTimeoutMs  = 2000
	clickTimeoutMs   = 3000
	popupWaitTimeout = 3 * time.Second
	backoffBase      = 500 * time.Millisecond
	backoffJitter    = 500 * time.Millisecond
)

// ClickResult is the structured outcome of one click routine. It is always
// returned, never raised.
type ClickResult struct {
	Success   bool
	Reason    Reason
	Popup     pw.Page
	Navigated bool
}

// Protocol performs the layered click state machine against one page:
// ensure attached, ensure visible (escalating to overlay hiding once),
// hover, then click with UI / DOM-dispatch / coordinate fallbacks, all
// under a bounded retry loop.
type Protocol struct {
	page     pw.Page
	log      botlog.Logger
	attempts int
	rng      *rand.Rand

	popupCh chan pw.Page
	navCh   chan struct{}

	// attemptFn and sleepFn are indirected for tests.
	attemptFn func(sel string) ClickResult
	sleepFn   func(time.Duration)
}

// NewProtocol binds a protocol to a page. Popup and navigation listeners
// are armed once here and observed around every click.
func NewProtocol(page pw.Page, attempts int, log botlog.Logger) *Protocol {
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	if log == nil {
		log = botlog.Nop{}
	}
	p := &Protocol{
		page:     page,
		log:      log,
		attempts: attempts,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		popupCh:  make(chan pw.Page, 4),
		navCh:    make(chan struct{}, 4),
	}
	p.attemptFn = p.attempt
	p.sleepFn = time.Sleep
	page.OnPopup(func(popup pw.Page) {
		select {
		case p.popupCh <- popup:
		default:
		}
	})
	page.OnFrameNavigated(func(frame pw.Frame) {
		if frame.ParentFrame() != nil {
			return
		}
		select {
		case p.navCh <- struct{}{}:
		default:
		}
	})
	return p
}

var protoRegistry = struct {
	mu sync.Mutex
	m  map[pw.Page]*Protocol
}{m: make(map[pw.Page]*Protocol)}

// ProtocolFor returns the protocol bound to the page, creating one on first
// use. Popup and navigation listeners are therefore armed once per page, no
// matter how many callers interact with it.
func ProtocolFor(page pw.Page, attempts int, log botlog.Logger) *Protocol {
	protoRegistry.mu.Lock()
	defer protoRegistry.mu.Unlock()
	if p, ok := protoRegistry.m[page]; ok {
		return p
	}
	p := NewProtocol(page, attempts, log)
	protoRegistry.m[page] = p
	return p
}

// Forget drops the page's cached protocol. Call it when closing a page so
// the registry does not accumulate dead handles.
func Forget(page pw.Page) {
	protoRegistry.mu.Lock()
	defer protoRegistry.mu.Unlock()
	delete(protoRegistry.m, page)
}

// Click runs the full routine for one selector. Only retryable reasons
// trigger another attempt; exhausting the attempt budget yields
// max-retries. Hidden overlays are restored after every attempt.
func (p *Protocol) Click(sel string) ClickResult {
	for attempt := 1; attempt <= p.attempts; attempt++ {
		res := p.attemptFn(sel)
		if res.Success {
			return res
		}
		if !Retryable(res.Reason) {
			return res
		}
		if attempt < p.attempts {
			delay := backoffDelay(attempt, p.rng)
			p.log.Printf("click on %q failed (%s), retrying in %v", sel, res.Reason, delay)
			p.sleepFn(delay)
		}
	}
	return ClickResult{Reason: ReasonMaxRetries}
}

// ClickAny walks candidate selectors in resolver order, capped, stopping at
// the first success.
func (p *Protocol) ClickAny(candidates []string, cap int) (ClickResult, string) {
	if cap <= 0 || cap > len(candidates) {
		cap = len(candidates)
	}
	var last ClickResult
	for _, sel := range candidates[:cap] {
		res := p.Click(sel)
		if res.Success {
			return res, sel
		}
		p.log.Printf("candidate %q exhausted: %s", sel, res.Reason)
		last = res
	}
	if last.Reason == ReasonNone {
		last.Reason = ReasonNotFound
	}
	return last, ""
}

func (p *Protocol) attempt(sel string) ClickResult {
	defer RestoreHidden(p.page)

	loc := p.page.Locator(sel).First()

	// Attachment wait is best effort; visibility checks below are the
	// real gate.
	_ = loc.WaitFor(pw.LocatorWaitForOptions{
		State:   pw.WaitForSelectorStateAttached,
		Timeout: pw.Float(attachTimeoutMs),
	})

	ok, reason := Interactable(p.page, sel)
	if !ok && (reason == ReasonCSSHidden || reason == ReasonZeroBox) {
		if n := HideOverlapping(p.page, sel); n > 0 {
			p.log.Printf("hid %d overlay(s) obstructing %q", n, sel)
		}
		ok, reason = Interactable(p.page, sel)
	}
	if !ok {
		return ClickResult{Reason: reason}
	}

	p.hover(loc)
	p.drainSignals()

	if !p.clickWithFallbacks(loc) {
		return ClickResult{Reason: ReasonClickFailed}
	}
	return p.awaitOutcome()
}

// hover simulates a human approach: a stepped pointer move into the
// element's box, then a locator hover. Both are best effort.
func (p *Protocol) hover(loc pw.Locator) {
	if box, err := loc.BoundingBox(); err == nil && box != nil {
		x := box.X + box.Width/2 + float64(p.rng.Intn(7)-3)
		y := box.Y + box.Height/2 + float64(p.rng.Intn(5)-2)
		_ = p.page.Mouse().Move(x, y, pw.MouseMoveOptions{Steps: pw.Int(8)})
	}
	_ = loc.Hover(pw.LocatorHoverOptions{Timeout: pw.Float(attachTimeoutMs)})
}

// clickWithFallbacks tries a UI click, then a DOM-level dispatch, then a
// coordinate click inside the element's box.
func (p *Protocol) clickWithFallbacks(loc pw.Locator) bool {
	if err := loc.Click(pw.LocatorClickOptions{Timeout: pw.Float(clickTimeoutMs)}); err == nil {
		return true
	} else {
		p.log.Printf("ui click failed: %v", err)
	}

	if err := loc.DispatchEvent("click", nil); err == nil {
		return true
	} else {
		p.log.Printf("dom click failed: %v", err)
	}

	box, err := loc.BoundingBox()
	if err != nil || box == nil || box.Width <= 0 || box.Height <= 0 {
		return false
	}
	x := box.X + box.Width/2
	y := box.Y + box.Height/2
	if err := p.page.Mouse().Click(x, y); err != nil {
		p.log.Printf("coordinate click failed: %v", err)
		return false
	}
	return true
}

// awaitOutcome watches the armed popup/navigation signals for a bounded
// window. A popup handle wins over a plain navigation; absent both, the
// click itself is the ground truth.
func (p *Protocol) awaitOutcome() ClickResult {
	timer := time.NewTimer(popupWaitTimeout)
	defer timer.Stop()

	var navigated bool
	for {
		select {
		case popup := <-p.popupCh:
			return ClickResult{Success: true, Popup: popup, Navigated: navigated}
		case <-p.navCh:
			navigated = true
			// Keep listening briefly: a popup may still arrive and is
			// the preferred signal.
			select {
			case popup := <-p.popupCh:
				return ClickResult{Success: true, Popup: popup, Navigated: true}
			case <-time.After(250 * time.Millisecond):
				return ClickResult{Success: true, Navigated: true}
			}
		case <-timer.C:
			return ClickResult{Success: true}
		}
	}
}

func (p *Protocol) drainSignals() {
	for {
		select {
		case <-p.popupCh:
		case <-p.navCh:
		default:
			return
		}
	}
}

// backoffDelay grows linearly with the attempt index plus random jitter.
func backoffDelay(attempt int, rng *rand.Rand) time.Duration {
	return time.Duration(attempt)*backoffBase + time.Duration(rng.Int63n(int64(backoffJitter)))
}
