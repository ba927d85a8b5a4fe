package activities

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	pw "github.com/playwright-community/playwright-go"

	"rewardsbot/botlog"
	"rewardsbot/interact"
	"rewardsbot/selector"
	"rewardsbot/throttle"
)

const (
	defaultMaxCandidates  = 6
	defaultMaxTabs        = 3
	defaultHandlerRetries = 2
	defaultHandlerTimeout = 2 * time.Minute
)

// Stats receives run counters for observability. All methods are invoked
// from the single orchestrator goroutine.
type Stats interface {
	Attempted()
	Completed()
	Failed()
	Multiplier(float64)
}

// Orchestrator sequences a set of activities on a dashboard page: resolve
// selectors, click through the interaction protocol, dispatch the
// type-specific handler, and pace itself on the outcome stream. One bad
// activity never aborts the batch.
type Orchestrator struct {
	Log      botlog.Logger
	Throttle *throttle.Throttle
	Handlers HandlerRegistry

	// Diagnose captures page diagnostics on handler failure. Optional,
	// fire-and-forget.
	Diagnose func(page pw.Page, tag string)
	// Publish emits an activity outcome event. Optional.
	Publish func(a Activity, kind Kind, status string)
	// HintFor supplies an externally owned punch-card locator hint tried
	// before all resolved candidates. Optional.
	HintFor func(a Activity) string
	// Stats sink. Optional.
	Stats Stats

	// BaseURL is the activity set's starting URL; the orchestrator
	// re-navigates when the page has drifted away from it.
	BaseURL string

	HandlerTimeout time.Duration
	HandlerRetries int
	MaxCandidates  int
	MaxTabs        int
	ClickAttempts  int
	PauseBase      time.Duration
	PauseJitter    time.Duration

	rng       *rand.Rand
	resolveFn func(page pw.Page, t selector.Target, hint string) []string
	clickFn   func(page pw.Page, candidates []string, cap int) (interact.ClickResult, string)
}

func NewOrchestrator(log botlog.Logger, th *throttle.Throttle) *Orchestrator {
	if log == nil {
		log = botlog.Nop{}
	}
	if th == nil {
		th = throttle.New()
	}
	resolver := selector.New(log)
	o := &Orchestrator{
		Log:            log,
		Throttle:       th,
		Handlers:       DefaultHandlers(),
		HandlerTimeout: defaultHandlerTimeout,
		HandlerRetries: defaultHandlerRetries,
		MaxCandidates:  defaultMaxCandidates,
		MaxTabs:        defaultMaxTabs,
		PauseBase:      time.Second,
		PauseJitter:    2 * time.Second,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	o.resolveFn = resolver.Resolve
	o.clickFn = func(page pw.Page, candidates []string, cap int) (interact.ClickResult, string) {
		proto := interact.ProtocolFor(page, o.ClickAttempts, o.Log)
		return proto.ClickAny(candidates, cap)
	}
	return o
}

// Run drives the full bounded re-run policy: one pass over the shuffled
// set, then one more over whatever is still incomplete.
func (o *Orchestrator) Run(page pw.Page, acts []Activity, punch *PunchCard) []string {
	completed := o.SolveActivities(page, acts, punch)
	done := make(map[string]bool, len(completed))
	for _, id := range completed {
		done[id] = true
	}

	var remaining []Activity
	for _, a := range acts {
		if a.Eligible() && a.OfferID != "" && !done[a.OfferID] {
			remaining = append(remaining, a)
		}
	}
	if len(remaining) == 0 {
		return completed
	}

	o.Log.Printf("second pass over %d remaining activities", len(remaining))
	for _, id := range o.SolveActivities(page, remaining, punch) {
		if !done[id] {
			done[id] = true
			completed = append(completed, id)
		}
	}
	return completed
}

// SolveActivities makes one pass over the activities in shuffled order and
// returns the offer ids whose handlers completed.
func (o *Orchestrator) SolveActivities(page pw.Page, acts []Activity, punch *PunchCard) []string {
	queue := make([]Activity, len(acts))
	copy(queue, acts)
	o.rng.Shuffle(len(queue), func(i, j int) {
		queue[i], queue[j] = queue[j], queue[i]
	})

	var completed []string
	for _, a := range queue {
		if !a.Eligible() {
			continue
		}
		kind := Classify(a)
		if kind == KindUnsupported {
			o.Log.Printf("skipping unsupported activity %q (type %q)", a.Title, a.PromotionType)
			continue
		}

		o.statAttempted()
		if err := o.solveOne(page, a, kind, punch); err != nil {
			o.Log.Warnf("activity %q failed: %v", a.Title, err)
			o.Throttle.Record(false)
			o.statFailed()
			o.publish(a, kind, "failed")
			continue
		}
		o.Throttle.Record(true)
		o.statCompleted()
		o.publish(a, kind, "completed")
		if a.OfferID != "" {
			completed = append(completed, a.OfferID)
		}
	}
	o.Log.Printf("pass finished: %d/%d completed", len(completed), len(queue))
	return completed
}

// SolvePunchCard navigates to the card's parent destination and solves its
// child activities there.
func (o *Orchestrator) SolvePunchCard(page pw.Page, punch PunchCard) []string {
	if !punch.Uncompleted() {
		return nil
	}
	if page != nil && punch.ParentPromotion.DestinationURL != "" {
		if _, err := page.Goto(punch.ParentPromotion.DestinationURL, pw.PageGotoOptions{
			WaitUntil: pw.WaitUntilStateDomcontentloaded,
			Timeout:   pw.Float(30000),
		}); err != nil {
			o.Log.Warnf("punch card navigation failed: %v", err)
			return nil
		}
	}
	return o.Run(page, punch.ChildPromotions, &punch)
}

func (o *Orchestrator) solveOne(page pw.Page, a Activity, kind Kind, punch *PunchCard) error {
	page = o.normalizeTabs(page)
	o.ensureBaseURL(page)

	o.Throttle.Pause(o.PauseBase, o.PauseJitter)
	o.statMultiplier()
	o.warmupScroll(page)

	hint := ""
	if punch != nil && o.HintFor != nil {
		hint = o.HintFor(a)
	}
	candidates := o.resolveFn(page, selector.Target{
		OfferID:        a.OfferID,
		Name:           a.Name,
		Title:          a.Title,
		DestinationURL: a.DestinationURL,
	}, hint)

	res, sel := o.clickFn(page, candidates, o.MaxCandidates)
	if !res.Success {
		return fmt.Errorf("no candidate clickable: %s", res.Reason)
	}
	o.Log.Printf("opened %q via %q", a.Title, sel)

	target := page
	if res.Popup != nil {
		target = res.Popup
		defer func() {
			interact.Forget(target)
			_ = target.Close()
		}()
	}

	handler, ok := o.Handlers[kind]
	if !ok {
		return fmt.Errorf("no handler registered for kind %s", kind)
	}
	return o.runHandler(handler, target, a, kind)
}

// runHandler retries the handler a bounded number of times, racing each
// attempt against the configured timeout. On timeout the attempt's work is
// abandoned, not killed; the goroutine drains into the buffered channel.
func (o *Orchestrator) runHandler(handler Handler, page pw.Page, a Activity, kind Kind) error {
	retries := o.HandlerRetries
	if retries <= 0 {
		retries = 1
	}
	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		done := make(chan error, 1)
		go func() {
			done <- handler(page, a, o.Log)
		}()

		select {
		case err := <-done:
			if err == nil {
				return nil
			}
			lastErr = err
		case <-time.After(o.HandlerTimeout):
			lastErr = fmt.Errorf("%s handler timed out after %v", kind, o.HandlerTimeout)
		}
		o.Log.Warnf("%s handler attempt %d/%d for %q: %v", kind, attempt, retries, a.Title, lastErr)
		o.diagnose(page, fmt.Sprintf("%s-failure", kind))
	}
	return lastErr
}

// normalizeTabs switches to the most recent tab and closes the oldest ones
// beyond the cap, keeping the first (dashboard) tab alive.
func (o *Orchestrator) normalizeTabs(page pw.Page) pw.Page {
	if page == nil {
		return nil
	}
	ctx := page.Context()
	if ctx == nil {
		return page
	}
	pages := ctx.Pages()
	for len(pages) > o.MaxTabs && len(pages) > 1 {
		interact.Forget(pages[1])
		if err := pages[1].Close(); err != nil {
			break
		}
		pages = ctx.Pages()
	}
	if len(pages) == 0 {
		return page
	}
	active := pages[len(pages)-1]
	_ = active.BringToFront()
	return active
}

// ensureBaseURL re-navigates when the active tab drifted away from the
// activity set's starting URL.
func (o *Orchestrator) ensureBaseURL(page pw.Page) {
	if page == nil || o.BaseURL == "" {
		return
	}
	if strings.HasPrefix(page.URL(), o.BaseURL) {
		return
	}
	if _, err := page.Goto(o.BaseURL, pw.PageGotoOptions{
		WaitUntil: pw.WaitUntilStateDomcontentloaded,
		Timeout:   pw.Float(30000),
	}); err != nil {
		o.Log.Warnf("re-navigation to %s failed: %v", o.BaseURL, err)
	}
}

// warmupScroll wiggles the page a little before interacting, the way a
// human would orient themselves.
func (o *Orchestrator) warmupScroll(page pw.Page) {
	if page == nil {
		return
	}
	down := float64(200 + o.rng.Intn(500))
	_ = page.Mouse().Wheel(0, down)
	time.Sleep(time.Duration(150+o.rng.Intn(250)) * time.Millisecond)
	_ = page.Mouse().Wheel(0, -down/2)
}

func (o *Orchestrator) diagnose(page pw.Page, tag string) {
	if o.Diagnose == nil {
		return
	}
	o.Diagnose(page, tag)
}

func (o *Orchestrator) publish(a Activity, kind Kind, status string) {
	if o.Publish == nil {
		return
	}
	o.Publish(a, kind, status)
}

func (o *Orchestrator) statAttempted() {
	if o.Stats != nil {
		o.Stats.Attempted()
	}
}

func (o *Orchestrator) statCompleted() {
	if o.Stats != nil {
		o.Stats.Completed()
	}
}

func (o *Orchestrator) statFailed() {
	if o.Stats != nil {
		o.Stats.Failed()
	}
}

func (o *Orchestrator) statMultiplier() {
	if o.Stats != nil {
		o.Stats.Multiplier(o.Throttle.Multiplier())
	}
}
