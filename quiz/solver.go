package quiz

import (
	"errors"
	"fmt"
	"strings"
	"time"

	pw "github.com/playwright-community/playwright-go"

	"rewardsbot/botlog"
	"rewardsbot/interact"
)

const (
	startSelector    = "#rqStartQuiz"
	optionSelector   = "[id^='rqAnswerOption']"
	optionIDPrefix   = "rqAnswerOption"
	bruteForceCap    = 40
	questionBruteCap = 8
	refreshAttempts  = 20
	refreshInterval  = 500 * time.Millisecond
)

// ErrRefreshFailed means a post-click state refresh never materialized;
// the current quiz attempt is unrecoverable.
var ErrRefreshFailed = errors.New("quiz state refresh never arrived")

// ErrExhausted means brute force spent its whole attempt budget without a
// completion signal.
var ErrExhausted = errors.New("brute force budget exhausted without completion")

// Solver drives one quiz on an already-opened quiz page.
type Solver struct {
	page  pw.Page
	proto *interact.Protocol
	log   botlog.Logger

	// Page-touching calls are indirected for tests.
	optionsFn  func() []Option
	clickFn    func(sel string) interact.ClickResult
	completeFn func() bool
	refreshFn  func(before State) error
	sleepFn    func(time.Duration)
}

func NewSolver(page pw.Page, proto *interact.Protocol, log botlog.Logger) *Solver {
	if log == nil {
		log = botlog.Nop{}
	}
	if proto == nil {
		proto = interact.ProtocolFor(page, 0, log)
	}
	s := &Solver{page: page, proto: proto, log: log}
	s.optionsFn = s.readOptions
	s.clickFn = proto.Click
	s.completeFn = s.isComplete
	s.refreshFn = s.waitForRefresh
	s.sleepFn = time.Sleep
	return s
}

// Solve runs the quiz to completion or returns why it could not.
func (s *Solver) Solve() error {
	s.clickStartIfPresent()

	st, ok := s.fetchState()
	if !ok || st.Remaining() < 0 {
		s.log.Printf("no structured quiz state, going straight to brute force")
		return s.bruteForce()
	}

	if err := s.solveStructured(st); err != nil {
		return err
	}
	if s.isComplete() {
		return nil
	}
	// Structured path ran out of moves without a completion signal; brute
	// force is the remaining authority.
	return s.bruteForce()
}

func (s *Solver) clickStartIfPresent() {
	visible, err := s.page.Locator(startSelector).First().IsVisible()
	if err != nil || !visible {
		return
	}
	res := s.proto.Click(startSelector)
	if !res.Success {
		s.log.Warnf("start control present but unclickable (%s), assuming quiz in progress", res.Reason)
	}
}

// solveStructured answers questions while the page keeps reporting usable
// state. A per-question fallback to brute force handles rounds where the
// reported answer matches nothing.
func (s *Solver) solveStructured(initial State) error {
	// The loop bound tolerates stale state without spinning forever.
	for round := 0; round < initial.MaxQuestions*2+2; round++ {
		st, ok := s.fetchState()
		if !ok {
			s.log.Warnf("structured state vanished mid-quiz, switching to brute force")
			return s.bruteForce()
		}
		if st.Remaining() <= 0 {
			return nil
		}

		switch st.NumberOfOptions {
		case 8:
			if err := s.answerMultiSelect(st); err != nil {
				return err
			}
		case 2, 3, 4:
			if err := s.answerSingle(st); err != nil {
				return err
			}
		default:
			s.log.Printf("unexpected option count %d, brute forcing this question", st.NumberOfOptions)
			if err := s.bruteForceQuestion(st); err != nil {
				return err
			}
		}
	}
	return nil
}

// answerMultiSelect handles the 8-option layout: every option flagged
// correct gets clicked, each click followed by a state refresh.
func (s *Solver) answerMultiSelect(st State) error {
	for i := 0; i < 8; i++ {
		sel := fmt.Sprintf("#%s%d", optionIDPrefix, i)
		flag, err := s.page.Locator(sel).First().GetAttribute("iscorrectoption")
		if err != nil {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(flag), "true") {
			continue
		}
		before, _ := s.fetchState()
		res := s.proto.Click(sel)
		if !res.Success {
			s.log.Warnf("correct option %s unclickable: %s", sel, res.Reason)
			continue
		}
		if err := s.waitForRefresh(before); err != nil {
			return fmt.Errorf("after multi-select click on %s: %w", sel, err)
		}
	}
	return nil
}

// answerSingle handles 2/3/4-option layouts: click the option whose value
// attribute matches the state's reported correct answer.
func (s *Solver) answerSingle(st State) error {
	for i := 0; i < st.NumberOfOptions; i++ {
		sel := fmt.Sprintf("#%s%d", optionIDPrefix, i)
		value, err := s.page.Locator(sel).First().GetAttribute("data-option")
		if err != nil || value != st.CorrectAnswer {
			continue
		}
		before, _ := s.fetchState()
		res := s.proto.Click(sel)
		if !res.Success {
			s.log.Warnf("matching option %s unclickable: %s", sel, res.Reason)
			break
		}
		if err := s.waitForRefresh(before); err != nil {
			return fmt.Errorf("after single-answer click on %s: %w", sel, err)
		}
		return nil
	}
	s.log.Printf("no option matched reported answer %q, brute forcing this question", st.CorrectAnswer)
	return s.bruteForceQuestion(st)
}

// bruteForceQuestion clicks options until the question count moves on,
// scoped to a single round.
func (s *Solver) bruteForceQuestion(before State) error {
	tried := make(map[string]bool)
	for attempt := 0; attempt < questionBruteCap; attempt++ {
		opt, ok := pickOption(s.optionsFn(), tried)
		if !ok {
			return nil
		}
		tried[opt.ID] = true
		res := s.clickFn("#" + opt.ID)
		if !res.Success {
			continue
		}
		if err := s.refreshFn(before); err == nil {
			return nil
		}
		if s.completeFn() {
			return nil
		}
	}
	return ErrRefreshFailed
}

// bruteForce is the degraded whole-quiz path: click enabled options until a
// completion signal shows up or the global budget runs out.
func (s *Solver) bruteForce() error {
	tried := make(map[string]bool)
	for attempt := 0; attempt < bruteForceCap; attempt++ {
		if s.completeFn() {
			return nil
		}
		opt, ok := pickOption(s.optionsFn(), tried)
		if !ok {
			// No candidates at all also counts as a completion signal
			// when the quiz container is gone.
			if s.completeFn() {
				return nil
			}
			return fmt.Errorf("no clickable answer options: %w", ErrExhausted)
		}
		tried[opt.ID] = true
		res := s.clickFn("#" + opt.ID)
		if !res.Success {
			continue
		}
		s.sleepFn(refreshInterval)
	}
	if s.completeFn() {
		return nil
	}
	return ErrExhausted
}

// readOptions snapshots the live answer controls with visibility and
// enablement heuristics. Failures yield an empty set.
func (s *Solver) readOptions() []Option {
	raw, err := s.page.Evaluate(`() => {
		return Array.from(document.querySelectorAll("` + optionSelector + `")).map((el) => {
			const style = window.getComputedStyle(el);
			const rect = el.getBoundingClientRect();
			return {
				id: el.id,
				visible: rect.width > 0 && rect.height > 0 &&
					style.display !== 'none' && style.visibility !== 'hidden',
				enabled: !el.hasAttribute('disabled') &&
					!el.classList.contains('disabledAnswer'),
			};
		});
	}`)
	if err != nil {
		return nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]Option, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		if id == "" {
			continue
		}
		visible, _ := m["visible"].(bool)
		enabled, _ := m["enabled"].(bool)
		out = append(out, Option{ID: id, Visible: visible, Enabled: enabled})
	}
	return out
}

// fetchState tries, in order: the live in-page variable, an inline script
// literal, then DOM reconstruction.
func (s *Solver) fetchState() (State, bool) {
	raw, err := s.page.Evaluate(`() => (window._w && window._w.rewardsQuizRenderInfo) || null`)
	if err == nil {
		if st, ok := parseRenderInfo(raw); ok {
			return st, true
		}
	}

	if content, err := s.page.Content(); err == nil {
		if st, ok := parseInline(content); ok {
			return st, true
		}
	}

	return s.reconstructFromDOM()
}

// reconstructFromDOM derives a coarse state from visible quiz chrome when
// no structured data is exposed.
func (s *Solver) reconstructFromDOM() (State, bool) {
	raw, err := s.page.Evaluate(`() => {
		const dots = document.querySelectorAll('.rqQuestionState');
		const answered = document.querySelectorAll('.rqQuestionState.filledCircle');
		const options = document.querySelectorAll("` + optionSelector + `");
		return {
			maxQuestions: dots.length,
			CorrectlyAnsweredQuestionCount: answered.length,
			numberOfOptions: options.length,
		};
	}`)
	if err != nil {
		return State{}, false
	}
	return parseRenderInfo(raw)
}

// waitForRefresh polls for the quiz state to move past the given snapshot.
func (s *Solver) waitForRefresh(before State) error {
	for i := 0; i < refreshAttempts; i++ {
		time.Sleep(refreshInterval)
		if s.isComplete() {
			return nil
		}
		st, ok := s.fetchState()
		if ok && (st.CorrectlyAnswered != before.CorrectlyAnswered ||
			st.CurrentQuestion != before.CurrentQuestion) {
			return nil
		}
	}
	return ErrRefreshFailed
}

func (s *Solver) isComplete() bool {
	return Completed(s.page)
}

// Completed is the single source of truth for quiz-family completion:
// success phrases, an earned-points pattern, known completion markers, or
// the absence of any answer option.
func Completed(page pw.Page) bool {
	if content, err := page.Content(); err == nil && looksComplete(content) {
		return true
	}
	for _, marker := range completionMarkers {
		if n, err := page.Locator(marker).Count(); err == nil && n > 0 {
			return true
		}
	}
	if n, err := page.Locator(optionSelector).Count(); err == nil && n == 0 {
		return true
	}
	return false
}
