package activities

import (
	"fmt"
	"math/rand"
	"time"

	pw "github.com/playwright-community/playwright-go"

	"rewardsbot/botlog"
	"rewardsbot/interact"
	"rewardsbot/quiz"
)

// Handler completes one opened activity on the given page. Contract: run
// to completion or return an error; the orchestrator owns retries,
// timeouts and diagnostics.
type Handler func(page pw.Page, a Activity, log botlog.Logger) error

// HandlerRegistry maps activity kinds to handlers. Callers may override
// any entry; the defaults cover the documented variants.
type HandlerRegistry map[Kind]Handler

// DefaultHandlers wires the built-in handlers for every supported kind.
func DefaultHandlers() HandlerRegistry {
	return HandlerRegistry{
		KindQuiz:         handleQuiz,
		KindPoll:         handlePoll,
		KindAbc:          handleAbc,
		KindThisOrThat:   handleThisOrThat,
		KindURLReward:    handleURLReward,
		KindSearchOnBing: handleSearchOnBing,
	}
}

func handleQuiz(page pw.Page, _ Activity, log botlog.Logger) error {
	solver := quiz.NewSolver(page, nil, log)
	return solver.Solve()
}

// handlePoll answers a binary poll. Polls have no wrong answer, so the
// pick is random.
func handlePoll(page pw.Page, _ Activity, log botlog.Logger) error {
	proto := interact.ProtocolFor(page, 0, log)
	sel := fmt.Sprintf("#btoption%d", rand.Intn(2))
	res := proto.Click(sel)
	if !res.Success {
		return fmt.Errorf("poll option %s: %s", sel, res.Reason)
	}
	time.Sleep(2 * time.Second)
	return nil
}

// handleAbc plays the lightweight 10-point letter quiz: one random option
// per round until the completion signal shows.
func handleAbc(page pw.Page, _ Activity, log botlog.Logger) error {
	proto := interact.ProtocolFor(page, 0, log)
	for round := 0; round < 5; round++ {
		if quiz.Completed(page) {
			return nil
		}
		sel := fmt.Sprintf("#rqAnswerOption%d", rand.Intn(3))
		if res := proto.Click(sel); !res.Success {
			return fmt.Errorf("abc option %s: %s", sel, res.Reason)
		}
		time.Sleep(2 * time.Second)
	}
	if quiz.Completed(page) {
		return nil
	}
	return fmt.Errorf("abc quiz never signalled completion")
}

// handleThisOrThat plays the 50-point binary-choice quiz. Answers are
// guesses; the reward only needs participation.
func handleThisOrThat(page pw.Page, _ Activity, log botlog.Logger) error {
	proto := interact.ProtocolFor(page, 0, log)
	for round := 0; round < 12; round++ {
		if quiz.Completed(page) {
			return nil
		}
		sel := fmt.Sprintf("#rqAnswerOption%d", rand.Intn(2))
		if res := proto.Click(sel); !res.Success {
			return fmt.Errorf("this-or-that option %s: %s", sel, res.Reason)
		}
		time.Sleep(2 * time.Second)
	}
	if quiz.Completed(page) {
		return nil
	}
	return fmt.Errorf("this-or-that never signalled completion")
}

// handleURLReward just dwells: the click that opened the activity already
// earned the visit, the reward needs the page to settle.
func handleURLReward(page pw.Page, _ Activity, _ botlog.Logger) error {
	_ = page.WaitForLoadState(pw.PageWaitForLoadStateOptions{
		State: pw.LoadStateDomcontentloaded,
	})
	time.Sleep(3 * time.Second)
	return nil
}

// handleSearchOnBing visits the activity's destination directly. Query
// sourcing is an external concern; the visit is what gets rewarded.
func handleSearchOnBing(page pw.Page, a Activity, log botlog.Logger) error {
	if a.DestinationURL == "" {
		return handleURLReward(page, a, log)
	}
	if _, err := page.Goto(a.DestinationURL, pw.PageGotoOptions{
		WaitUntil: pw.WaitUntilStateDomcontentloaded,
		Timeout:   pw.Float(30000),
	}); err != nil {
		return fmt.Errorf("search visit: %w", err)
	}
	time.Sleep(3 * time.Second)
	return nil
}
