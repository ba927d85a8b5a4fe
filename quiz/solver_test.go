package quiz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"rewardsbot/botlog"
	"rewardsbot/interact"
)

// testSolver wires a Solver to in-memory stubs, no browser involved.
func testSolver(options []Option, complete func() bool) (*Solver, *int) {
	clicks := 0
	s := &Solver{log: botlog.Nop{}}
	s.optionsFn = func() []Option { return options }
	s.clickFn = func(string) interact.ClickResult {
		clicks++
		return interact.ClickResult{Success: true}
	}
	s.completeFn = complete
	s.refreshFn = func(State) error { return ErrRefreshFailed }
	s.sleepFn = func(time.Duration) {}
	return s, &clicks
}

func never() bool { return false }

func TestBruteForceStopsAtAttemptCap(t *testing.T) {
	// Four options that never disable: every pick cycles back to an
	// already-tried option, so only the attempt budget can end the loop.
	options := []Option{
		{ID: "rqAnswerOption0", Visible: true, Enabled: true},
		{ID: "rqAnswerOption1", Visible: true, Enabled: true},
		{ID: "rqAnswerOption2", Visible: true, Enabled: true},
		{ID: "rqAnswerOption3", Visible: true, Enabled: true},
	}
	s, clicks := testSolver(options, never)

	err := s.bruteForce()

	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, bruteForceCap, *clicks)
}

func TestBruteForceReportsExhaustionWithoutClickableOptions(t *testing.T) {
	options := []Option{
		{ID: "rqAnswerOption0", Visible: true, Enabled: false},
	}
	s, clicks := testSolver(options, never)

	err := s.bruteForce()

	assert.ErrorIs(t, err, ErrExhausted)
	assert.Zero(t, *clicks)
}

func TestBruteForceStopsOnCompletionSignal(t *testing.T) {
	options := []Option{
		{ID: "rqAnswerOption0", Visible: true, Enabled: true},
		{ID: "rqAnswerOption1", Visible: true, Enabled: true},
	}
	var checks int
	s, clicks := testSolver(options, func() bool {
		checks++
		return checks > 3
	})

	err := s.bruteForce()

	assert.NoError(t, err)
	assert.Less(t, *clicks, bruteForceCap)
}

func TestBruteForceQuestionBoundedWhenRefreshNeverArrives(t *testing.T) {
	options := []Option{
		{ID: "rqAnswerOption0", Visible: true, Enabled: true},
		{ID: "rqAnswerOption1", Visible: true, Enabled: true},
	}
	s, clicks := testSolver(options, never)

	err := s.bruteForceQuestion(State{MaxQuestions: 3})

	assert.ErrorIs(t, err, ErrRefreshFailed)
	assert.Equal(t, questionBruteCap, *clicks)
}

func TestBruteForceQuestionReturnsOnRefresh(t *testing.T) {
	options := []Option{
		{ID: "rqAnswerOption0", Visible: true, Enabled: true},
	}
	s, clicks := testSolver(options, never)
	s.refreshFn = func(State) error { return nil }

	err := s.bruteForceQuestion(State{MaxQuestions: 3})

	assert.NoError(t, err)
	assert.Equal(t, 1, *clicks)
}
