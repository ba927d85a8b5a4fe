package activities

import (
	"errors"
	"testing"
	"time"

	pw "github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rewardsbot/botlog"
	"rewardsbot/interact"
	"rewardsbot/selector"
)

// newTestOrchestrator stubs the page-facing seams so the sequencing logic
// runs without a browser.
func newTestOrchestrator() *Orchestrator {
	o := NewOrchestrator(botlog.Nop{}, nil)
	o.PauseBase = 0
	o.PauseJitter = 0
	o.HandlerTimeout = 200 * time.Millisecond
	o.resolveFn = func(_ pw.Page, t selector.Target, hint string) []string {
		return selector.Assemble(hint, []string{`[data-bi-id^="` + t.OfferID + `"]`, ".pointLink"})
	}
	o.clickFn = func(_ pw.Page, _ []string, _ int) (interact.ClickResult, string) {
		return interact.ClickResult{Success: true}, ".pointLink"
	}
	return o
}

func stubHandler(err error, calls *int) Handler {
	return func(_ pw.Page, _ Activity, _ botlog.Logger) error {
		if calls != nil {
			*calls++
		}
		return err
	}
}

func TestPollScenarioYieldsCompletedSet(t *testing.T) {
	o := newTestOrchestrator()
	var calls int
	o.Handlers = HandlerRegistry{KindPoll: stubHandler(nil, &calls)}

	acts := []Activity{{
		OfferID:          "X",
		PointProgressMax: 10,
		PromotionType:    "quiz",
		DestinationURL:   "https://rewards.example.com/quiz?pollscenarioid=1",
	}}
	require.Equal(t, KindPoll, Classify(acts[0]))

	completed := o.SolveActivities(nil, acts, nil)
	assert.Equal(t, []string{"X"}, completed)
	assert.Equal(t, 1, calls)
}

func TestFailedHandlerIsRetriedThenSkipped(t *testing.T) {
	o := newTestOrchestrator()
	var calls int
	o.Handlers = HandlerRegistry{KindQuiz: stubHandler(errors.New("boom"), &calls)}

	var diagTags []string
	o.Diagnose = func(_ pw.Page, tag string) { diagTags = append(diagTags, tag) }

	acts := []Activity{
		{OfferID: "bad", PointProgressMax: 30, PromotionType: "quiz"},
	}
	completed := o.SolveActivities(nil, acts, nil)

	assert.Empty(t, completed)
	assert.Equal(t, o.HandlerRetries, calls)
	assert.Len(t, diagTags, o.HandlerRetries)
	assert.Greater(t, o.Throttle.Multiplier(), 1.0, "failure must slow the bot down")
}

func TestHandlerTimeoutCountsAsFailure(t *testing.T) {
	o := newTestOrchestrator()
	o.HandlerRetries = 1
	o.Handlers = HandlerRegistry{KindQuiz: func(_ pw.Page, _ Activity, _ botlog.Logger) error {
		time.Sleep(2 * time.Second)
		return nil
	}}

	acts := []Activity{{OfferID: "slow", PointProgressMax: 30, PromotionType: "quiz"}}
	start := time.Now()
	completed := o.SolveActivities(nil, acts, nil)

	assert.Empty(t, completed)
	assert.Less(t, time.Since(start), time.Second, "timeout must abandon the handler")
}

func TestIneligibleAndUnsupportedAreSkipped(t *testing.T) {
	o := newTestOrchestrator()
	var calls int
	o.Handlers = HandlerRegistry{KindQuiz: stubHandler(nil, &calls)}

	acts := []Activity{
		{OfferID: "done", Complete: true, PointProgressMax: 30, PromotionType: "quiz"},
		{OfferID: "zero", PointProgressMax: 0, PromotionType: "quiz"},
		{OfferID: "locked", PointProgressMax: 30, PromotionType: "quiz", ExclusiveLockedFeatureStatus: "locked"},
		{OfferID: "weird", PointProgressMax: 30, PromotionType: "welcometour"},
		{OfferID: "ok", PointProgressMax: 30, PromotionType: "quiz"},
	}
	completed := o.SolveActivities(nil, acts, nil)

	assert.Equal(t, []string{"ok"}, completed)
	assert.Equal(t, 1, calls)
}

func TestClickFailureNeverReachesHandler(t *testing.T) {
	o := newTestOrchestrator()
	o.clickFn = func(_ pw.Page, _ []string, _ int) (interact.ClickResult, string) {
		return interact.ClickResult{Reason: interact.ReasonMaxRetries}, ""
	}
	var calls int
	o.Handlers = HandlerRegistry{KindQuiz: stubHandler(nil, &calls)}

	acts := []Activity{{OfferID: "x", PointProgressMax: 30, PromotionType: "quiz"}}
	completed := o.SolveActivities(nil, acts, nil)

	assert.Empty(t, completed)
	assert.Zero(t, calls)
}

func TestRunSecondPassAbsorbsTransientFailure(t *testing.T) {
	o := newTestOrchestrator()
	o.HandlerRetries = 1
	failures := map[string]int{"flaky": 1}
	o.Handlers = HandlerRegistry{KindQuiz: func(_ pw.Page, a Activity, _ botlog.Logger) error {
		if failures[a.OfferID] > 0 {
			failures[a.OfferID]--
			return errors.New("transient")
		}
		return nil
	}}

	acts := []Activity{
		{OfferID: "flaky", PointProgressMax: 30, PromotionType: "quiz"},
		{OfferID: "steady", PointProgressMax: 30, PromotionType: "quiz"},
	}
	completed := o.Run(nil, acts, nil)

	assert.ElementsMatch(t, []string{"flaky", "steady"}, completed)
}

func TestPunchCardHintIsPrepended(t *testing.T) {
	o := newTestOrchestrator()
	o.HintFor = func(a Activity) string { return "#punch-" + a.OfferID }

	var gotFirst string
	o.clickFn = func(_ pw.Page, candidates []string, _ int) (interact.ClickResult, string) {
		gotFirst = candidates[0]
		return interact.ClickResult{Success: true}, candidates[0]
	}

	o.Handlers = HandlerRegistry{KindQuiz: stubHandler(nil, nil)}
	punch := &PunchCard{ParentPromotion: Activity{}}
	acts := []Activity{{OfferID: "child1", PointProgressMax: 30, PromotionType: "quiz"}}

	o.SolveActivities(nil, acts, punch)
	assert.Equal(t, "#punch-child1", gotFirst)
}

type recordingStats struct {
	attempted, completed, failed int
	multipliers                  []float64
}

func (r *recordingStats) Attempted()           { r.attempted++ }
func (r *recordingStats) Completed()           { r.completed++ }
func (r *recordingStats) Failed()              { r.failed++ }
func (r *recordingStats) Multiplier(m float64) { r.multipliers = append(r.multipliers, m) }

func TestStatsAndEventsAreReported(t *testing.T) {
	o := newTestOrchestrator()
	stats := &recordingStats{}
	o.Stats = stats

	var events []string
	o.Publish = func(a Activity, kind Kind, status string) {
		events = append(events, a.OfferID+":"+kind.String()+":"+status)
	}

	o.Handlers = HandlerRegistry{
		KindQuiz: stubHandler(nil, nil),
		KindPoll: stubHandler(errors.New("nope"), nil),
	}
	acts := []Activity{
		{OfferID: "q", PointProgressMax: 30, PromotionType: "quiz"},
		{OfferID: "p", PointProgressMax: 10, PromotionType: "quiz", DestinationURL: "x?pollscenarioid=2"},
	}
	o.SolveActivities(nil, acts, nil)

	assert.Equal(t, 2, stats.attempted)
	assert.Equal(t, 1, stats.completed)
	assert.Equal(t, 1, stats.failed)
	assert.ElementsMatch(t, []string{"q:quiz:completed", "p:poll:failed"}, events)
}
