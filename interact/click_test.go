package interact

import (
	"math/rand"
	"testing"
	"time"

	pw "github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"

	"rewardsbot/botlog"
)

func TestRetryableReasons(t *testing.T) {
	assert.True(t, Retryable(ReasonNotFound))
	assert.True(t, Retryable(ReasonZeroBox))
	assert.True(t, Retryable(ReasonCSSHidden))
	assert.True(t, Retryable(ReasonClickFailed))

	assert.False(t, Retryable(ReasonMaxRetries))
	assert.False(t, Retryable(ReasonNone))
	assert.False(t, Retryable(Reason("navigation-lost")))
}

func TestBackoffDelayGrowsWithAttemptAndStaysBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for attempt := 1; attempt <= 5; attempt++ {
		for i := 0; i < 20; i++ {
			d := backoffDelay(attempt, rng)
			lower := time.Duration(attempt) * backoffBase
			assert.GreaterOrEqual(t, d, lower)
			assert.Less(t, d, lower+backoffJitter)
		}
	}
}

// testProtocol builds a Protocol around a stubbed attempt routine, no
// browser involved.
func testProtocol(attempts int, attemptFn func(sel string) ClickResult) *Protocol {
	return &Protocol{
		attempts:  attempts,
		log:       botlog.Nop{},
		rng:       rand.New(rand.NewSource(1)),
		attemptFn: attemptFn,
		sleepFn:   func(time.Duration) {},
	}
}

func TestClickAnyStopsAtFirstWorkingCandidate(t *testing.T) {
	outcomes := map[string]ClickResult{
		"s1": {Reason: ReasonCSSHidden},
		"s2": {Reason: ReasonNotFound},
		"s3": {Success: true},
	}
	var tried []string
	p := testProtocol(1, func(sel string) ClickResult {
		tried = append(tried, sel)
		return outcomes[sel]
	})

	res, winner := p.ClickAny([]string{"s1", "s2", "s3", "s4"}, 0)

	assert.True(t, res.Success)
	assert.Equal(t, "s3", winner)
	assert.Equal(t, []string{"s1", "s2", "s3"}, tried)
}

func TestClickAnyHonorsCandidateCap(t *testing.T) {
	var tried int
	p := testProtocol(1, func(string) ClickResult {
		tried++
		return ClickResult{Reason: ReasonNotFound}
	})

	res, winner := p.ClickAny([]string{"a", "b", "c", "d", "e"}, 2)

	assert.False(t, res.Success)
	assert.Equal(t, ReasonNotFound, res.Reason)
	assert.Empty(t, winner)
	assert.Equal(t, 2, tried)
}

func TestClickTerminatesWithMaxRetries(t *testing.T) {
	var calls int
	p := testProtocol(3, func(string) ClickResult {
		calls++
		return ClickResult{Reason: ReasonZeroBox}
	})

	res := p.Click("#never")

	assert.False(t, res.Success)
	assert.Equal(t, ReasonMaxRetries, res.Reason)
	assert.Equal(t, 3, calls)
}

func TestClickStopsOnTerminalReason(t *testing.T) {
	var calls int
	p := testProtocol(3, func(string) ClickResult {
		calls++
		return ClickResult{Reason: Reason("detached")}
	})

	res := p.Click("#gone")

	assert.False(t, res.Success)
	assert.Equal(t, 1, calls)
}

func TestProtocolForReusesPagesProtocol(t *testing.T) {
	var page pw.Page
	want := testProtocol(1, nil)
	protoRegistry.mu.Lock()
	protoRegistry.m[page] = want
	protoRegistry.mu.Unlock()
	defer Forget(page)

	got := ProtocolFor(page, 3, nil)
	assert.Same(t, want, got)
}

func TestForgetDropsCachedProtocol(t *testing.T) {
	var page pw.Page
	protoRegistry.mu.Lock()
	protoRegistry.m[page] = testProtocol(1, nil)
	protoRegistry.mu.Unlock()

	Forget(page)

	protoRegistry.mu.Lock()
	_, ok := protoRegistry.m[page]
	protoRegistry.mu.Unlock()
	assert.False(t, ok)
}

func TestAsInt(t *testing.T) {
	assert.Equal(t, 3, asInt(3))
	assert.Equal(t, 3, asInt(float64(3)))
	assert.Equal(t, 0, asInt("3"))
	assert.Equal(t, 0, asInt(nil))
}
