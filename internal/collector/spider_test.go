package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lol-match-crawler/internal/riot"
	"lol-match-crawler/internal/sample"
)

func newTestSpider(t *testing.T, src MatchSource, sink Sink, cfg SpiderConfig) *Spider {
	t.Helper()
	if cfg.Policy.Queues == nil {
		cfg.Policy = sample.DefaultPolicy()
	}
	s, err := NewSpider(src, sink, cfg)
	require.NoError(t, err)
	return s
}

func assertUnique(t *testing.T, ids []string) {
	t.Helper()
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate match %s", id)
		seen[id] = true
	}
}

func TestNewSpider_Validation(t *testing.T) {
	src, sink := newFakeProvider(), &memorySink{}

	_, err := NewSpider(src, sink, SpiderConfig{Target: 0})
	assert.Error(t, err)
	_, err = NewSpider(src, sink, SpiderConfig{Target: 1, MaxDepth: -1})
	assert.Error(t, err)
	_, err = NewSpider(nil, sink, SpiderConfig{Target: 1})
	assert.Error(t, err)

	s, err := NewSpider(src, sink, SpiderConfig{Target: 1})
	require.NoError(t, err)
	assert.Equal(t, DefaultMatchesPerPlayer, s.cfg.MatchesPerPlayer)
	assert.Equal(t, DefaultWorkers, s.cfg.Workers)
	assert.Equal(t, StateSeeding, s.State())
}

// Test: target 5 reachable within depth 3 ends Completed with exactly 5 rows
func TestSpider_ExactTarget(t *testing.T) {
	f := newFakeProvider()
	f.addMatch("NA1_1", "A", "B", "C")
	f.addMatch("NA1_2", "A", "D")
	f.addMatch("NA1_3", "A", "E")
	f.addMatch("NA1_4", "B", "F")
	f.addMatch("NA1_5", "B", "G")
	f.addMatch("NA1_6", "C", "H")
	f.addMatch("NA1_7", "F", "I")
	sink := &memorySink{}

	s := newTestSpider(t, f, sink, SpiderConfig{Target: 5, MaxDepth: 3})
	res := s.Run(context.Background(), []string{"A"})

	assert.Equal(t, StateCompleted, res.State)
	assert.NoError(t, res.Err)
	assert.Equal(t, 5, res.Emitted)
	assert.Len(t, sink.IDs(), 5)
	assertUnique(t, sink.IDs())
	assert.Equal(t, []string{"NA1_1", "NA1_2", "NA1_3", "NA1_4", "NA1_5"}, sink.IDs())
}

// Test: a graph with only 10 eligible matches ends Exhausted with 10 rows
func TestSpider_Starvation(t *testing.T) {
	f := chainGraph(10)
	aram := f.addMatch("NA1_aram", "p3", "x1")
	aram.Info.QueueID = 450
	sink := &memorySink{}

	s := newTestSpider(t, f, sink, SpiderConfig{Target: 100})
	res := s.Run(context.Background(), []string{"p0"})

	assert.Equal(t, StateExhausted, res.State)
	assert.True(t, res.State.Successful())
	assert.NoError(t, res.Err)
	assert.Equal(t, 10, res.Emitted)
	assert.Len(t, sink.IDs(), 10)
	assertUnique(t, sink.IDs())
	assert.Equal(t, 1, res.Rejected)
	assert.Equal(t, 1, res.RejectedBy[sample.ReasonIneligibleMode])
	// x1 only appears in the rejected match and is never expanded
	assert.NotContains(t, f.Expanded(), "x1")
	assert.Equal(t, 11, res.PlayersExpanded)
	assert.Equal(t, 11, res.MatchesSeen)
}

func TestSpider_AuthRejected(t *testing.T) {
	f := chainGraph(3)
	f.historyErr["p0"] = riot.Err(riot.ErrAuthRejected, &riot.StatusError{StatusCode: 401, URL: "x"}, "")
	sink := &memorySink{}

	s := newTestSpider(t, f, sink, SpiderConfig{Target: 5})
	res := s.Run(context.Background(), []string{"p0"})

	assert.Equal(t, StateFailed, res.State)
	assert.False(t, res.State.Successful())
	assert.ErrorIs(t, res.Err, riot.ErrAuthRejected)
	assert.Equal(t, "AuthRejected", riot.Kind(res.Err))
	assert.Empty(t, sink.IDs())
	assert.Empty(t, f.Fetched())
}

func TestSpider_ProviderUnavailableOnMatch(t *testing.T) {
	f := chainGraph(5)
	f.matchErr["NA1_2"] = riot.Err(riot.ErrProviderUnavailable, errors.New("503"), "gave up")
	sink := &memorySink{}

	s := newTestSpider(t, f, sink, SpiderConfig{Target: 5})
	res := s.Run(context.Background(), []string{"p0"})

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, "ProviderUnavailable", riot.Kind(res.Err))
	// rows written before the failure are kept
	assert.Equal(t, []string{"NA1_0", "NA1_1"}, sink.IDs())
}

// Test: P1 and P2 found through the seed are expanded before anyone found through P1
func TestSpider_BreadthFirstOrder(t *testing.T) {
	f := newFakeProvider()
	f.addMatch("NA1_1", "A", "P1", "P2")
	f.addMatch("NA1_2", "P1", "Q1")
	f.addMatch("NA1_3", "P2", "Q2")
	f.addMatch("NA1_4", "Q1", "R1")

	s := newTestSpider(t, f, &memorySink{}, SpiderConfig{Target: 100})
	res := s.Run(context.Background(), []string{"A"})

	require.Equal(t, StateExhausted, res.State)
	assert.Equal(t, []string{"A", "P1", "P2", "Q1", "Q2", "R1"}, f.Expanded())
}

func TestSpider_MaxDepth(t *testing.T) {
	f := chainGraph(10)
	sink := &memorySink{}

	s := newTestSpider(t, f, sink, SpiderConfig{Target: 100, MaxDepth: 2})
	res := s.Run(context.Background(), []string{"p0"})

	assert.Equal(t, StateExhausted, res.State)
	assert.Equal(t, []string{"p0", "p1", "p2"}, f.Expanded())
	assert.Equal(t, []string{"NA1_0", "NA1_1", "NA1_2"}, sink.IDs())
}

func TestSpider_DuplicateSeedsAndMatches(t *testing.T) {
	f := newFakeProvider()
	f.addMatch("NA1_1", "A", "B")
	f.addMatch("NA1_2", "A", "B")
	sink := &memorySink{}

	s := newTestSpider(t, f, sink, SpiderConfig{Target: 100})
	res := s.Run(context.Background(), []string{"A", "A", "", "B"})

	assert.Equal(t, StateExhausted, res.State)
	assert.Equal(t, []string{"A", "B"}, f.Expanded())
	assert.Equal(t, []string{"NA1_1", "NA1_2"}, sink.IDs())
	assert.Equal(t, []string{"NA1_1", "NA1_2"}, f.Fetched(), "each match fetched once")
}

func TestSpider_NoSeeds(t *testing.T) {
	s := newTestSpider(t, newFakeProvider(), &memorySink{}, SpiderConfig{Target: 1})
	res := s.Run(context.Background(), nil)

	assert.Equal(t, StateExhausted, res.State)
	assert.Zero(t, res.Emitted)
}

func TestSpider_AnonymizedParticipantsSkipped(t *testing.T) {
	f := newFakeProvider()
	m := f.addMatch("NA1_1", "A", "", "B")
	m.Metadata.Participants[1] = ""

	s := newTestSpider(t, f, &memorySink{}, SpiderConfig{Target: 100})
	res := s.Run(context.Background(), []string{"A"})

	assert.Equal(t, StateExhausted, res.State)
	assert.Equal(t, 1, res.Emitted, "match with hidden players is still sampled")
	assert.Equal(t, []string{"A", "B"}, f.Expanded())
	assert.Equal(t, 2, res.PlayersSeen)
}

func TestSpider_MissingMatchSkipped(t *testing.T) {
	f := chainGraph(3)
	f.histories["p0"] = append([]string{"NA1_gone"}, f.histories["p0"]...)
	sink := &memorySink{}

	s := newTestSpider(t, f, sink, SpiderConfig{Target: 100})
	res := s.Run(context.Background(), []string{"p0"})

	assert.Equal(t, StateExhausted, res.State)
	assert.Equal(t, 3, res.Emitted)
	assert.Contains(t, f.Fetched(), "NA1_gone")
}

func TestSpider_InProgressRejected(t *testing.T) {
	f := chainGraph(2)
	f.matches["NA1_0"].Info.GameEndTimestamp = 0

	s := newTestSpider(t, f, &memorySink{}, SpiderConfig{Target: 100})
	res := s.Run(context.Background(), []string{"p0"})

	assert.Equal(t, StateExhausted, res.State)
	assert.Equal(t, 0, res.Emitted, "p1 is never reached through a rejected match")
	assert.Equal(t, 1, res.RejectedBy[sample.ReasonInProgress])
}

func TestSpider_SinkFailure(t *testing.T) {
	f := chainGraph(5)
	sink := &memorySink{failAt: 3}

	s := newTestSpider(t, f, sink, SpiderConfig{Target: 5})
	res := s.Run(context.Background(), []string{"p0"})

	assert.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, res.Err, errDiskFull)
	assert.Equal(t, 2, res.Emitted)
	assert.Len(t, sink.IDs(), 2)
}

func TestSpider_Cancelled(t *testing.T) {
	f := chainGraph(10)
	sink := &memorySink{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newTestSpider(t, f, sink, SpiderConfig{
		Target: 100,
		OnSample: func(_ *sample.MatchSample, emitted int) {
			if emitted == 2 {
				cancel()
			}
		},
	})
	res := s.Run(ctx, []string{"p0"})

	assert.Equal(t, StateCancelled, res.State)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, []string{"NA1_0", "NA1_1"}, sink.IDs(), "partial output is kept")
	assert.Equal(t, []string{"p0", "p1"}, f.Expanded(), "no request after cancellation")
}

func TestSpider_CancelledDuringFetchKeepsMatch(t *testing.T) {
	f := chainGraph(3)
	sink := &memorySink{ctxAware: true}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newTestSpider(t, &cancelOnFetch{fakeProvider: f, cancel: cancel}, sink, SpiderConfig{Target: 10})
	res := s.Run(ctx, []string{"p0"})

	assert.Equal(t, StateCancelled, res.State)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, 1, res.Emitted)
	assert.Equal(t, []string{"NA1_0"}, sink.IDs(), "in-flight match is written")
	assert.Equal(t, []string{"p0"}, f.Expanded())
}

func TestSpider_SinkCancelledIsNotFailure(t *testing.T) {
	f := chainGraph(3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newTestSpider(t, f, &memorySink{}, SpiderConfig{Target: 10})
	res := s.fail(ctx, fmt.Errorf("write sample NA1_0: %w", context.Canceled))
	assert.Equal(t, StateCancelled, res.State)
}

func TestSpider_CancelledBeforeStart(t *testing.T) {
	f := chainGraph(3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newTestSpider(t, f, &memorySink{}, SpiderConfig{Target: 1})
	res := s.Run(ctx, []string{"p0"})

	assert.Equal(t, StateCancelled, res.State)
	assert.Empty(t, f.Expanded())
}

func TestSpider_RunTwice(t *testing.T) {
	s := newTestSpider(t, chainGraph(1), &memorySink{}, SpiderConfig{Target: 1})
	first := s.Run(context.Background(), []string{"p0"})
	require.Equal(t, StateCompleted, first.State)

	second := s.Run(context.Background(), []string{"p0"})
	assert.ErrorIs(t, second.Err, ErrAlreadyRan)
}

func TestSpider_WorkersKeepOrder(t *testing.T) {
	build := func() *fakeProvider {
		f := newFakeProvider()
		for i := 0; i < 12; i++ {
			f.addMatch(fmt.Sprintf("NA1_%02d", i), "A", fmt.Sprintf("p%d", i))
		}
		return f
	}

	seqSink, parSink := &memorySink{}, &memorySink{}
	seq := newTestSpider(t, build(), seqSink, SpiderConfig{Target: 7})
	par := newTestSpider(t, build(), parSink, SpiderConfig{Target: 7, Workers: 4})

	seqRes := seq.Run(context.Background(), []string{"A"})
	parRes := par.Run(context.Background(), []string{"A"})

	assert.Equal(t, StateCompleted, seqRes.State)
	assert.Equal(t, StateCompleted, parRes.State)
	assert.Equal(t, seqSink.IDs(), parSink.IDs())
	assert.Len(t, parSink.IDs(), 7)
}

func TestSpider_WorkersFailure(t *testing.T) {
	f := newFakeProvider()
	for i := 0; i < 8; i++ {
		f.addMatch(fmt.Sprintf("NA1_%d", i), "A")
	}
	f.matchErr["NA1_5"] = riot.Err(riot.ErrProviderUnavailable, errors.New("503"), "")

	s := newTestSpider(t, f, &memorySink{}, SpiderConfig{Target: 100, Workers: 4})
	res := s.Run(context.Background(), []string{"A"})

	assert.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, res.Err, riot.ErrProviderUnavailable)
	assert.Equal(t, 4, res.Emitted, "the first chunk completed before the failing one")
}

func TestResult_Throughput(t *testing.T) {
	assert.Zero(t, Result{}.Throughput())
	assert.InDelta(t, 30.0, Result{Emitted: 60, Elapsed: 2 * time.Minute}.Throughput(), 0.001)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "4.5s", FormatDuration(4500*time.Millisecond))
	assert.Equal(t, "3m07s", FormatDuration(3*time.Minute+7*time.Second))
	assert.Equal(t, "1h02m03s", FormatDuration(time.Hour+2*time.Minute+3*time.Second))
}

// Test: two 500s then success are absorbed by the client; the spider never sees them
func TestSpider_TransientRecoveryThroughClient(t *testing.T) {
	f := newFakeProvider()
	f.addMatch("NA1_1", "A")
	matchJSON, err := jsonMatch(f.matches["NA1_1"])
	require.NoError(t, err)

	var historyHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/ids"):
			if historyHits.Add(1) <= 2 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Write([]byte(`["NA1_1"]`))
		case strings.HasSuffix(r.URL.Path, "/NA1_1"):
			w.Write(matchJSON)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client, err := riot.NewClient("RGAPI-test",
		riot.WithRegionalURL(server.URL),
		riot.WithPlatformURL(server.URL),
		riot.WithLimits(riot.Limit{Requests: 1000, Window: time.Second}),
		riot.WithRetryPolicy(riot.RetryPolicy{
			MaxAttempts:         4,
			BaseDelay:           time.Millisecond,
			MaxDelay:            5 * time.Millisecond,
			MaxRateLimitRetries: 1,
		}),
	)
	require.NoError(t, err)

	sink := &memorySink{}
	s := newTestSpider(t, client, sink, SpiderConfig{Target: 1})
	res := s.Run(context.Background(), []string{"A"})

	assert.Equal(t, StateCompleted, res.State)
	assert.NoError(t, res.Err)
	assert.Equal(t, int32(3), historyHits.Load())
	assert.Equal(t, []string{"NA1_1"}, sink.IDs())
}
