package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"lol-match-crawler/internal/riot"
	"lol-match-crawler/internal/sample"
)

const (
	DefaultMatchesPerPlayer = 20
	DefaultWorkers          = 1
)

// ErrAlreadyRan is returned when Run is called twice on the same Spider.
var ErrAlreadyRan = errors.New("spider already ran")

// MatchSource is the provider the spider reads from. *riot.Client implements it.
type MatchSource interface {
	GetMatchHistory(ctx context.Context, puuid string, count int) ([]string, error)
	GetMatch(ctx context.Context, matchID string) (*riot.MatchResponse, error)
}

// Sink receives every accepted sample, in emission order.
type Sink interface {
	Write(ctx context.Context, s *sample.MatchSample) error
}

// SpiderConfig holds configuration for the spider
type SpiderConfig struct {
	// Target is the number of samples after which the run completes.
	Target int
	// MaxDepth bounds how far from a seed players are expanded. 0 means unbounded.
	MaxDepth         int
	MatchesPerPlayer int
	// Workers > 1 fetches that many matches of a player concurrently.
	Workers int
	Policy  sample.Policy

	Logger *log.Entry
	// OnSample is called after each sample is written.
	OnSample func(s *sample.MatchSample, emitted int)
}

// Result summarises a finished run.
type Result struct {
	State           State
	Target          int
	Emitted         int
	PlayersExpanded int
	PlayersSeen     int
	MatchesSeen     int
	Rejected        int
	RejectedBy      map[sample.Reason]int
	Err             error
	Elapsed         time.Duration
}

// Throughput returns samples per minute.
func (r Result) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Emitted) / r.Elapsed.Minutes()
}

// Spider crawls the player/match graph breadth-first, writing one sample per
// eligible match until the target is met or the graph is exhausted.
type Spider struct {
	source MatchSource
	sink   Sink
	cfg    SpiderConfig
	logger *log.Entry

	registry *Registry
	frontier *Frontier
	state    *StateMachine

	result    Result
	startTime time.Time
}

// NewSpider validates cfg and returns a spider ready to Run.
func NewSpider(source MatchSource, sink Sink, cfg SpiderConfig) (*Spider, error) {
	if source == nil || sink == nil {
		return nil, errors.New("spider needs a match source and a sink")
	}
	if cfg.Target <= 0 {
		return nil, fmt.Errorf("target must be positive, got %d", cfg.Target)
	}
	if cfg.MaxDepth < 0 {
		return nil, fmt.Errorf("max depth must not be negative, got %d", cfg.MaxDepth)
	}
	if cfg.MatchesPerPlayer <= 0 {
		cfg.MatchesPerPlayer = DefaultMatchesPerPlayer
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.WithField("component", "spider")
	}

	s := &Spider{
		source:   source,
		sink:     sink,
		cfg:      cfg,
		logger:   logger,
		registry: NewRegistry(),
		frontier: NewFrontier(),
		state:    NewStateMachine(),
		result: Result{
			Target:     cfg.Target,
			RejectedBy: make(map[sample.Reason]int),
		},
	}
	s.state.OnTransition(func(from, to State) {
		s.logger.WithFields(log.Fields{"from": from, "to": to}).Info("State transition")
	})
	return s, nil
}

// State returns the current state of the run.
func (s *Spider) State() State {
	return s.state.Current()
}

// Run seeds the frontier and crawls until a terminal state. It never returns
// an error directly; failures are reported in Result.Err with State Failed.
func (s *Spider) Run(ctx context.Context, seeds []string) Result {
	if s.state.Current() != StateSeeding || !s.startTime.IsZero() {
		return Result{State: s.state.Current(), Target: s.cfg.Target, Err: ErrAlreadyRan}
	}
	s.startTime = time.Now()

	for _, puuid := range seeds {
		if puuid == "" {
			continue
		}
		if s.registry.MarkPlayerIfNew(puuid) {
			s.frontier.Push(FrontierEntry{PUUID: puuid, Depth: 0})
		}
	}
	s.logger.WithFields(log.Fields{"seeds": s.frontier.Len(), "target": s.cfg.Target}).Info("Seeded frontier")

	if ctx.Err() != nil {
		return s.finish(StateCancelled, ctx.Err())
	}
	if err := s.state.TransitionTo(StateRunning); err != nil {
		return s.finish(StateFailed, err)
	}

	return s.crawl(ctx)
}

func (s *Spider) crawl(ctx context.Context) Result {
	for {
		if ctx.Err() != nil {
			return s.finish(StateCancelled, ctx.Err())
		}

		entry, ok := s.frontier.Pop()
		if !ok {
			return s.finish(StateExhausted, nil)
		}

		matchIDs, err := s.source.GetMatchHistory(ctx, entry.PUUID, s.cfg.MatchesPerPlayer)
		if err != nil {
			return s.fail(ctx, fmt.Errorf("match history for %s: %w", shortID(entry.PUUID), err))
		}
		s.result.PlayersExpanded++

		s.logger.WithFields(log.Fields{
			"player":   shortID(entry.PUUID),
			"depth":    entry.Depth,
			"matches":  len(matchIDs),
			"frontier": s.frontier.Len(),
			"emitted":  s.result.Emitted,
			"elapsed":  FormatDuration(time.Since(s.startTime)),
		}).Debugf("[Player %d] Processing", s.result.PlayersExpanded)

		if len(matchIDs) == 0 {
			continue
		}

		done, res := s.expand(ctx, entry, matchIDs)
		if done {
			return res
		}
	}
}

// expand handles one player's match history. done is true when the run has
// reached a terminal state.
func (s *Spider) expand(ctx context.Context, entry FrontierEntry, matchIDs []string) (bool, Result) {
	for start := 0; start < len(matchIDs); start += s.cfg.Workers {
		if ctx.Err() != nil {
			return true, s.finish(StateCancelled, ctx.Err())
		}

		end := min(start+s.cfg.Workers, len(matchIDs))
		var fresh []string
		for _, id := range matchIDs[start:end] {
			if s.registry.MarkMatchIfNew(id) {
				fresh = append(fresh, id)
			}
		}
		if len(fresh) == 0 {
			continue
		}

		matches, err := s.fetchMatches(ctx, fresh)
		if err != nil {
			return true, s.fail(ctx, err)
		}

		for i, m := range matches {
			if m == nil {
				s.logger.WithField("match", fresh[i]).Debug("No data for match")
				continue
			}
			if done, res := s.accept(ctx, entry, m); done {
				return true, res
			}
		}
	}
	return false, Result{}
}

// fetchMatches returns records in the order of ids; a nil entry means the
// provider had no data for that id.
func (s *Spider) fetchMatches(ctx context.Context, ids []string) ([]*riot.MatchResponse, error) {
	out := make([]*riot.MatchResponse, len(ids))
	if len(ids) == 1 {
		m, err := s.source.GetMatch(ctx, ids[0])
		if err != nil {
			return nil, fmt.Errorf("match %s: %w", ids[0], err)
		}
		out[0] = m
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, id := range ids {
		g.Go(func() error {
			m, err := s.source.GetMatch(gctx, id)
			if err != nil {
				return fmt.Errorf("match %s: %w", id, err)
			}
			out[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// accept extracts, emits and expands one fetched match.
func (s *Spider) accept(ctx context.Context, entry FrontierEntry, m *riot.MatchResponse) (bool, Result) {
	smp, err := sample.Extract(m, s.cfg.Policy)
	if err != nil {
		if reason := sample.RejectionReason(err); reason != "" {
			s.result.Rejected++
			s.result.RejectedBy[reason]++
			s.logger.WithError(err).Debug("Skipping match")
			return false, Result{}
		}
		return true, s.finish(StateFailed, err)
	}

	// a match already fetched is stored even if the run was cancelled meanwhile
	if err := s.sink.Write(context.WithoutCancel(ctx), smp); err != nil {
		return true, s.fail(ctx, fmt.Errorf("write sample %s: %w", smp.MatchID, err))
	}
	s.result.Emitted++
	if s.cfg.OnSample != nil {
		s.cfg.OnSample(smp, s.result.Emitted)
	}

	nextDepth := entry.Depth + 1
	if s.cfg.MaxDepth == 0 || nextDepth <= s.cfg.MaxDepth {
		for _, puuid := range m.Participants() {
			if s.registry.MarkPlayerIfNew(puuid) {
				s.frontier.Push(FrontierEntry{PUUID: puuid, Depth: nextDepth})
			}
		}
	}

	if s.result.Emitted >= s.cfg.Target {
		return true, s.finish(StateCompleted, nil)
	}
	return false, Result{}
}

// fail ends the run, distinguishing cancellation from provider failure.
func (s *Spider) fail(ctx context.Context, err error) Result {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return s.finish(StateCancelled, err)
	}
	return s.finish(StateFailed, err)
}

func (s *Spider) finish(state State, err error) Result {
	if terr := s.state.TransitionTo(state); terr != nil {
		s.logger.WithError(terr).Error("Unexpected transition")
	}

	s.result.State = state
	s.result.Err = err
	s.result.PlayersSeen = s.registry.Players()
	s.result.MatchesSeen = s.registry.Matches()
	s.result.Elapsed = time.Since(s.startTime)

	entry := s.logger.WithFields(log.Fields{
		"state":    state,
		"emitted":  s.result.Emitted,
		"target":   s.cfg.Target,
		"expanded": s.result.PlayersExpanded,
		"rejected": s.result.Rejected,
		"elapsed":  FormatDuration(s.result.Elapsed),
	})
	if err != nil && state == StateFailed {
		entry.WithError(err).WithField("kind", riot.Kind(err)).Error("Crawl failed")
	} else {
		entry.Info("Crawl finished")
	}
	return s.result
}

func shortID(id string) string {
	if len(id) > 16 {
		return id[:16] + "..."
	}
	return id
}

// FormatDuration renders d compactly, e.g. 4.2s, 3m07s, 1h02m03s.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	} else if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%02ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%02dm%02ds", hours, mins, secs)
}
