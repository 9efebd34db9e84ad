package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"

	json "github.com/goccy/go-json"

	"lol-match-crawler/internal/riot"
	"lol-match-crawler/internal/sample"
)

var roles = []string{"TOP", "JUNGLE", "MIDDLE", "BOTTOM", "UTILITY"}

// fakeProvider serves an in-memory player/match graph.
type fakeProvider struct {
	mu        sync.Mutex
	histories map[string][]string
	matches   map[string]*riot.MatchResponse

	historyErr map[string]error
	matchErr   map[string]error

	expanded []string
	fetched  []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		histories:  make(map[string][]string),
		matches:    make(map[string]*riot.MatchResponse),
		historyErr: make(map[string]error),
		matchErr:   make(map[string]error),
	}
}

// addMatch registers a finished solo queue match. Up to ten players are
// seated in order; empty seats are filled with bots. Every listed player gets
// the match in their history.
func (f *fakeProvider) addMatch(id string, players ...string) *riot.MatchResponse {
	m := &riot.MatchResponse{
		Metadata: riot.MatchMetadata{MatchID: id},
		Info: riot.MatchInfo{
			EndOfGameResult:  "GameComplete",
			GameCreation:     1700000000000,
			GameDuration:     1800,
			GameEndTimestamp: 1700001800000,
			GameVersion:      "14.1.1",
			QueueID:          420,
			Teams: []riot.MatchTeam{
				{TeamID: 100, Win: true},
				{TeamID: 200},
			},
		},
	}
	for i := 0; i < 10; i++ {
		puuid := "BOT"
		if i < len(players) {
			puuid = players[i]
		}
		team := 100
		if i >= 5 {
			team = 200
		}
		m.Metadata.Participants = append(m.Metadata.Participants, puuid)
		m.Info.Participants = append(m.Info.Participants, riot.MatchParticipant{
			PUUID:        puuid,
			ChampionID:   i + 1,
			TeamID:       team,
			TeamPosition: roles[i%5],
		})
	}
	f.matches[id] = m
	for _, p := range players {
		f.histories[p] = append(f.histories[p], id)
	}
	return m
}

func (f *fakeProvider) GetMatchHistory(ctx context.Context, puuid string, count int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expanded = append(f.expanded, puuid)
	if err := f.historyErr[puuid]; err != nil {
		return nil, err
	}
	ids := f.histories[puuid]
	if len(ids) > count {
		ids = ids[:count]
	}
	return append([]string(nil), ids...), nil
}

func (f *fakeProvider) GetMatch(ctx context.Context, matchID string) (*riot.MatchResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, matchID)
	if err := f.matchErr[matchID]; err != nil {
		return nil, err
	}
	return f.matches[matchID], nil
}

func (f *fakeProvider) Expanded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.expanded...)
}

func (f *fakeProvider) Fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}

// cancelOnFetch cancels the run as soon as a match comes back, the way a
// signal can land while a request is in flight.
type cancelOnFetch struct {
	*fakeProvider
	cancel context.CancelFunc
}

func (c *cancelOnFetch) GetMatch(ctx context.Context, matchID string) (*riot.MatchResponse, error) {
	m, err := c.fakeProvider.GetMatch(ctx, matchID)
	c.cancel()
	return m, err
}

// memorySink records samples in write order.
type memorySink struct {
	mu      sync.Mutex
	samples []*sample.MatchSample
	failAt  int
	// ctxAware makes Write fail on a done context, like the database sinks.
	ctxAware bool
}

var errDiskFull = errors.New("disk full")

func (s *memorySink) Write(ctx context.Context, smp *sample.MatchSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctxAware && ctx.Err() != nil {
		return ctx.Err()
	}
	if s.failAt > 0 && len(s.samples)+1 >= s.failAt {
		return errDiskFull
	}
	s.samples = append(s.samples, smp)
	return nil
}

func (s *memorySink) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.samples))
	for _, smp := range s.samples {
		ids = append(ids, smp.MatchID)
	}
	return ids
}

// chainGraph builds a line of n matches: match i is shared by player i and
// player i+1, so each expansion discovers exactly one new player.
func chainGraph(n int) *fakeProvider {
	f := newFakeProvider()
	for i := 0; i < n; i++ {
		f.addMatch(fmt.Sprintf("NA1_%d", i), fmt.Sprintf("p%d", i), fmt.Sprintf("p%d", i+1))
	}
	return f
}

func jsonMatch(m *riot.MatchResponse) ([]byte, error) {
	return json.Marshal(m)
}
