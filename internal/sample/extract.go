package sample

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"lol-match-crawler/internal/riot"
)

// Reason says why a match cannot be sampled.
type Reason string

const (
	ReasonIneligibleMode Reason = "ineligible_mode"
	ReasonMissingFields  Reason = "missing_fields"
	ReasonInProgress     Reason = "in_progress"
)

// ErrRejected matches every *RejectedError via errors.Is.
var ErrRejected = errors.New("match rejected")

// RejectedError reports an unusable match. It is not a failure of the crawl.
type RejectedError struct {
	MatchID string
	Reason  Reason
	Detail  string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("match %s rejected (%s): %s", e.MatchID, e.Reason, e.Detail)
}

func (e *RejectedError) Unwrap() error { return ErrRejected }

// RejectionReason returns the reason carried by err, or "" if err is not a rejection.
func RejectionReason(err error) Reason {
	var rej *RejectedError
	if errors.As(err, &rej) {
		return rej.Reason
	}
	return ""
}

// Policy selects which matches are eligible for sampling.
type Policy struct {
	// Queues lists accepted queue ids; empty accepts any queue.
	Queues []int
	// AllowRemakes keeps games that ended in an early surrender.
	AllowRemakes bool
}

// DefaultPolicy samples ranked solo/duo (queue 420) and drops remakes.
func DefaultPolicy() Policy {
	return Policy{Queues: []int{420}}
}

const gameComplete = "GameComplete"

// Extract converts a raw match into a sample. It is pure: the same record
// always yields the same sample or the same rejection.
func Extract(m *riot.MatchResponse, policy Policy) (*MatchSample, error) {
	if m == nil {
		return nil, &RejectedError{Reason: ReasonMissingFields, Detail: "empty record"}
	}
	id := m.Metadata.MatchID
	reject := func(reason Reason, format string, args ...any) error {
		return &RejectedError{MatchID: id, Reason: reason, Detail: fmt.Sprintf(format, args...)}
	}

	if id == "" {
		return nil, reject(ReasonMissingFields, "no match id")
	}
	if len(policy.Queues) > 0 && !slices.Contains(policy.Queues, m.Info.QueueID) {
		return nil, reject(ReasonIneligibleMode, "queue %d", m.Info.QueueID)
	}
	if m.Info.GameEndTimestamp == 0 || (m.Info.EndOfGameResult != "" && m.Info.EndOfGameResult != gameComplete) {
		return nil, reject(ReasonInProgress, "end of game result %q", m.Info.EndOfGameResult)
	}

	parts := m.Info.Participants
	if len(parts) != 2*TeamSize {
		return nil, reject(ReasonMissingFields, "%d participants", len(parts))
	}

	perSide := map[int]int{}
	for i, p := range parts {
		if p.ChampionID == 0 {
			return nil, reject(ReasonMissingFields, "participant %d has no champion", i)
		}
		if p.TeamID != BlueSide && p.TeamID != RedSide {
			return nil, reject(ReasonMissingFields, "participant %d has team %d", i, p.TeamID)
		}
		if p.GameEndedInEarlySurrender && !policy.AllowRemakes {
			return nil, reject(ReasonIneligibleMode, "remake")
		}
		perSide[p.TeamID]++
	}
	if perSide[BlueSide] != TeamSize || perSide[RedSide] != TeamSize {
		return nil, reject(ReasonMissingFields, "teams are %d v %d", perSide[BlueSide], perSide[RedSide])
	}

	winner := 0
	s := &MatchSample{
		MatchID:      id,
		GameVersion:  m.Info.GameVersion,
		QueueID:      m.Info.QueueID,
		GameCreation: m.Info.GameCreation,
		GameDuration: m.Info.GameDuration,
		BlueBans:     noBans(),
		RedBans:      noBans(),
	}
	for _, team := range m.Info.Teams {
		switch team.TeamID {
		case BlueSide:
			s.BlueBans = bans(team.Bans)
		case RedSide:
			s.RedBans = bans(team.Bans)
		default:
			continue
		}
		if team.Win {
			if winner != 0 {
				return nil, reject(ReasonMissingFields, "both teams won")
			}
			winner = team.TeamID
		}
	}
	if winner == 0 {
		return nil, reject(ReasonMissingFields, "no winning team")
	}
	s.WinningSide = winner

	s.Picks = make([]Pick, 0, len(parts))
	for _, p := range parts {
		s.Picks = append(s.Picks, pickOf(p))
	}
	sort.SliceStable(s.Picks, func(i, j int) bool {
		a, b := s.Picks[i], s.Picks[j]
		if a.Side != b.Side {
			return a.Side < b.Side
		}
		return roleRank(a.Role) < roleRank(b.Role)
	})

	return s, nil
}

func noBans() [TeamSize]int {
	var out [TeamSize]int
	for i := range out {
		out[i] = NoBan
	}
	return out
}

func bans(in []riot.Ban) [TeamSize]int {
	out := noBans()
	for i, b := range in {
		if i >= TeamSize {
			break
		}
		out[i] = b.ChampionID
	}
	return out
}

// roleRank orders known roles first; unknown or empty roles sort last.
func roleRank(role string) int {
	if i := slices.Index(Roles, role); i >= 0 {
		return i
	}
	return len(Roles)
}

func pickOf(p riot.MatchParticipant) Pick {
	pick := Pick{
		Side:       p.TeamID,
		Role:       p.TeamPosition,
		ChampionID: p.ChampionID,
		Spell1ID:   p.Summoner1ID,
		Spell2ID:   p.Summoner2ID,
	}

	for i, style := range p.Perks.Styles {
		primary := style.Description == "primaryStyle" || (style.Description == "" && i == 0)
		sub := style.Description == "subStyle" || (style.Description == "" && i == 1)
		switch {
		case primary:
			pick.PrimaryStyle = style.Style
			if len(style.Selections) > 0 {
				pick.Keystone = style.Selections[0].Perk
			}
		case sub:
			pick.SubStyle = style.Style
		}
	}
	return pick
}
