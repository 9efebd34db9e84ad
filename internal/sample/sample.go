// Package sample defines the row emitted per crawled match and the pure
// extraction of that row from a raw match-v5 record.
package sample

import (
	"fmt"
	"strconv"
	"strings"
)

// SchemaVersion identifies the column layout below. Bump it on any change.
const SchemaVersion = "v1"

const (
	TeamSize = 5
	BlueSide = 100
	RedSide  = 200

	// NoBan fills ban slots a team did not use.
	NoBan = -1
)

// Roles in the order picks are laid out within a side.
var Roles = []string{"TOP", "JUNGLE", "MIDDLE", "BOTTOM", "UTILITY"}

// Pick is one participant's starting conditions.
type Pick struct {
	Side         int    `json:"side"`
	Role         string `json:"role"`
	ChampionID   int    `json:"championId"`
	Spell1ID     int    `json:"spell1Id"`
	Spell2ID     int    `json:"spell2Id"`
	PrimaryStyle int    `json:"primaryStyle"`
	SubStyle     int    `json:"subStyle"`
	Keystone     int    `json:"keystone"`
}

// MatchSample is one output row: a match's pre-game state and its winner.
type MatchSample struct {
	MatchID      string `json:"matchId"`
	GameVersion  string `json:"gameVersion"`
	QueueID      int    `json:"queueId"`
	GameCreation int64  `json:"gameCreation"`
	GameDuration int    `json:"gameDuration"`

	BlueBans [TeamSize]int `json:"blueBans"`
	RedBans  [TeamSize]int `json:"redBans"`

	// Blue side first, each side ordered by role.
	Picks []Pick `json:"picks"`

	WinningSide int `json:"winningSide"`
}

var pickFields = []string{"side", "role", "champion_id", "spell1_id", "spell2_id", "primary_style", "sub_style", "keystone"}

// Columns returns the header row of the published layout.
func Columns() []string {
	cols := []string{"match_id", "game_version", "queue_id", "game_creation", "game_duration"}
	for _, side := range []string{"blue", "red"} {
		for i := 1; i <= TeamSize; i++ {
			cols = append(cols, fmt.Sprintf("%s_ban_%d", side, i))
		}
	}
	for i := 1; i <= 2*TeamSize; i++ {
		for _, f := range pickFields {
			cols = append(cols, fmt.Sprintf("p%d_%s", i, f))
		}
	}
	return append(cols, "winning_side")
}

// Values returns the typed row values in Columns order: strings for ids,
// version and roles, int64 for game_creation, int for everything else.
func (s *MatchSample) Values() []any {
	row := make([]any, 0, 5+2*TeamSize+len(s.Picks)*len(pickFields)+1)
	row = append(row, s.MatchID, s.GameVersion, s.QueueID, s.GameCreation, s.GameDuration)
	for _, bans := range [][TeamSize]int{s.BlueBans, s.RedBans} {
		for _, b := range bans {
			row = append(row, b)
		}
	}
	for _, p := range s.Picks {
		row = append(row, p.Side, p.Role, p.ChampionID, p.Spell1ID, p.Spell2ID, p.PrimaryStyle, p.SubStyle, p.Keystone)
	}
	return append(row, s.WinningSide)
}

// Record returns the row values in Columns order, formatted as text.
func (s *MatchSample) Record() []string {
	values := s.Values()
	row := make([]string, len(values))
	for i, v := range values {
		switch v := v.(type) {
		case string:
			row[i] = v
		case int:
			row[i] = strconv.Itoa(v)
		case int64:
			row[i] = strconv.FormatInt(v, 10)
		}
	}
	return row
}

// Header opens a JSON Lines file in place of a CSV header row.
type Header struct {
	Schema  string   `json:"schema"`
	Columns []string `json:"columns"`
}

// NewHeader describes the current layout.
func NewHeader() Header {
	return Header{Schema: SchemaVersion, Columns: Columns()}
}

// TextColumn reports whether col holds text rather than an integer.
func TextColumn(col string) bool {
	return col == "match_id" || col == "game_version" || strings.HasSuffix(col, "_role")
}
