package riot

// AccountResponse represents the response from /riot/account/v1/accounts/by-riot-id
type AccountResponse struct {
	PUUID    string `json:"puuid"`
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
}

// MatchResponse represents the response from /lol/match/v5/matches/{matchId}
type MatchResponse struct {
	Metadata MatchMetadata `json:"metadata"`
	Info     MatchInfo     `json:"info"`
}

type MatchMetadata struct {
	DataVersion  string   `json:"dataVersion"`
	MatchID      string   `json:"matchId"`
	Participants []string `json:"participants"` // PUUIDs
}

type MatchInfo struct {
	EndOfGameResult  string             `json:"endOfGameResult"` // GameComplete once finished
	GameCreation     int64              `json:"gameCreation"`
	GameDuration     int                `json:"gameDuration"`
	GameEndTimestamp int64              `json:"gameEndTimestamp"`
	GameMode         string             `json:"gameMode"`
	GameVersion      string             `json:"gameVersion"`
	MapID            int                `json:"mapId"`
	PlatformID       string             `json:"platformId"`
	QueueID          int                `json:"queueId"`
	Participants     []MatchParticipant `json:"participants"`
	Teams            []MatchTeam        `json:"teams"`
}

type MatchParticipant struct {
	ParticipantID             int    `json:"participantId"`
	PUUID                     string `json:"puuid"`
	RiotIdGameName            string `json:"riotIdGameName"`
	RiotIdTagline             string `json:"riotIdTagline"`
	ChampionID                int    `json:"championId"`
	ChampionName              string `json:"championName"`
	TeamID                    int    `json:"teamId"`       // 100 blue, 200 red
	TeamPosition              string `json:"teamPosition"` // TOP, JUNGLE, MIDDLE, BOTTOM, UTILITY
	Summoner1ID               int    `json:"summoner1Id"`
	Summoner2ID               int    `json:"summoner2Id"`
	Perks                     Perks  `json:"perks"`
	Win                       bool   `json:"win"`
	GameEndedInEarlySurrender bool   `json:"gameEndedInEarlySurrender"`
}

// Perks holds the rune page a participant locked in before the game.
type Perks struct {
	Styles []PerkStyle `json:"styles"`
}

type PerkStyle struct {
	Description string          `json:"description"` // primaryStyle or subStyle
	Style       int             `json:"style"`
	Selections  []PerkSelection `json:"selections"`
}

type PerkSelection struct {
	Perk int `json:"perk"`
}

type MatchTeam struct {
	TeamID int   `json:"teamId"`
	Win    bool  `json:"win"`
	Bans   []Ban `json:"bans"`
}

type Ban struct {
	ChampionID int `json:"championId"`
	PickTurn   int `json:"pickTurn"`
}

// LeagueListResponse represents /lol/league/v4/challengerleagues/by-queue/{queue}
type LeagueListResponse struct {
	Tier    string       `json:"tier"`
	Queue   string       `json:"queue"`
	Entries []LeagueItem `json:"entries"`
}

type LeagueItem struct {
	PUUID        string `json:"puuid"`
	SummonerID   string `json:"summonerId"`
	LeaguePoints int    `json:"leaguePoints"`
	Rank         string `json:"rank"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
}

// anonymousPUUID is what the match API reports for bots and hidden accounts.
const anonymousPUUID = "BOT"

// Participants returns the co-participant PUUIDs in provider order.
// Bots and anonymized entries are skipped.
func (m *MatchResponse) Participants() []string {
	ids := m.Metadata.Participants
	if len(ids) == 0 {
		ids = make([]string, 0, len(m.Info.Participants))
		for _, p := range m.Info.Participants {
			ids = append(ids, p.PUUID)
		}
	}

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || id == anonymousPUUID {
			continue
		}
		out = append(out, id)
	}
	return out
}
