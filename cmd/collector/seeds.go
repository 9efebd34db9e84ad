package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	log "github.com/sirupsen/logrus"

	"lol-match-crawler/internal/riot"
)

// errNoSeeds means no seed could be resolved to a player.
var errNoSeeds = errors.New("no seed player could be resolved")

type seedResolver interface {
	GetAccountByRiotID(ctx context.Context, gameName, tagLine string) (*riot.AccountResponse, error)
	GetTopChallengerPUUID(ctx context.Context) (string, error)
}

// resolveSeeds turns Name#Tag seeds into PUUIDs; anything without a '#' is
// taken as a PUUID already. Unknown Riot IDs are skipped with a warning.
// With no seeds at all the top Challenger player is used.
func resolveSeeds(ctx context.Context, r seedResolver, seeds []string, logger *log.Entry) ([]string, error) {
	if len(seeds) == 0 {
		puuid, err := r.GetTopChallengerPUUID(ctx)
		if err != nil {
			return nil, fmt.Errorf("look up top Challenger: %w", err)
		}
		if puuid == "" {
			return nil, fmt.Errorf("%w: Challenger ladder is empty", errNoSeeds)
		}
		logger.Infof("Seeding from top Challenger %s", shortPUUID(puuid))
		return []string{puuid}, nil
	}

	out := make([]string, 0, len(seeds))
	for _, seed := range seeds {
		seed = strings.TrimSpace(seed)
		if seed == "" {
			continue
		}
		name, tag, isRiotID := strings.Cut(seed, "#")
		if !isRiotID {
			out = append(out, seed)
			continue
		}
		if name == "" || tag == "" {
			logger.Warnf("Skipping seed %q: expected Name#Tag", seed)
			continue
		}

		account, err := r.GetAccountByRiotID(ctx, name, tag)
		if err != nil {
			return nil, fmt.Errorf("look up %s: %w", seed, err)
		}
		if account == nil {
			logger.Warnf("Skipping seed %s: account not found", seed)
			continue
		}
		logger.Infof("Seed %s -> %s", seed, shortPUUID(account.PUUID))
		out = append(out, account.PUUID)
	}
	if len(out) == 0 {
		return nil, errNoSeeds
	}
	return out, nil
}

func shortPUUID(puuid string) string {
	if len(puuid) > 12 {
		return puuid[:12] + "..."
	}
	return puuid
}

// redactURL drops credentials and query parameters from a sink URL for logs.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		scheme, _, _ := strings.Cut(raw, "://")
		return scheme + "://..."
	}
	u.RawQuery = ""
	return u.Redacted()
}
