package riot

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

const (
	defaultRegion   = "americas"
	defaultPlatform = "na1"
	defaultTimeout  = 30 * time.Second

	// Used when a 429 carries no usable Retry-After header.
	defaultRetryAfter = 10 * time.Second

	methodAccountByRiotID = "account-v1.getByRiotId"
	methodMatchIDs        = "match-v5.getMatchIdsByPUUID"
	methodMatch           = "match-v5.getMatch"
	methodChallenger      = "league-v4.getChallengerLeague"
	methodPlatformStatus  = "lol-status-v4.getPlatformData"
)

// RegionURL returns the API host for a regional or platform route.
func RegionURL(route string) string {
	return fmt.Sprintf("https://%s.api.riotgames.com", route)
}

// RetryPolicy bounds how hard the client tries before giving up on a request.
type RetryPolicy struct {
	// MaxAttempts bounds attempts on transient failures (5xx, network, timeout).
	MaxAttempts int
	// BaseDelay is the first backoff delay; it doubles per attempt up to MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// MaxRateLimitRetries bounds how many 429 responses are waited out per request.
	MaxRateLimitRetries int
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:         4,
		BaseDelay:           500 * time.Millisecond,
		MaxDelay:            30 * time.Second,
		MaxRateLimitRetries: 5,
	}
}

// Client is a rate-limited Riot API client
type Client struct {
	apiKey      string
	http        *resty.Client
	regionalURL string
	platformURL string
	historyQ    int

	clock  Clock
	policy RetryPolicy
	logger *log.Entry

	// Rate limiting
	limiter        *Limiter
	limits         []Limit
	methodMu       sync.Mutex
	methodLimiters map[string]*Limiter
}

// Option configures a Client
type Option func(*Client)

// WithRegionalURL overrides the regional host (account-v1, match-v5). Useful for testing.
func WithRegionalURL(u string) Option {
	return func(c *Client) { c.regionalURL = u }
}

// WithPlatformURL overrides the platform host (league-v4, lol-status-v4). Useful for testing.
func WithPlatformURL(u string) Option {
	return func(c *Client) { c.platformURL = u }
}

// WithRoutes sets both hosts from route names such as "americas" and "na1".
func WithRoutes(region, platform string) Option {
	return func(c *Client) {
		if region != "" {
			c.regionalURL = RegionURL(region)
		}
		if platform != "" {
			c.platformURL = RegionURL(platform)
		}
	}
}

// WithLimits replaces the default application rate limits.
func WithLimits(limits ...Limit) Option {
	return func(c *Client) { c.limits = limits }
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// WithClock replaces the wall clock used for rate limiting and backoff.
func WithClock(clock Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(timeout) }
}

// WithHistoryQueue restricts match history lookups to a single queue id.
func WithHistoryQueue(queueID int) Option {
	return func(c *Client) { c.historyQ = queueID }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *log.Entry) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a new Riot API client
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}

	c := &Client{
		apiKey:         apiKey,
		http:           resty.New().SetTimeout(defaultTimeout),
		regionalURL:    RegionURL(defaultRegion),
		platformURL:    RegionURL(defaultPlatform),
		clock:          realClock{},
		policy:         DefaultRetryPolicy(),
		logger:         log.WithField("component", "riot"),
		limits:         DefaultLimits,
		methodLimiters: make(map[string]*Limiter),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.limiter = NewLimiter(c.clock, c.limits...)
	c.http.
		SetHeader("X-Riot-Token", c.apiKey).
		SetHeader("Accept", "application/json").
		SetRetryCount(0).
		SetLogger(c.logger).
		OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
			c.logger.WithFields(log.Fields{
				"status":   resp.StatusCode(),
				"url":      resp.Request.URL,
				"duration": resp.Time(),
			}).Debug("response")
			return nil
		})

	return c, nil
}

// Limits returns the application limits currently enforced.
func (c *Client) Limits() []Limit {
	return c.limiter.Limits()
}

// acquire blocks until both the application and the method limiter admit a request.
func (c *Client) acquire(ctx context.Context, method string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	c.methodMu.Lock()
	ml := c.methodLimiters[method]
	c.methodMu.Unlock()
	if ml == nil {
		return nil
	}
	return ml.Wait(ctx)
}

// learnLimits tightens the limiters from the quota headers of a response.
func (c *Client) learnLimits(method string, header http.Header) {
	if appLimits, err := ParseRateLimitHeader(header.Get("X-App-Rate-Limit")); err != nil {
		c.logger.WithError(err).Debug("ignoring app rate limit header")
	} else if len(appLimits) > 0 {
		c.limiter.Tighten(appLimits)
	}

	methodLimits, err := ParseRateLimitHeader(header.Get("X-Method-Rate-Limit"))
	if err != nil {
		c.logger.WithError(err).Debug("ignoring method rate limit header")
		return
	}
	if len(methodLimits) == 0 {
		return
	}

	c.methodMu.Lock()
	defer c.methodMu.Unlock()
	if ml, ok := c.methodLimiters[method]; ok {
		ml.Tighten(methodLimits)
		return
	}
	c.methodLimiters[method] = NewLimiter(c.clock, methodLimits...)
}

func (c *Client) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.policy.BaseDelay
	bo.Multiplier = 2
	bo.MaxInterval = c.policy.MaxDelay
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.clock.After(d):
		return nil
	}
}

// doRequest makes a rate-limited GET and decodes a 200 body into result.
// It reports found=false when the provider has no data for the request.
// Requests already sent are not aborted by ctx; ctx only stops new ones.
func (c *Client) doRequest(ctx context.Context, method, fullURL string, query url.Values, result any) (bool, error) {
	reqCtx := context.WithoutCancel(ctx)
	bo := c.newBackOff()
	attempts := 0
	rateLimited := 0

	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if err := c.acquire(ctx, method); err != nil {
			return false, err
		}

		attempts++
		resp, err := c.http.R().
			SetContext(reqCtx).
			SetQueryParamsFromValues(query).
			Get(fullURL)

		var lastErr error
		if err != nil {
			lastErr = Err(ErrTransient, err, "")
		} else {
			c.learnLimits(method, resp.Header())

			switch code := resp.StatusCode(); {
			case code == http.StatusOK:
				if err := json.Unmarshal(resp.Body(), result); err != nil {
					lastErr = Err(ErrTransient, err, "decoding %s", method)
					break
				}
				return true, nil

			case code == http.StatusTooManyRequests:
				rateLimited++
				if rateLimited > c.policy.MaxRateLimitRetries {
					return false, Err(ErrProviderUnavailable, ErrRateLimited,
						"%s still rate limited after %d retries", method, c.policy.MaxRateLimitRetries)
				}
				wait := retryAfter(resp.Header().Get("Retry-After"))
				c.logger.WithFields(log.Fields{"method": method, "wait": wait}).Warn("429 rate limited")
				attempts-- // a 429 is not a transient failure
				if err := c.sleep(ctx, wait); err != nil {
					return false, err
				}
				continue

			case code == http.StatusUnauthorized || code == http.StatusForbidden:
				return false, Err(ErrAuthRejected, &StatusError{StatusCode: code, URL: fullURL}, "check if your API key is valid")

			case code == http.StatusNotFound || code == http.StatusBadRequest:
				c.logger.WithFields(log.Fields{"method": method, "status": code}).Debug("no data")
				return false, nil

			case code >= 500:
				lastErr = Err(ErrTransient, &StatusError{StatusCode: code, URL: fullURL}, "")

			default:
				return false, Err(ErrProviderUnavailable, &StatusError{StatusCode: code, URL: fullURL}, "")
			}
		}

		if attempts >= c.policy.MaxAttempts {
			return false, Err(ErrProviderUnavailable, lastErr, "%s failed after %d attempts", method, attempts)
		}
		wait := bo.NextBackOff()
		c.logger.WithFields(log.Fields{"method": method, "attempt": attempts, "wait": wait}).
			WithError(lastErr).Warn("transient failure, backing off")
		if err := c.sleep(ctx, wait); err != nil {
			return false, err
		}
	}
}

func retryAfter(header string) time.Duration {
	if header == "" {
		return defaultRetryAfter
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return defaultRetryAfter
	}
	return time.Duration(seconds) * time.Second
}

// GetAccountByRiotID fetches account info by Riot ID (gameName#tagLine).
// Returns nil when no such account exists.
func (c *Client) GetAccountByRiotID(ctx context.Context, gameName, tagLine string) (*AccountResponse, error) {
	u := fmt.Sprintf("%s/riot/account/v1/accounts/by-riot-id/%s/%s",
		c.regionalURL, url.PathEscape(gameName), url.PathEscape(tagLine))

	var account AccountResponse
	found, err := c.doRequest(ctx, methodAccountByRiotID, u, nil, &account)
	if err != nil || !found {
		return nil, err
	}
	return &account, nil
}

// GetMatchHistory fetches the most recent match IDs for a player, newest first.
// Private or empty histories yield an empty slice.
func (c *Client) GetMatchHistory(ctx context.Context, puuid string, count int) ([]string, error) {
	u := fmt.Sprintf("%s/lol/match/v5/matches/by-puuid/%s/ids", c.regionalURL, url.PathEscape(puuid))
	q := url.Values{}
	q.Set("start", "0")
	q.Set("count", strconv.Itoa(count))
	if c.historyQ > 0 {
		q.Set("queue", strconv.Itoa(c.historyQ))
	}

	var matchIDs []string
	found, err := c.doRequest(ctx, methodMatchIDs, u, q, &matchIDs)
	if err != nil || !found {
		return nil, err
	}
	return matchIDs, nil
}

// GetMatch fetches match details. Returns nil when the match is unavailable.
func (c *Client) GetMatch(ctx context.Context, matchID string) (*MatchResponse, error) {
	u := fmt.Sprintf("%s/lol/match/v5/matches/%s", c.regionalURL, url.PathEscape(matchID))

	var match MatchResponse
	found, err := c.doRequest(ctx, methodMatch, u, nil, &match)
	if err != nil || !found {
		return nil, err
	}
	return &match, nil
}

// GetTopChallengerPUUID returns the PUUID of the highest-LP solo queue
// Challenger player, or "" when the ladder is empty.
func (c *Client) GetTopChallengerPUUID(ctx context.Context) (string, error) {
	u := c.platformURL + "/lol/league/v4/challengerleagues/by-queue/RANKED_SOLO_5x5"

	var league LeagueListResponse
	found, err := c.doRequest(ctx, methodChallenger, u, nil, &league)
	if err != nil || !found {
		return "", err
	}

	entries := league.Entries
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].LeaguePoints > entries[j].LeaguePoints
	})
	for _, e := range entries {
		if e.PUUID != "" {
			return e.PUUID, nil
		}
	}
	return "", nil
}

// MaskKey masks an API key for display (e.g. "RGAPI-xxxx-xxxx" -> "RGAPI...xxxx")
func MaskKey(key string) string {
	if len(key) <= 10 {
		return "****"
	}
	return key[:5] + "..." + key[len(key)-4:]
}
