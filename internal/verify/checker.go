package verify

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"affiliateprograms.wiki/internal/entity"
	"affiliateprograms.wiki/internal/ids"
)

const (
	defaultCheckTimeout = 10 * time.Second
	maxRedirects        = 10
)

// Checker probes URLs with HEAD requests and classifies the outcome.
type Checker struct {
	client *http.Client
	now    func() time.Time
}

// NewChecker builds a Checker with the given per-request timeout.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	return &Checker{
		now:    time.Now,
		client: &http.Client{Timeout: timeout},
	}
}

// Check probes one URL and returns the resulting run. It never returns an
// error: failures are encoded in the run's status.
func (c *Checker) Check(ctx context.Context, kind entity.Kind, entityID int64, rawURL string, urlType URLType) Run {
	now := c.now().UTC()
	run := Run{
		ID:         ids.New(),
		EntityKind: kind,
		EntityID:   entityID,
		URL:        rawURL,
		URLType:    urlType,
		CheckedAt:  now,
	}
	if rawURL == "" {
		run.Status = StatusBroken
		run.NextCheckAt = nextCheck(now, run.Status)
		return run
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		run.Status = StatusBroken
		run.NextCheckAt = nextCheck(now, run.Status)
		return run
	}

	// Per-call client copy so concurrent checks record separate chains.
	var chain []Hop
	client := *c.client
	client.CheckRedirect = func(r *http.Request, via []*http.Request) error {
		if r.Response != nil {
			chain = append(chain, Hop{URL: via[len(via)-1].URL.String(), Code: r.Response.StatusCode})
		}
		if len(via) >= maxRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}

	start := time.Now()
	resp, err := client.Do(req)
	run.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		run.Status = StatusBroken
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			run.Status = StatusTimeout
		}
		run.NextCheckAt = nextCheck(now, run.Status)
		return run
	}
	defer resp.Body.Close()

	run.HTTPCode = resp.StatusCode
	run.RedirectChain = chain
	run.FinalURL = resp.Request.URL.String()
	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		run.Status = StatusBlocked
	case resp.StatusCode >= 400:
		run.Status = StatusBroken
	case len(chain) > 0:
		run.Status = StatusRedirect
	default:
		run.Status = StatusSuccess
	}
	run.NextCheckAt = nextCheck(now, run.Status)
	return run
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	if errors.As(err, &t) {
		return t.Timeout()
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}
