// Package crawl runs the single-flight compliance crawl and publishes
// consistent snapshots of its progress.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kalambet/laiwatch/internal/activity"
	"github.com/kalambet/laiwatch/internal/compliance"
	"github.com/kalambet/laiwatch/internal/fetch"
	"github.com/kalambet/laiwatch/internal/links"
	"github.com/kalambet/laiwatch/internal/match"
	"github.com/kalambet/laiwatch/internal/metrics"
	"github.com/kalambet/laiwatch/internal/taxonomy"
)

// State is the lifecycle state of the controller.
type State string

const (
	StateIdle       State = "idle"
	StateRunning    State = "running"
	StateCancelling State = "cancelling"
	StateCompleted  State = "completed"
	StateCancelled  State = "cancelled"
)

// Active reports whether a worker is running in this state.
func (s State) Active() bool {
	return s == StateRunning || s == StateCancelling
}

var (
	ErrAlreadyRunning = errors.New("crawl already running")
	ErrInvalidSeed    = errors.New("seed must be an absolute http(s) URL")
)

// Fetcher retrieves resource bytes. *fetch.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Resource, error)
}

// TaxonomySource supplies the taxonomy at the start of each run.
type TaxonomySource interface {
	Taxonomy() (taxonomy.Taxonomy, error)
}

// StaticTaxonomy is a TaxonomySource that always returns the same taxonomy.
type StaticTaxonomy taxonomy.Taxonomy

func (s StaticTaxonomy) Taxonomy() (taxonomy.Taxonomy, error) {
	return taxonomy.Taxonomy(s).Clone(), nil
}

// Options tune a Controller. Zero values select the defaults.
type Options struct {
	Scope links.Scope
	// LinkDelay is the minimum spacing between the starts of two links.
	LinkDelay time.Duration
	// LogCapacity bounds the activity log; default 200.
	LogCapacity int
	// MaxDocuments caps linked documents followed per page; 0 means no cap.
	MaxDocuments int
	// DocumentWorkers bounds concurrent document fetches per page; default 4.
	DocumentWorkers int
	Logger          *zap.Logger
	Now             func() time.Time
}

// Progress counts links of the current run.
type Progress struct {
	TotalLinks     int `json:"total_links"`
	ProcessedLinks int `json:"processed_links"`
}

// Controller owns the crawl lifecycle. All of its state is guarded by mu;
// the worker only takes the lock to commit the result of one link.
type Controller struct {
	fetcher Fetcher
	taxSrc  TaxonomySource
	opts    Options
	log     *zap.Logger

	mu         sync.Mutex
	state      State
	runID      string
	seed       string
	startedAt  time.Time
	finishedAt time.Time
	ledger     *compliance.Ledger
	progress   Progress
	activity   *activity.Log
	cancel     context.CancelFunc
	done       chan struct{}
}

func New(f Fetcher, src TaxonomySource, opts Options) *Controller {
	if opts.LogCapacity <= 0 {
		opts.LogCapacity = 200
	}
	if opts.DocumentWorkers <= 0 {
		opts.DocumentWorkers = 4
	}
	if opts.MaxDocuments < 0 {
		opts.MaxDocuments = 0
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		fetcher:  f,
		taxSrc:   src,
		opts:     opts,
		log:      opts.Logger.With(zap.String("component", "crawl")),
		state:    StateIdle,
		ledger:   compliance.NewLedger(nil),
		activity: activity.New(opts.LogCapacity),
	}
}

// Start begins a crawl of seedURL and returns the run ID. It is accepted
// when no run is active; otherwise it returns ErrAlreadyRunning and leaves
// all state untouched.
func (c *Controller) Start(seedURL string) (string, error) {
	seed, err := parseSeed(seedURL)
	if err != nil {
		return "", err
	}

	if c.running() {
		return "", ErrAlreadyRunning
	}

	// The source may read a file or the database; snapshot readers must not
	// wait on it.
	tax, err := c.taxSrc.Taxonomy()
	if err != nil {
		return "", fmt.Errorf("loading taxonomy: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Active() {
		return "", ErrAlreadyRunning
	}
	if tax.KeywordCount() == 0 {
		c.log.Warn("taxonomy is empty; no keyword can be found", zap.String("seed", seed.String()))
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.state = StateRunning
	c.runID = uuid.NewString()
	c.seed = seed.String()
	c.startedAt = c.opts.Now()
	c.finishedAt = time.Time{}
	c.ledger = compliance.NewLedger(tax)
	c.progress = Progress{TotalLinks: 1}
	c.activity.Reset()
	c.cancel = cancel
	c.done = make(chan struct{})
	c.appendLocked(fmt.Sprintf("Starting crawl of %s", c.seed))

	metrics.CrawlRunning.Set(1)
	c.log.Info("crawl started",
		zap.String("run_id", c.runID),
		zap.String("seed", c.seed),
		zap.Int("categories", len(tax)),
		zap.Int("keywords", tax.KeywordCount()),
	)

	w := newWorker(c, seed, match.New(tax))
	go w.run(ctx, c.done)

	return c.runID, nil
}

// Stop requests cancellation of the active run. The worker notices at the
// next link boundary; in-flight work completes. Without an active run Stop
// does nothing and returns false.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRunning {
		return false
	}
	c.state = StateCancelling
	c.cancel()
	c.appendLocked("Stop requested")
	c.log.Info("crawl stop requested", zap.String("run_id", c.runID))
	return true
}

// Wait blocks until the current run, if any, has finished or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the active run and waits for its worker to exit.
func (c *Controller) Close(ctx context.Context) error {
	c.Stop()
	return c.Wait(ctx)
}

func (c *Controller) running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Active()
}

// appendLocked adds an activity line. c.mu must be held.
func (c *Controller) appendLocked(msg string) {
	c.activity.Append(c.opts.Now(), msg)
}

func (c *Controller) appendLine(msg string) {
	c.mu.Lock()
	c.appendLocked(msg)
	c.mu.Unlock()
}

// commit folds one link's outcome into the shared state. If total is
// positive it fixes TotalLinks first. Reaching TotalLinks completes the run
// in the same critical section.
func (c *Controller) commit(out *outcome, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, line := range out.lines {
		c.appendLocked(line)
	}
	for _, ev := range out.evidence {
		if n := c.ledger.Apply(ev.url, ev.hits); n > 0 {
			metrics.KeywordsFoundTotal.Add(float64(n))
			c.appendLocked(fmt.Sprintf("Found %d new keyword(s) in %s", n, ev.url))
		}
	}
	if total > 0 {
		c.progress.TotalLinks = total
	}
	c.progress.ProcessedLinks++

	if c.progress.ProcessedLinks >= c.progress.TotalLinks {
		c.appendLocked(fmt.Sprintf("Completed: %d link(s) processed", c.progress.ProcessedLinks))
		c.finishLocked(StateCompleted)
	}
}

// cancelled ends the run after a stop, discarding the unprocessed links.
func (c *Controller) cancelled() {
	c.mu.Lock()
	defer c.mu.Unlock()

	discarded := c.progress.TotalLinks - c.progress.ProcessedLinks
	c.appendLocked(fmt.Sprintf("Cancelled after %d of %d link(s); %d discarded",
		c.progress.ProcessedLinks, c.progress.TotalLinks, discarded))
	c.progress.TotalLinks = c.progress.ProcessedLinks
	c.finishLocked(StateCancelled)
}

func (c *Controller) finishLocked(s State) {
	c.state = s
	c.finishedAt = c.opts.Now()
	c.cancel()

	metrics.CrawlRunning.Set(0)
	metrics.CrawlRunsTotal.WithLabelValues(string(s)).Inc()
	c.log.Info("crawl finished",
		zap.String("run_id", c.runID),
		zap.String("state", string(s)),
		zap.Int("processed_links", c.progress.ProcessedLinks),
		zap.Duration("elapsed", c.finishedAt.Sub(c.startedAt)),
	)
}

func parseSeed(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSeed, raw)
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u, nil
}
