package main

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"

	"lol-match-crawler/internal/config"
	"lol-match-crawler/internal/sample"
)

// progress shows a spinner with the sample count while the crawl runs. It is
// a no-op when stderr is not a terminal or --quiet is set.
type progress struct {
	spin   *spinner.Spinner
	target int
}

func newProgress(cfg *config.Config) *progress {
	p := &progress{target: cfg.Target}
	if cfg.Quiet || !isatty.IsTerminal(os.Stderr.Fd()) {
		return p
	}
	p.spin = spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	p.spin.Suffix = fmt.Sprintf(" 0 / %s samples", humanize.Comma(int64(cfg.Target)))
	// info lines would tear through the spinner
	if !cfg.Verbose {
		log.SetLevel(log.WarnLevel)
	}
	return p
}

func (p *progress) start() {
	if p.spin != nil {
		p.spin.Start()
	}
}

func (p *progress) stop() {
	if p.spin != nil {
		p.spin.Stop()
	}
}

func (p *progress) update(s *sample.MatchSample, emitted int) {
	if p.spin == nil {
		log.WithField("component", "crawler").Debugf("Sample %d/%d: %s", emitted, p.target, s.MatchID)
		return
	}
	p.spin.Lock()
	p.spin.Suffix = fmt.Sprintf(" %s / %s samples (last %s)",
		humanize.Comma(int64(emitted)), humanize.Comma(int64(p.target)), s.MatchID)
	p.spin.Unlock()
}
