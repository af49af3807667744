// Package sync schedules periodic mailbox syncs and records their
// outcomes in the bookkeeping store.
package sync

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/mailsync/internal/mailbox"
	"github.com/nhle/mailsync/internal/model"
	"github.com/nhle/mailsync/internal/store"
)

// State represents the current state of the sync loop.
type State int

const (
	Idle State = iota
	Running
	Failed
)

// Status holds the most recent sync outcome.
type Status struct {
	State    State
	LastSync time.Time
	LastNew  int
	Err      error
}

// Result pairs the recorded run with the raw sync result.
type Result struct {
	Run    model.SyncRun
	Result mailbox.SyncResult
}

// Syncer is the slice of the mailbox service the poller needs.
type Syncer interface {
	SyncMailbox(ctx context.Context, opts mailbox.SyncOptions) mailbox.SyncResult
}

// runTimeout bounds a single sync operation end to end.
const runTimeout = 90 * time.Second

// Poller periodically syncs the configured mailbox and records each
// run. Results are also delivered on a channel for interactive
// consumers; sends never block the loop.
type Poller struct {
	syncer   Syncer
	store    store.Store
	log      *logrus.Logger
	interval time.Duration
	opts     mailbox.SyncOptions

	resultCh  chan Result
	triggerCh chan struct{}
	stopCh    chan struct{}

	mu      gosync.Mutex
	status  Status
	running bool
}

// New creates a Poller. store may be nil, in which case runs are not
// persisted.
func New(syncer Syncer, st store.Store, cfg *model.AppConfig, log *logrus.Logger) *Poller {
	if log == nil {
		log = logrus.StandardLogger()
	}
	interval := time.Duration(cfg.Sync.PollIntervalSec) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Poller{
		syncer:   syncer,
		store:    st,
		log:      log,
		interval: interval,
		opts: mailbox.SyncOptions{
			Mailbox: cfg.IMAP.Mailbox,
			Limit:   cfg.IMAP.SyncLimit,
		},
		resultCh:  make(chan Result, 16),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the polling loop. An initial sync runs immediately.
// A stopped poller can be started again.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	stop := p.stopCh
	p.mu.Unlock()

	go p.loop(stop)
}

// Stop halts the polling loop.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	close(p.stopCh)
	p.running = false
}

// Trigger requests an immediate sync outside the regular interval.
func (p *Poller) Trigger() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
		// A trigger is already queued.
	}
}

// Results delivers completed runs. The channel is never closed while
// the poller exists; slow consumers may miss results.
func (p *Poller) Results() <-chan Result {
	return p.resultCh
}

// Status returns the most recent sync outcome.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Poller) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.runAndPublish()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.runAndPublish()
		case <-p.triggerCh:
			p.runAndPublish()
		}
	}
}

func (p *Poller) runAndPublish() {
	p.setStatus(Status{State: Running})

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	run, res := p.RunOnce(ctx)

	if res.Success {
		p.setStatus(Status{State: Idle, LastSync: run.FinishedAt, LastNew: run.NewCount})
	} else {
		p.setStatus(Status{State: Failed, Err: errors.New(run.Error)})
	}

	select {
	case p.resultCh <- Result{Run: run, Result: res}:
	default:
		// Drop if the channel is full to avoid blocking the loop.
	}
}

// RunOnce performs a single sync, persists the outcome, and returns
// the recorded run alongside the raw result. It is used both by the
// loop and by the one-shot CLI command.
func (p *Poller) RunOnce(ctx context.Context) (model.SyncRun, mailbox.SyncResult) {
	started := time.Now().UTC()
	res := p.syncer.SyncMailbox(ctx, p.opts)
	finished := time.Now().UTC()

	name := res.Mailbox
	if name == "" {
		name = p.opts.Mailbox
	}

	run := model.SyncRun{
		Mailbox:    name,
		UIDCount:   len(res.MessageUIDs),
		Success:    res.Success,
		Error:      res.Error,
		StartedAt:  started,
		FinishedAt: finished,
	}

	if p.store != nil {
		if res.Success && len(res.MessageUIDs) > 0 {
			newCount, err := p.store.UpsertMessages(ctx, name, res.MessageUIDs, finished)
			if err != nil {
				p.log.WithError(err).Warn("recording message uids failed")
			} else {
				run.NewCount = newCount
			}
		}
		if err := p.store.RecordSyncRun(ctx, run); err != nil {
			p.log.WithError(err).Warn("recording sync run failed")
		}
	}

	entry := p.log.WithFields(logrus.Fields{
		"mailbox": name,
		"uids":    run.UIDCount,
		"new":     run.NewCount,
	})
	if res.Success {
		entry.Info("sync complete")
	} else {
		entry.WithField("error", res.Error).Warn("sync failed")
	}

	return run, res
}

func (p *Poller) setStatus(st Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = st
}
