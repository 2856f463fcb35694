package watch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/docvault/internal/capability"
)

// DefaultPollInterval is how often the supervisor checks for a new vault.
const DefaultPollInterval = time.Second

// Source is the part of capability.Store the supervisor needs.
type Source interface {
	Generation() uint64
	Ensure() (*capability.Capability, error)
}

// Supervisor keeps one watcher running on the currently selected vault.
type Supervisor struct {
	Source   Source
	Logger   *slog.Logger
	Poll     time.Duration
	Debounce time.Duration
	OnEvent  EventCallback
}

// Run polls the capability generation and restarts the watcher whenever the
// vault changes. It returns when ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	poll := s.Poll
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		seen   uint64
		cancel context.CancelFunc = func() {}
		wg     sync.WaitGroup
	)
	defer func() {
		cancel()
		wg.Wait()
	}()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	check := func() {
		gen := s.Source.Generation()
		if gen == seen {
			return
		}
		c, err := s.Source.Ensure()
		if err != nil {
			return
		}
		cancel()
		wg.Wait()
		seen = gen

		var wctx context.Context
		wctx, cancel = context.WithCancel(ctx)
		wg.Add(1)
		go func(root string) {
			defer wg.Done()
			if err := Watch(wctx, root, s.Debounce, logger, s.OnEvent); err != nil {
				logger.Error("watcher: start failed", slog.String("root", root), slog.String("error", err.Error()))
			}
		}(c.Root)

		logger.Info("watcher: vault selected", slog.String("root", c.Root), slog.Uint64("generation", gen))
		if s.OnEvent != nil {
			s.OnEvent(KindSelected, "")
		}
	}

	check()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			check()
		}
	}
}
