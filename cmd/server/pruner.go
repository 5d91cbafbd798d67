package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/iliyamo/user-authenticator/internal/repository"
)

// runPruner deletes ledger entries past their natural expiry every
// interval until ctx is done. A non-positive interval disables it.
func runPruner(ctx context.Context, ledger repository.Ledger, interval time.Duration, log *slog.Logger) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			pruneOnce(ctx, ledger, now, log)
		}
	}
}

func pruneOnce(ctx context.Context, ledger repository.Ledger, now time.Time, log *slog.Logger) {
	n, err := ledger.Prune(ctx, now.UTC())
	if err != nil {
		log.Warn("ledger prune failed", "err", err)
		return
	}
	if n > 0 {
		log.Info("ledger pruned", "removed", n)
	}
}
