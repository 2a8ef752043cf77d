package reconcile

import (
	"context"
	"time"
)

// DefaultSyncInterval is used by StartAutoSync when no positive interval is given.
const DefaultSyncInterval = time.Hour

// StartAutoSync runs SyncAllProperties once immediately and then on every tick
// of interval until ctx is done. onResult, if set, receives every run's
// outcome. The returned channel is closed when the loop exits.
func (r *Reconciler) StartAutoSync(ctx context.Context, interval time.Duration, fetchWebsites, updateExisting bool, onResult func(SyncResult, error)) <-chan struct{} {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.logger.Info().Dur("interval", interval).Msg("autosync loop started")
		r.autoSync(ctx, fetchWebsites, updateExisting, onResult)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				r.logger.Info().AnErr("reason", ctx.Err()).Msg("autosync loop stopped")
				return
			case <-ticker.C:
				r.autoSync(ctx, fetchWebsites, updateExisting, onResult)
			}
		}
	}()
	return done
}

func (r *Reconciler) autoSync(ctx context.Context, fetchWebsites, updateExisting bool, onResult func(SyncResult, error)) {
	if ctx.Err() != nil {
		return
	}
	res, err := r.SyncAllProperties(ctx, fetchWebsites, updateExisting)
	if onResult != nil {
		onResult(res, err)
	}
}
