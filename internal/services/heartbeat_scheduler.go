package services

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ahmetk3436/netwatch/internal/collector"
)

// HeartbeatTarget lists started groups and pings the collector for one.
type HeartbeatTarget interface {
	StartedGroups() []uint
	SendHeartbeat(ctx context.Context, groupID uint) (*collector.Response, error)
}

// HeartbeatScheduler keeps collector sessions for started groups alive by
// sending a heartbeat for each of them every interval.
type HeartbeatScheduler struct {
	target   HeartbeatTarget
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
	running  atomic.Bool
}

func NewHeartbeatScheduler(target HeartbeatTarget, interval time.Duration) *HeartbeatScheduler {
	return &HeartbeatScheduler{
		target:   target,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (hs *HeartbeatScheduler) Start() {
	if !hs.running.CompareAndSwap(false, true) {
		return
	}
	go hs.loop()
	slog.Info("Heartbeat scheduler started", "interval", hs.interval)
}

// Stop ends the loop and waits for an in-flight round to finish.
func (hs *HeartbeatScheduler) Stop() {
	hs.once.Do(func() {
		close(hs.stop)
		if hs.running.Load() {
			<-hs.done
		}
		slog.Info("Heartbeat scheduler stopped")
	})
}

func (hs *HeartbeatScheduler) loop() {
	defer close(hs.done)

	ticker := time.NewTicker(hs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			hs.beatAll()
		case <-hs.stop:
			return
		}
	}
}

func (hs *HeartbeatScheduler) beatAll() {
	groups := hs.target.StartedGroups()
	if len(groups) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, id := range groups {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			// the client applies its own heartbeat timeout
			if _, err := hs.target.SendHeartbeat(context.Background(), id); err != nil {
				slog.Warn("Scheduled heartbeat failed", "group_id", id, "error", err)
			}
		}(id)
	}
	wg.Wait()
}
