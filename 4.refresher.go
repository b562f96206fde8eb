package main

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/levruta/auxparty/sys"
)

// ===========================
// Menu Refresher Daemon
// ===========================

// The now-playing line goes stale on its own, so every member's menu is
// refreshed on a fixed cadence while a session runs.
const menuRefreshInterval = 20 * time.Second

var menuRefresherRunning int32

func init() {
	RegisterDaemon(sys.LogMenu, func(ctx context.Context) (bool, func(), func()) { return StartMenuRefresher(ctx) })
}

func StartMenuRefresher(ctx context.Context) (bool, func(), func()) {
	if !atomic.CompareAndSwapInt32(&menuRefresherRunning, 0, 1) {
		return false, nil, nil
	}

	return true, func() {
			ticker := time.NewTicker(menuRefreshInterval)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					refreshAllMenus(ctx)
				case <-ctx.Done():
					return
				}
			}
		}, func() {
			sys.LogMenu("Shutting down Menu Refresher...")
		}
}

// refreshAllMenus re-renders the menu of every member holding one. Only
// menus already delivered are touched; members without a stored handle
// get theirs on the next /menu.
func refreshAllMenus(parentCtx context.Context) {
	snap := Engine.Snapshot()
	if !snap.Active {
		return
	}

	ctx, cancel := context.WithTimeout(parentCtx, menuRefreshInterval)
	defer cancel()

	refreshed := 0
	for memberID := range snap.Members {
		if _, ok := Engine.LastMessage(memberID); !ok {
			continue
		}
		if err := deliverMenu(ctx, memberID); err != nil {
			sys.LogMenu(sys.MsgMenuRefreshFail, memberID, err)
			continue
		}
		refreshed++
	}
	if refreshed > 0 {
		sys.LogDebug(sys.MsgMenuRefreshTick, refreshed)
	}
}
