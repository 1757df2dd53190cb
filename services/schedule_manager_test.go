package services

import (
	"context"
	"testing"
	"time"

	"learnhub_go/testutil"
)

func TestScheduleManagerRegister(t *testing.T) {
	db := testutil.NewDB(t)
	scheduler := NewNotificationScheduler(db, nil)

	t.Run("without log service", func(t *testing.T) {
		sm := NewScheduleManager(scheduler, nil, 90)
		if err := sm.Register(); err != nil {
			t.Fatalf("register: %v", err)
		}
		if got := len(sm.Entries()); got != 2 {
			t.Fatalf("entries = %d, want 2", got)
		}
	})

	t.Run("with log service", func(t *testing.T) {
		sm := NewScheduleManager(scheduler, NewLogArchiveService(db, nil, nil), 90)
		if err := sm.Start(); err != nil {
			t.Fatalf("start: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		defer sm.Stop(ctx)

		entries := sm.Entries()
		if len(entries) != 4 {
			t.Fatalf("entries = %d, want 4", len(entries))
		}
		for _, e := range entries {
			if e.Next.IsZero() {
				t.Fatalf("entry %d has no next run after start", e.ID)
			}
		}
	})
}
