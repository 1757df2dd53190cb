package notifications

import (
	"context"
	"sync"
	"testing"

	"learnhub_go/models"
	"learnhub_go/testutil"
	"learnhub_go/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

type fakeHub struct {
	mu   sync.Mutex
	sent map[uint]int
}

func (h *fakeHub) BroadcastToUser(userID uint, _ interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sent == nil {
		h.sent = map[uint]int{}
	}
	h.sent[userID]++
}

type fakeLine struct {
	to []string
}

func (l *fakeLine) PushText(to, _ string) error {
	l.to = append(l.to, to)
	return nil
}

func TestNormalizeChannels(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{nil, []string{"normal"}},
		{[]string{"sms"}, []string{"normal"}},
		{[]string{"popup", "popup", "line"}, []string{"popup", "line"}},
	}
	for _, tt := range tests {
		got := normalizeChannels(tt.in)
		if len(got) != len(tt.want) {
			t.Fatalf("normalizeChannels(%v) = %v, want %v", tt.in, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Fatalf("normalizeChannels(%v) = %v, want %v", tt.in, got, tt.want)
			}
		}
	}
}

func TestEnqueueOrCreateDirect(t *testing.T) {
	db := testutil.NewDB(t)
	a := testutil.CreateUser(t, db, models.RoleStudent)
	b := testutil.CreateUser(t, db, models.RoleStudent)

	hub := &fakeHub{}
	svc := NewServiceWithDB(db, nil, false)
	svc.SetWebSocketHub(hub)

	if err := svc.EnqueueOrCreate([]uint{a.ID, b.ID, a.ID}, New("Hi", "there", models.NotificationInfo)); err != nil {
		t.Fatalf("EnqueueOrCreate: %v", err)
	}

	var count int64
	db.Model(&models.Notification{}).Count(&count)
	if count != 2 {
		t.Fatalf("expected 2 notifications (duplicates collapsed), got %d", count)
	}
	if hub.sent[a.ID] != 1 || hub.sent[b.ID] != 1 {
		t.Fatalf("expected one websocket push per user, got %v", hub.sent)
	}

	if err := svc.EnqueueOrCreate(nil, New("x", "y", "info")); err == nil {
		t.Fatalf("expected error for empty recipients")
	}
}

func TestLineChannel(t *testing.T) {
	db := testutil.NewDB(t)
	linked := testutil.CreateUser(t, db, models.RoleParent)
	db.Model(linked).Update("line_id", "U123")
	unlinked := testutil.CreateUser(t, db, models.RoleParent)

	line := &fakeLine{}
	svc := NewServiceWithDB(db, nil, false)
	svc.SetLinePusher(line)

	if err := svc.EnqueueOrCreate([]uint{linked.ID, unlinked.ID}, New("Grade posted", "A+", models.NotificationGrade, "normal", "line")); err != nil {
		t.Fatalf("EnqueueOrCreate: %v", err)
	}
	if len(line.to) != 1 || line.to[0] != "U123" {
		t.Fatalf("expected a single LINE push to U123, got %v", line.to)
	}
}

func TestRedisQueueFlush(t *testing.T) {
	db := testutil.NewDB(t)
	u := testutil.CreateUser(t, db, models.RoleStudent)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	svc := NewServiceWithDB(db, rdb, true)
	if err := svc.EnqueueOrCreate([]uint{u.ID}, NewWithData("Queued", "later", models.NotificationInfo, map[string]uint{"course_id": 7})); err != nil {
		t.Fatalf("EnqueueOrCreate: %v", err)
	}

	var count int64
	db.Model(&models.Notification{}).Count(&count)
	if count != 0 {
		t.Fatalf("queued notification must not be written before flush, got %d", count)
	}

	if n := svc.flushBatch(context.Background(), 10); n != 1 {
		t.Fatalf("expected 1 processed payload, got %d", n)
	}
	db.Model(&models.Notification{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 notification after flush, got %d", count)
	}
	if l, _ := rdb.LLen(context.Background(), redisListKey).Result(); l != 0 {
		t.Fatalf("queue should be drained, len=%d", l)
	}
}

func TestReadState(t *testing.T) {
	db := testutil.NewDB(t)
	u := testutil.CreateUser(t, db, models.RoleStudent)
	other := testutil.CreateUser(t, db, models.RoleStudent)

	svc := NewServiceWithDB(db, nil, false)
	for i := 0; i < 3; i++ {
		if err := svc.EnqueueOrCreate([]uint{u.ID}, New("n", "m", models.NotificationInfo)); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	unread, err := svc.UnreadCount(u.ID)
	if err != nil || unread != 3 {
		t.Fatalf("UnreadCount = %d, %v", unread, err)
	}

	list, total, err := svc.List(u.ID, nil, "", utils.NewPaging(1, 2, 20, 100))
	if err != nil || total != 3 || len(list) != 2 {
		t.Fatalf("List = %d items, total %d, err %v", len(list), total, err)
	}

	if _, err := svc.MarkRead(other.ID, list[0].ID); utils.ErrorCode(err) != 404 {
		t.Fatalf("marking someone else's notification must be 404, got %v", err)
	}
	n, err := svc.MarkRead(u.ID, list[0].ID)
	if err != nil || !n.Read || n.ReadAt == nil {
		t.Fatalf("MarkRead = %+v, %v", n, err)
	}

	if updated, err := svc.MarkAllRead(u.ID); err != nil || updated != 2 {
		t.Fatalf("MarkAllRead = %d, %v", updated, err)
	}
	if unread, _ = svc.UnreadCount(u.ID); unread != 0 {
		t.Fatalf("expected no unread left, got %d", unread)
	}

	if err := svc.Delete(u.ID, list[1].ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(u.ID, list[1].ID); utils.ErrorCode(err) != 404 {
		t.Fatalf("second delete should be 404, got %v", err)
	}
}

func TestRecipients(t *testing.T) {
	db := testutil.NewDB(t)
	teacher := testutil.CreateUser(t, db, models.RoleTeacher)
	parent := testutil.CreateUser(t, db, models.RoleParent)
	inactiveParent := testutil.CreateUser(t, db, models.RoleParent)
	db.Model(inactiveParent).Update("active", false)
	enrolled := testutil.CreateUser(t, db, models.RoleStudent)
	dropped := testutil.CreateUser(t, db, models.RoleStudent)
	course := testutil.CreateCourse(t, db, teacher.ID, 0)
	testutil.CreateEnrollment(t, db, enrolled.ID, course.ID, models.EnrollmentActive)
	testutil.CreateEnrollment(t, db, dropped.ID, course.ID, models.EnrollmentDropped)

	svc := NewServiceWithDB(db, nil, false)

	tests := []struct {
		name     string
		audience Audience
		want     []uint
	}{
		{"explicit ids skip inactive", Audience{UserIDs: []uint{teacher.ID, inactiveParent.ID}}, []uint{teacher.ID}},
		{"role", Audience{Role: models.RoleParent}, []uint{parent.ID}},
		{"course", Audience{CourseID: course.ID}, []uint{enrolled.ID}},
		{"combined without duplicates", Audience{UserIDs: []uint{enrolled.ID}, CourseID: course.ID}, []uint{enrolled.ID}},
		{"empty", Audience{}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.Recipients(tc.audience)
			if err != nil {
				t.Fatalf("Recipients: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("expected %v, got %v", tc.want, got)
				}
			}
		})
	}
}
