package audit

import (
	"context"
	"testing"
	"time"

	"github.com/campushub/campushub-sms/internal/db"
)

func TestAppendAndRecent(t *testing.T) {
	ctx := context.Background()
	dbh, err := db.Open(ctx, db.DriverSQLite, "file:audit_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer dbh.Close()

	l := NewLog(dbh)
	now := time.Now()
	for i, typ := range []string{EnrollmentCreated, EnrollmentDropped, GradePublished} {
		if err := l.Append(ctx, typ, "rec-1", map[string]int{"i": i}, now); err != nil {
			t.Fatalf("append %s: %v", typ, err)
		}
	}

	events, err := l.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	// Newest first.
	if events[0].Type != GradePublished || events[1].Type != EnrollmentDropped {
		t.Errorf("order = %s, %s; want grade.published then enrollment.dropped", events[0].Type, events[1].Type)
	}
	if events[0].Offset <= events[1].Offset {
		t.Errorf("offsets must descend: %d, %d", events[0].Offset, events[1].Offset)
	}
}

func TestAppendBadPayload(t *testing.T) {
	ctx := context.Background()
	dbh, err := db.Open(ctx, db.DriverSQLite, "file:audit_badpayload?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer dbh.Close()

	l := NewLog(dbh)
	// Channels cannot marshal; the event is still recorded with "{}".
	if err := l.Append(ctx, EnrollmentCreated, "rec-1", make(chan int), time.Now()); err != nil {
		t.Fatalf("append: %v", err)
	}
	events, err := l.Recent(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].DataJSON != "{}" {
		t.Errorf("got %+v, want one event with empty-object payload", events)
	}
}
