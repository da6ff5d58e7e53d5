package fees

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"feetrack/internal/queue"
)

// fakeStore keeps status rows in memory and mimics the SQL matching rules.
type fakeStore struct {
	students []StudentRef
	rows     []statusRec
	err      error

	dueDay   int
	dueBound string
}

type statusRec struct {
	date string
	row  StatusRow
}

func (f *fakeStore) DueStudents(_ context.Context, day int, onOrBefore string) ([]StudentRef, error) {
	f.dueDay, f.dueBound = day, onOrBefore
	return f.students, f.err
}

func (f *fakeStore) StudentsByDay(_ context.Context, _ int) ([]StudentRef, error) {
	return f.students, f.err
}

func (f *fakeStore) StatusesNormalized(_ context.Context, date string, names []string) ([]StatusRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	set := map[string]bool{}
	for _, n := range names {
		set[n] = true
	}
	var res []StatusRow
	for _, rec := range f.rows {
		if rec.date == date && set[Normalize(rec.row.Name)] {
			res = append(res, rec.row)
		}
	}
	return res, nil
}

func (f *fakeStore) StatusesExact(_ context.Context, date string, names []string) ([]StatusRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	set := map[string]bool{}
	for _, n := range names {
		set[n] = true
	}
	var res []StatusRow
	for _, rec := range f.rows {
		if rec.date == date && set[rec.row.Name] {
			res = append(res, rec.row)
		}
	}
	return res, nil
}

func (f *fakeStore) CollectionCounts(_ context.Context, date string) (int, int, error) {
	if f.err != nil {
		return 0, 0, f.err
	}
	var online, cash int
	for _, rec := range f.rows {
		if rec.date != date {
			continue
		}
		if rec.row.Online {
			online++
		}
		if rec.row.Cash {
			cash++
		}
	}
	return online, cash, nil
}

func (f *fakeStore) UpsertStatus(_ context.Context, date, name string, cash, online, suspend bool) error {
	if f.err != nil {
		return f.err
	}
	for i, rec := range f.rows {
		if rec.date == date && rec.row.Name == name {
			f.rows[i].row = StatusRow{Name: name, Cash: cash, Online: online, Suspend: suspend}
			return nil
		}
	}
	f.rows = append(f.rows, statusRec{date: date, row: StatusRow{Name: name, Cash: cash, Online: online, Suspend: suspend}})
	return nil
}

type fakeQueue struct {
	published []queue.Message
	err       error
}

func (q *fakeQueue) Publish(_ context.Context, msg queue.Message) error {
	if q.err != nil {
		return q.err
	}
	q.published = append(q.published, msg)
	return nil
}

func (q *fakeQueue) Consume(_ context.Context) (<-chan queue.Message, error) {
	return nil, errors.New("not implemented")
}

func newTestService(store *fakeStore, q queue.Queue) *Service {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewService(store, q, nil, logger)
}

func date(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func TestManageableOnDate_Classification(t *testing.T) {
	store := &fakeStore{
		students: []StudentRef{
			{ID: 1, Name: "Anil"},
			{ID: 2, Name: "Bina"},
			{ID: 3, Name: "Chitra"},
			{ID: 4, Name: "Divya"},
			{ID: 5, Name: "Esha"},
		},
		rows: []statusRec{
			{date: "2024-04-15", row: StatusRow{Name: "Anil", Cash: true}},
			{date: "2024-04-15", row: StatusRow{Name: "Bina", Online: true}},
			{date: "2024-04-15", row: StatusRow{Name: "Chitra", Suspend: true}},
			{date: "2024-04-15", row: StatusRow{Name: "Divya"}},
		},
	}
	svc := newTestService(store, nil)

	result, err := svc.ManageableOnDate(context.Background(), date("2024-04-15"))
	if err != nil {
		t.Fatalf("ManageableOnDate: %v", err)
	}

	if len(result.Paid) != 2 {
		t.Fatalf("want 2 paid, got %d", len(result.Paid))
	}
	if result.Paid[0].Name != "Anil" || result.Paid[0].PaymentType != "cash" {
		t.Errorf("Anil: want cash payment, got %+v", result.Paid[0])
	}
	if result.Paid[1].Name != "Bina" || result.Paid[1].PaymentType != "online" {
		t.Errorf("Bina: want online payment, got %+v", result.Paid[1])
	}
	if len(result.Suspended) != 1 || result.Suspended[0].Name != "Chitra" {
		t.Errorf("want Chitra suspended, got %+v", result.Suspended)
	}
	// Divya has a row with all flags false; Esha has no row. Both pend.
	if len(result.Pending) != 2 || result.Pending[0].Name != "Divya" || result.Pending[1].Name != "Esha" {
		t.Errorf("want Divya and Esha pending, got %+v", result.Pending)
	}
}

func TestManageableOnDate_EachStudentInExactlyOneBucket(t *testing.T) {
	store := &fakeStore{
		students: []StudentRef{
			{ID: 1, Name: "Anil"},
			{ID: 2, Name: "Bina"},
			{ID: 3, Name: "Chitra"},
		},
		rows: []statusRec{
			{date: "2024-04-15", row: StatusRow{Name: "Anil", Cash: true, Suspend: true}},
			{date: "2024-04-15", row: StatusRow{Name: "Bina", Online: true}},
		},
	}
	svc := newTestService(store, nil)

	result, err := svc.ManageableOnDate(context.Background(), date("2024-04-15"))
	if err != nil {
		t.Fatalf("ManageableOnDate: %v", err)
	}

	total := len(result.Pending) + len(result.Paid) + len(result.Suspended)
	if total != len(store.students) {
		t.Fatalf("want %d students across buckets, got %d", len(store.students), total)
	}
	seen := map[int64]int{}
	for _, r := range result.Pending {
		seen[r.ID]++
	}
	for _, r := range result.Paid {
		seen[r.ID]++
	}
	for _, r := range result.Suspended {
		seen[r.ID]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("student %d appears in %d buckets", id, n)
		}
	}
	// Suspend takes precedence even when a payment flag is also set.
	if len(result.Suspended) != 1 || result.Suspended[0].Name != "Anil" {
		t.Errorf("want Anil suspended, got %+v", result.Suspended)
	}
}

func TestManageableOnDate_NormalizedNameJoin(t *testing.T) {
	store := &fakeStore{
		students: []StudentRef{{ID: 1, Name: "Ravi Kumar"}},
		rows: []statusRec{
			{date: "2024-04-15", row: StatusRow{Name: "  RAVI KUMAR ", Cash: true}},
		},
	}
	svc := newTestService(store, nil)

	result, err := svc.ManageableOnDate(context.Background(), date("2024-04-15"))
	if err != nil {
		t.Fatalf("ManageableOnDate: %v", err)
	}
	if len(result.Paid) != 1 || result.Paid[0].PaymentType != "cash" {
		t.Fatalf("want cash-paid via normalized match, got %+v", result)
	}
	// The bucket carries the roster spelling, not the status-row spelling.
	if result.Paid[0].Name != "Ravi Kumar" {
		t.Errorf("want roster name in bucket, got %q", result.Paid[0].Name)
	}
}

func TestManageableOnDate_FirstStatusMatchWins(t *testing.T) {
	store := &fakeStore{
		students: []StudentRef{{ID: 1, Name: "Ravi"}},
		rows: []statusRec{
			{date: "2024-04-15", row: StatusRow{Name: "Ravi", Online: true}},
			{date: "2024-04-15", row: StatusRow{Name: " ravi ", Suspend: true}},
		},
	}
	svc := newTestService(store, nil)

	result, err := svc.ManageableOnDate(context.Background(), date("2024-04-15"))
	if err != nil {
		t.Fatalf("ManageableOnDate: %v", err)
	}
	if len(result.Paid) != 1 || result.Paid[0].PaymentType != "online" {
		t.Fatalf("want first row (online) to win, got %+v", result)
	}
}

func TestManageableOnDate_SkipsEmptyNames(t *testing.T) {
	store := &fakeStore{
		students: []StudentRef{
			{ID: 1, Name: ""},
			{ID: 2, Name: "   "},
			{ID: 3, Name: "Ravi"},
		},
	}
	svc := newTestService(store, nil)

	result, err := svc.ManageableOnDate(context.Background(), date("2024-04-15"))
	if err != nil {
		t.Fatalf("ManageableOnDate: %v", err)
	}
	total := len(result.Pending) + len(result.Paid) + len(result.Suspended)
	if total != 1 || result.Pending[0].ID != 3 {
		t.Fatalf("want only Ravi classified, got %+v", result)
	}
}

func TestManageableOnDate_QueryBounds(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, nil)

	if _, err := svc.ManageableOnDate(context.Background(), date("2024-04-15")); err != nil {
		t.Fatalf("ManageableOnDate: %v", err)
	}
	if store.dueDay != 15 {
		t.Errorf("want day-of-month 15, got %d", store.dueDay)
	}
	if store.dueBound != "2024-04-15" {
		t.Errorf("want admission bound 2024-04-15, got %q", store.dueBound)
	}
}

func TestManageableOnDate_StoreError(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	svc := newTestService(store, nil)

	if _, err := svc.ManageableOnDate(context.Background(), date("2024-04-15")); err == nil {
		t.Fatal("want error when store is unavailable")
	}
}

func TestPendingThenPaidScenario(t *testing.T) {
	// Student admitted 2024-03-15; the 15th recurs on 2024-04-15.
	store := &fakeStore{students: []StudentRef{{ID: 7, Name: "Meena"}}}
	svc := newTestService(store, nil)
	d := date("2024-04-15")

	before, err := svc.ManageableOnDate(context.Background(), d)
	if err != nil {
		t.Fatalf("ManageableOnDate: %v", err)
	}
	if len(before.Pending) != 1 || before.Pending[0].Name != "Meena" {
		t.Fatalf("want Meena pending before payment, got %+v", before)
	}

	if err := svc.SetStatus(context.Background(), d, "Meena", true, false, false); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	after, err := svc.ManageableOnDate(context.Background(), d)
	if err != nil {
		t.Fatalf("ManageableOnDate: %v", err)
	}
	if len(after.Paid) != 1 || after.Paid[0].Name != "Meena" || after.Paid[0].PaymentType != "cash" {
		t.Fatalf("want Meena paid via cash after write, got %+v", after)
	}
	if len(after.Pending) != 0 {
		t.Errorf("Meena still pending after payment: %+v", after.Pending)
	}
}

func TestSetStatus_Idempotent(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, nil)
	d := date("2024-04-15")

	for i := 0; i < 2; i++ {
		if err := svc.SetStatus(context.Background(), d, "Meena", false, true, false); err != nil {
			t.Fatalf("SetStatus call %d: %v", i+1, err)
		}
	}
	if len(store.rows) != 1 {
		t.Fatalf("want a single row after repeated writes, got %d", len(store.rows))
	}
	row := store.rows[0].row
	if row.Cash || !row.Online || row.Suspend {
		t.Errorf("want online-only flags, got %+v", row)
	}
}

func TestSetStatus_RewriteResetsAllFlags(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, nil)
	d := date("2024-04-15")

	if err := svc.SetStatus(context.Background(), d, "Meena", true, false, false); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if err := svc.SetStatus(context.Background(), d, "Meena", false, false, true); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	row := store.rows[0].row
	set := 0
	for _, f := range []bool{row.Cash, row.Online, row.Suspend} {
		if f {
			set++
		}
	}
	if set != 1 || !row.Suspend {
		t.Errorf("want suspend as the only flag, got %+v", row)
	}
}

func TestSetStatus_PublishesEvent(t *testing.T) {
	store := &fakeStore{}
	q := &fakeQueue{}
	svc := newTestService(store, q)

	if err := svc.SetStatus(context.Background(), date("2024-04-15"), "Meena", true, false, false); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if len(q.published) != 1 {
		t.Fatalf("want 1 published event, got %d", len(q.published))
	}
	msg := q.published[0]
	if msg.Type != EventStatusChanged {
		t.Errorf("want type %q, got %q", EventStatusChanged, msg.Type)
	}
	var evt StatusEvent
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if evt.Date != "2024-04-15" || evt.Name != "Meena" || evt.ID == "" {
		t.Errorf("unexpected event payload: %+v", evt)
	}
}

func TestSetStatus_PublishFailureDoesNotFailWrite(t *testing.T) {
	store := &fakeStore{}
	q := &fakeQueue{err: errors.New("redis down")}
	svc := newTestService(store, q)

	if err := svc.SetStatus(context.Background(), date("2024-04-15"), "Meena", true, false, false); err != nil {
		t.Fatalf("SetStatus should succeed despite publish failure: %v", err)
	}
	if len(store.rows) != 1 {
		t.Fatalf("row not written: %+v", store.rows)
	}
}

func TestSetStatus_StoreErrorSkipsPublish(t *testing.T) {
	store := &fakeStore{err: errors.New("deadlock")}
	q := &fakeQueue{}
	svc := newTestService(store, q)

	if err := svc.SetStatus(context.Background(), date("2024-04-15"), "Meena", true, false, false); err == nil {
		t.Fatal("want error from store")
	}
	if len(q.published) != 0 {
		t.Errorf("no event should publish on a failed write, got %d", len(q.published))
	}
}

func TestCollection_CountsByMethod(t *testing.T) {
	store := &fakeStore{
		rows: []statusRec{
			{date: "2024-04-15", row: StatusRow{Name: "a", Cash: true}},
			{date: "2024-04-15", row: StatusRow{Name: "b", Online: true}},
			{date: "2024-04-15", row: StatusRow{Name: "c", Online: true}},
			{date: "2024-04-15", row: StatusRow{Name: "d", Suspend: true}},
			{date: "2024-04-16", row: StatusRow{Name: "e", Cash: true}},
		},
	}
	svc := newTestService(store, nil)

	summary, err := svc.Collection(context.Background(), date("2024-04-15"))
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	if summary.OnlineCount != 2 || summary.CashCount != 1 {
		t.Errorf("want onlineCount=2 cashCount=1, got %+v", summary)
	}
}

func TestPreviousDayStatus_UsesDayBefore(t *testing.T) {
	store := &fakeStore{
		students: []StudentRef{{ID: 1, Name: "Ravi"}},
		rows: []statusRec{
			{date: "2024-04-14", row: StatusRow{Name: "Ravi", Cash: true}},
			{date: "2024-04-15", row: StatusRow{Name: "Ravi", Suspend: true}},
		},
	}
	svc := newTestService(store, nil)

	result, err := svc.PreviousDayStatus(context.Background(), 15, date("2024-04-15"))
	if err != nil {
		t.Fatalf("PreviousDayStatus: %v", err)
	}
	if len(result.Paid) != 1 || result.Paid[0].PaymentType != "cash" {
		t.Fatalf("want cash payment from the 14th, got %+v", result)
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"  Ravi Kumar ": "ravi kumar",
		"RAVI":          "ravi",
		"   ":           "",
		"":              "",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}
