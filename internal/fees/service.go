package fees

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"feetrack/internal/queue"
)

// EventStatusChanged is the queue message type for status writes.
const EventStatusChanged = "status-changed"

// StatusEvent is the payload published after a successful status write.
type StatusEvent struct {
	ID   string `json:"id"`
	Date string `json:"date"`
	Name string `json:"name"`
}

// Ref identifies a student in a classification bucket.
type Ref struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// PaidRef is a Ref tagged with how the student paid.
type PaidRef struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	PaymentType string `json:"paymentType"`
}

// Classification partitions the students due on a date into three disjoint
// buckets.
type Classification struct {
	Pending   []Ref     `json:"pending"`
	Paid      []PaidRef `json:"paid"`
	Suspended []Ref     `json:"suspended"`
}

// CollectionSummary counts paid status rows for one date by method.
type CollectionSummary struct {
	OnlineCount int `json:"onlineCount"`
	CashCount   int `json:"cashCount"`
}

// Store is the persistence surface the service needs.
type Store interface {
	DueStudents(ctx context.Context, day int, onOrBefore string) ([]StudentRef, error)
	StudentsByDay(ctx context.Context, day int) ([]StudentRef, error)
	StatusesNormalized(ctx context.Context, date string, names []string) ([]StatusRow, error)
	StatusesExact(ctx context.Context, date string, names []string) ([]StatusRow, error)
	CollectionCounts(ctx context.Context, date string) (online, cash int, err error)
	UpsertStatus(ctx context.Context, date, name string, cash, online, suspend bool) error
}

// Service resolves and writes per-date payment status.
type Service struct {
	store Store
	q     queue.Queue
	cache *CollectionCache
	log   *logrus.Logger
}

// NewService creates a service. Queue and cache may be nil; the service then
// skips event publishing and always reads totals from the store.
func NewService(store Store, q queue.Queue, cache *CollectionCache, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.New()
	}
	return &Service{store: store, q: q, cache: cache, log: log}
}

// Normalize is the name normalization the resolver joins on. Status rows are
// recorded by name as typed by an operator, so matching trims and lowercases.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ManageableOnDate classifies every student whose recurring admission
// day-of-month falls on the date (and who was admitted on or before it) into
// pending, paid or suspended, based on that date's status rows.
func (s *Service) ManageableOnDate(ctx context.Context, date time.Time) (Classification, error) {
	dateStr := date.Format("2006-01-02")
	students, err := s.store.DueStudents(ctx, date.Day(), dateStr)
	if err != nil {
		return Classification{}, err
	}

	names := make([]string, 0, len(students))
	for _, st := range students {
		n := Normalize(st.Name)
		if n == "" {
			s.log.WithField("student_id", st.ID).Warn("skipping student with empty name")
			continue
		}
		names = append(names, n)
	}

	var statuses []StatusRow
	if len(names) > 0 {
		statuses, err = s.store.StatusesNormalized(ctx, dateStr, names)
		if err != nil {
			return Classification{}, err
		}
	}
	return classify(students, statuses), nil
}

// PreviousDayStatus classifies students admitted on the given day-of-month
// against status rows from the day before the clicked date.
//
// Deprecated: kept for older clients; ManageableOnDate supersedes it.
func (s *Service) PreviousDayStatus(ctx context.Context, day int, clicked time.Time) (Classification, error) {
	students, err := s.store.StudentsByDay(ctx, day)
	if err != nil {
		return Classification{}, err
	}

	names := make([]string, 0, len(students))
	for _, st := range students {
		if st.Name != "" {
			names = append(names, st.Name)
		}
	}

	var statuses []StatusRow
	if len(names) > 0 {
		prev := clicked.AddDate(0, 0, -1).Format("2006-01-02")
		statuses, err = s.store.StatusesExact(ctx, prev, names)
		if err != nil {
			return Classification{}, err
		}
	}
	return classify(students, statuses), nil
}

// SetStatus upserts the status row for (date, name) and publishes a
// status-changed event. The name is matched exactly as given (trimmed by the
// handler), not normalized. Publish failures are logged, never returned.
func (s *Service) SetStatus(ctx context.Context, date time.Time, name string, cash, online, suspend bool) error {
	dateStr := date.Format("2006-01-02")
	if err := s.store.UpsertStatus(ctx, dateStr, name, cash, online, suspend); err != nil {
		return err
	}

	if s.q != nil {
		body, _ := json.Marshal(StatusEvent{ID: uuid.NewString(), Date: dateStr, Name: name})
		msg := queue.Message{ID: uuid.NewString(), Type: EventStatusChanged, Body: body}
		if err := s.q.Publish(ctx, msg); err != nil {
			s.log.WithError(err).WithField("date", dateStr).Warn("status event publish failed")
		}
	}
	return nil
}

// Collection returns the per-method paid counts for the date, consulting the
// cache first when one is configured.
func (s *Service) Collection(ctx context.Context, date time.Time) (CollectionSummary, error) {
	dateStr := date.Format("2006-01-02")
	if summary, ok := s.cache.Get(ctx, dateStr); ok {
		return summary, nil
	}
	summary, err := s.computeCollection(ctx, dateStr)
	if err != nil {
		return CollectionSummary{}, err
	}
	s.cache.Set(ctx, dateStr, summary)
	return summary, nil
}

// RefreshCollection recomputes the totals for a date and overwrites the
// cached value. The worker calls this on every status-changed event.
func (s *Service) RefreshCollection(ctx context.Context, date string) (CollectionSummary, error) {
	summary, err := s.computeCollection(ctx, date)
	if err != nil {
		return CollectionSummary{}, err
	}
	s.cache.Set(ctx, date, summary)
	return summary, nil
}

func (s *Service) computeCollection(ctx context.Context, date string) (CollectionSummary, error) {
	online, cash, err := s.store.CollectionCounts(ctx, date)
	if err != nil {
		return CollectionSummary{}, err
	}
	return CollectionSummary{OnlineCount: online, CashCount: cash}, nil
}

// classify places each named student in exactly one bucket. Suspension wins
// over payment flags; a row with all flags false counts as pending, as does
// a missing row. The first status row matching a student's normalized name
// wins when duplicates exist.
func classify(students []StudentRef, statuses []StatusRow) Classification {
	out := Classification{
		Pending:   []Ref{},
		Paid:      []PaidRef{},
		Suspended: []Ref{},
	}
	for _, st := range students {
		norm := Normalize(st.Name)
		if norm == "" {
			continue
		}
		var match *StatusRow
		for i := range statuses {
			if Normalize(statuses[i].Name) == norm {
				match = &statuses[i]
				break
			}
		}
		switch {
		case match == nil:
			out.Pending = append(out.Pending, Ref{ID: st.ID, Name: st.Name})
		case match.Suspend:
			out.Suspended = append(out.Suspended, Ref{ID: st.ID, Name: st.Name})
		case match.Cash || match.Online:
			pt := "online"
			if match.Cash {
				pt = "cash"
			}
			out.Paid = append(out.Paid, PaidRef{ID: st.ID, Name: st.Name, PaymentType: pt})
		default:
			out.Pending = append(out.Pending, Ref{ID: st.ID, Name: st.Name})
		}
	}
	return out
}
