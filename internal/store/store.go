package store

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type randReader struct{}

func (randReader) Read(p []byte) (int, error) { return rand.Read(p) }

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalid     = errors.New("invalid")
	ErrExpired     = errors.New("token expired")
	ErrAlreadyUsed = errors.New("token already used")
	timeNow        = func() time.Time { return time.Now().UTC() }
)

const (
	MaxTitleLen       = 200
	MaxDescriptionLen = 2000

	DefaultUndoTTL = 5 * time.Minute
)

const (
	SortDisplayID = "display_id"
	SortCreatedAt = "created_at"
	SortUpdatedAt = "updated_at"
	SortID        = "id"
	SortDueDate   = "due_date"
)

// DateOnly is the short form accepted for due dates alongside RFC 3339.
const DateOnly = "2006-01-02"

type Task struct {
	ID        string    `json:"id" yaml:"id"`
	DisplayID int       `json:"display_id" yaml:"display_id"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Due         string    `json:"due_date,omitempty" yaml:"due_date,omitempty"`
	Completed   bool      `json:"completed" yaml:"completed"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
}

// NewTask holds the caller-supplied fields of a task. Due is optional and
// must be RFC 3339 or a plain YYYY-MM-DD date.
type NewTask struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Due         string `json:"due_date,omitempty"`
}

// ListFilter narrows and pages a List call. A nil Completed matches any task;
// Limit <= 0 disables the limit.
type ListFilter struct {
	Completed *bool
	Sort      string
	Limit     int
	Offset    int
}

// Deletion is the result of removing a single task.
type Deletion struct {
	Removed Task      `json:"removed_task"`
	Undo    UndoToken `json:"-"`
}

// BulkDeletion is the result of clearing the store.
type BulkDeletion struct {
	Count int       `json:"deleted"`
	Undo  UndoToken `json:"-"`
}

type Options struct {
	// UndoTTL is how long a deletion stays restorable. Zero means DefaultUndoTTL.
	UndoTTL time.Duration
	// Now overrides the clock; used by tests.
	Now func() time.Time
}

// Store is the authoritative in-memory task collection. Every structural
// mutation renumbers display ids inside the same critical section, so readers
// never observe a gap.
type Store struct {
	mu     sync.RWMutex
	tasks  []Task // ordered by DisplayID
	ledger *Ledger
	now    func() time.Time
}

func New(opts Options) *Store {
	now := opts.Now
	if now == nil {
		now = timeNow
	}
	ttl := opts.UndoTTL
	if ttl <= 0 {
		ttl = DefaultUndoTTL
	}
	return &Store{
		ledger: NewLedger(ttl, now),
		now:    now,
	}
}

// Ledger exposes the undo ledger so the server can run its purge loop.
func (s *Store) Ledger() *Ledger {
	return s.ledger
}

// Create adds a task with only a title.
func (s *Store) Create(title string) (Task, error) {
	return s.Add(NewTask{Title: title})
}

func (s *Store) Add(in NewTask) (Task, error) {
	in, err := normalizeNewTask(in)
	if err != nil {
		return Task{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	task := Task{
		ID:          newTaskID(now),
		DisplayID:   len(s.tasks) + 1,
		Title:       in.Title,
		Description: in.Description,
		Due:         in.Due,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.tasks = Renumber(append(s.tasks, task))
	return task, nil
}

func (s *Store) Get(id string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return Task{}, fmt.Errorf("%w: task %q", ErrNotFound, id)
	}
	return s.tasks[idx], nil
}

// Snapshot returns a copy of the live tasks in display order.
func (s *Store) Snapshot() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTasks(s.tasks)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// List filters, sorts and pages the live set. total is the filtered count
// before paging.
func (s *Store) List(f ListFilter) ([]Task, int) {
	s.mu.RLock()
	items := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if f.Completed != nil && t.Completed != *f.Completed {
			continue
		}
		items = append(items, t)
	}
	s.mu.RUnlock()

	sortTasks(items, f.Sort)
	total := len(items)

	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []Task{}, total
	}
	items = items[offset:]
	if f.Limit > 0 && f.Limit < len(items) {
		items = items[:f.Limit]
	}
	return items, total
}

func (s *Store) SetCompleted(id string, completed bool) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return Task{}, fmt.Errorf("%w: task %q", ErrNotFound, id)
	}
	return s.setCompletedAt(idx, completed), nil
}

func (s *Store) Delete(id string) (Deletion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return Deletion{}, fmt.Errorf("%w: task %q", ErrNotFound, id)
	}
	return s.deleteAt(idx), nil
}

// DeleteAll clears the store. A token is issued even when the store was
// already empty so callers can always offer undo; restoring it is a no-op.
func (s *Store) DeleteAll() BulkDeletion {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.tasks
	s.tasks = nil
	tok := s.ledger.Issue(before)
	return BulkDeletion{Count: len(before), Undo: tok}
}

// Restore re-inserts the tasks captured under token as new tasks, appended
// after anything created since the deletion, in snapshot order. Restored
// tasks get fresh ids; every other field except UpdatedAt carries over.
func (s *Store) Restore(token string) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := s.ledger.Consume(token)
	if err != nil {
		return nil, err
	}
	if len(snapshot) == 0 {
		return []Task{}, nil
	}

	now := s.now()
	base := len(s.tasks)
	ids := make(map[string]bool, len(snapshot))
	for i, old := range snapshot {
		t := old
		t.ID = newTaskID(now)
		t.DisplayID = base + i + 1
		t.UpdatedAt = now
		ids[t.ID] = true
		s.tasks = append(s.tasks, t)
	}
	s.tasks = Renumber(s.tasks)

	restored := make([]Task, 0, len(snapshot))
	for _, t := range s.tasks {
		if ids[t.ID] {
			restored = append(restored, t)
		}
	}
	return restored, nil
}

// CompleteRef resolves ref against the live set and, when it names exactly
// one task, sets its completion state. Resolution and mutation share one
// critical section.
func (s *Store) CompleteRef(ref Ref, completed bool) (Resolution, Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := Resolve(ref, s.tasks)
	if res.Kind != Unique {
		return res, Task{}
	}
	idx := s.indexOf(res.Task.ID)
	return res, s.setCompletedAt(idx, completed)
}

// DeleteRef is the delete counterpart of CompleteRef.
func (s *Store) DeleteRef(ref Ref) (Resolution, *Deletion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := Resolve(ref, s.tasks)
	if res.Kind != Unique {
		return res, nil
	}
	d := s.deleteAt(s.indexOf(res.Task.ID))
	return res, &d
}

func (s *Store) setCompletedAt(idx int, completed bool) Task {
	if s.tasks[idx].Completed != completed {
		s.tasks[idx].Completed = completed
		s.tasks[idx].UpdatedAt = s.now()
	}
	return s.tasks[idx]
}

func (s *Store) deleteAt(idx int) Deletion {
	removed := s.tasks[idx]
	rest := make([]Task, 0, len(s.tasks)-1)
	rest = append(rest, s.tasks[:idx]...)
	rest = append(rest, s.tasks[idx+1:]...)
	s.tasks = Renumber(rest)
	tok := s.ledger.Issue([]Task{removed})
	return Deletion{Removed: removed, Undo: tok}
}

func (s *Store) indexOf(id string) int {
	for i, t := range s.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// Renumber orders tasks by current display id, ties broken by creation time,
// and returns a copy with display ids reassigned 1..N in that order.
func Renumber(tasks []Task) []Task {
	tasks = cloneTasks(tasks)
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].DisplayID != tasks[j].DisplayID {
			return tasks[i].DisplayID < tasks[j].DisplayID
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	for i := range tasks {
		tasks[i].DisplayID = i + 1
	}
	return tasks
}

func normalizeSortKey(key string) (string, bool) {
	key = strings.TrimSpace(strings.ToLower(key))
	desc := strings.HasPrefix(key, "-")
	key = strings.TrimPrefix(key, "-")
	switch key {
	case SortDisplayID, SortCreatedAt, SortUpdatedAt, SortID, SortDueDate:
		return key, desc
	case "short_id":
		return SortDisplayID, desc
	default:
		return SortDisplayID, desc
	}
}

func sortTasks(tasks []Task, key string) {
	key, desc := normalizeSortKey(key)
	less := func(a, b Task) bool {
		switch key {
		case SortCreatedAt:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		case SortUpdatedAt:
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.Before(b.UpdatedAt)
			}
		case SortID:
			if a.ID != b.ID {
				return a.ID < b.ID
			}
		case SortDueDate:
			// undated tasks go last
			ad, aok := dueTime(a.Due)
			bd, bok := dueTime(b.Due)
			if aok != bok {
				return aok
			}
			if aok && !ad.Equal(bd) {
				return ad.Before(bd)
			}
		}
		return a.DisplayID < b.DisplayID
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if desc {
			return less(tasks[j], tasks[i])
		}
		return less(tasks[i], tasks[j])
	})
}

func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if n := len([]rune(title)); n > MaxTitleLen {
		return "", fmt.Errorf("%w: title is %d characters, max %d", ErrInvalid, n, MaxTitleLen)
	}
	return title, nil
}

func normalizeNewTask(in NewTask) (NewTask, error) {
	title, err := normalizeTitle(in.Title)
	if err != nil {
		return NewTask{}, err
	}
	in.Title = title
	in.Description = strings.TrimSpace(in.Description)
	if n := len([]rune(in.Description)); n > MaxDescriptionLen {
		return NewTask{}, fmt.Errorf("%w: description is %d characters, max %d", ErrInvalid, n, MaxDescriptionLen)
	}
	in.Due = strings.TrimSpace(in.Due)
	if in.Due != "" {
		if _, ok := dueTime(in.Due); !ok {
			return NewTask{}, fmt.Errorf("%w: due_date %q must be RFC 3339 or YYYY-MM-DD", ErrInvalid, in.Due)
		}
	}
	return in, nil
}

func dueTime(due string) (time.Time, bool) {
	if due == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, due); err == nil {
		return t, true
	}
	if t, err := time.Parse(DateOnly, due); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func cloneTasks(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	copy(out, tasks)
	return out
}

func newTaskID(now time.Time) string {
	return "tsk_" + newULID(now)
}

func newULID(now time.Time) string {
	t := ulid.Timestamp(now)
	entropy := ulid.Monotonic(randReader{}, 0)
	id, err := ulid.New(t, entropy)
	if err != nil {
		// fallback
		return fmt.Sprintf("%d", now.UnixNano())
	}
	return strings.ToUpper(id.String())
}
