package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/senyabanana/vendor-engagement/internal/models"
)

// keyedMutex выдаёт отдельный мьютекс на каждую запись.
// Мьютекс удаляется из карты, когда его больше никто не ждёт.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

// MemoryStore - реализация репозиториев в памяти процесса.
// Используется в тестах и при STORAGE_DRIVER=memory.
type MemoryStore struct {
	mu          sync.RWMutex
	records     keyedMutex
	projects    map[string]models.Project
	assignments map[string]models.VendorAssignment
	rfqs        map[string]models.RFQ
}

// NewMemoryStore создает пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects:    make(map[string]models.Project),
		assignments: make(map[string]models.VendorAssignment),
		rfqs:        make(map[string]models.RFQ),
	}
}

var (
	_ AssignmentRepository = (*MemoryStore)(nil)
	_ RFQRepository        = (*MemoryStore)(nil)
	_ ProjectRepository    = (*MemoryStore)(nil)
)

func copyAssignment(a models.VendorAssignment) models.VendorAssignment {
	if a.Signature != nil {
		a.Signature = append([]byte(nil), a.Signature...)
	}
	return a
}

func copyRFQ(r models.RFQ) models.RFQ {
	r.VendorIDs = append([]string(nil), r.VendorIDs...)
	if r.Quotes != nil {
		r.Quotes = append([]models.VendorQuote(nil), r.Quotes...)
	}
	return r
}

// CreateAssignment сохраняет новый заказ-наряд.
func (s *MemoryStore) CreateAssignment(ctx context.Context, a *models.VendorAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[a.ID] = copyAssignment(*a)
	return nil
}

// GetAssignment возвращает заказ-наряд по ID.
func (s *MemoryStore) GetAssignment(ctx context.Context, id string) (*models.VendorAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assignments[id]
	if !ok {
		return nil, models.NewNotFound("assignment", id)
	}
	out := copyAssignment(a)
	return &out, nil
}

// ListProjectAssignments возвращает заказ-наряды проекта.
func (s *MemoryStore) ListProjectAssignments(ctx context.Context, projectID string) ([]models.VendorAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.VendorAssignment
	for _, a := range s.assignments {
		if a.ProjectID == projectID {
			out = append(out, copyAssignment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ServiceCategory != out[j].ServiceCategory {
			return out[i].ServiceCategory < out[j].ServiceCategory
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpdateAssignment применяет изменение под блокировкой записи.
func (s *MemoryStore) UpdateAssignment(ctx context.Context, id string, fn AssignmentMutation) (*models.VendorAssignment, error) {
	unlock := s.records.lock("assignment:" + id)
	defer unlock()

	s.mu.RLock()
	current, ok := s.assignments[id]
	s.mu.RUnlock()
	if !ok {
		return nil, models.NewNotFound("assignment", id)
	}

	next := copyAssignment(current)
	if err := fn(&next); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// запись могли удалить каскадом, пока выполнялась fn
	if _, ok := s.assignments[id]; !ok {
		return nil, models.NewNotFound("assignment", id)
	}
	s.assignments[id] = copyAssignment(next)
	return &next, nil
}

// DeleteProjectAssignments удаляет заказ-наряды проекта и возвращает их ID.
func (s *MemoryStore) DeleteProjectAssignments(ctx context.Context, projectID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, a := range s.assignments {
		if a.ProjectID == projectID {
			ids = append(ids, id)
			delete(s.assignments, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// CreateRFQ сохраняет новый RFQ.
func (s *MemoryStore) CreateRFQ(ctx context.Context, r *models.RFQ) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rfqs[r.ID] = copyRFQ(*r)
	return nil
}

// GetRFQ возвращает RFQ вместе с котировками.
func (s *MemoryStore) GetRFQ(ctx context.Context, id string) (*models.RFQ, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rfqs[id]
	if !ok {
		return nil, models.NewNotFound("rfq", id)
	}
	out := copyRFQ(r)
	return &out, nil
}

// ListDueRFQs возвращает RFQ в работе, срок которых истёк к моменту now.
func (s *MemoryStore) ListDueRFQs(ctx context.Context, now time.Time) ([]models.RFQ, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.RFQ
	for _, r := range s.rfqs {
		if r.State == models.RFQInProgress && r.ClosingDate.Before(now) {
			out = append(out, copyRFQ(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClosingDate.Before(out[j].ClosingDate) })
	return out, nil
}

// ListProjectRFQs возвращает RFQ проекта.
func (s *MemoryStore) ListProjectRFQs(ctx context.Context, projectID string) ([]models.RFQ, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.RFQ
	for _, r := range s.rfqs {
		if r.ProjectID == projectID {
			out = append(out, copyRFQ(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// UpdateRFQ применяет изменение RFQ и его котировок под блокировкой записи.
func (s *MemoryStore) UpdateRFQ(ctx context.Context, id string, fn RFQMutation) (*models.RFQ, error) {
	unlock := s.records.lock("rfq:" + id)
	defer unlock()

	s.mu.RLock()
	current, ok := s.rfqs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, models.NewNotFound("rfq", id)
	}

	next := copyRFQ(current)
	if err := fn(&next); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rfqs[id]; !ok {
		return nil, models.NewNotFound("rfq", id)
	}
	s.rfqs[id] = copyRFQ(next)
	return &next, nil
}

// DeleteProjectRFQs удаляет RFQ проекта вместе с котировками.
func (s *MemoryStore) DeleteProjectRFQs(ctx context.Context, projectID string) ([]models.RFQ, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.RFQ
	for id, r := range s.rfqs {
		if r.ProjectID == projectID {
			out = append(out, r)
			delete(s.rfqs, id)
		}
	}
	return out, nil
}

// CreateProject сохраняет новый проект.
func (s *MemoryStore) CreateProject(ctx context.Context, p *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = *p
	return nil
}

// GetProject возвращает проект по ID.
func (s *MemoryStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, models.NewNotFound("project", id)
	}
	return &p, nil
}

// ListProjectsByEventDate возвращает активные проекты с мероприятием в указанную дату.
func (s *MemoryStore) ListProjectsByEventDate(ctx context.Context, date time.Time) ([]models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	day := dateOnly(date)
	var out []models.Project
	for _, p := range s.projects {
		if p.Active && p.EventDate != nil && dateOnly(*p.EventDate).Equal(day) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteProject удаляет проект.
func (s *MemoryStore) DeleteProject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return models.NewNotFound("project", id)
	}
	delete(s.projects, id)
	return nil
}

// MemoryTokenRepository хранит токены в памяти процесса.
type MemoryTokenRepository struct {
	mu     sync.RWMutex
	tokens map[string]models.AccessToken
}

// NewMemoryTokenRepository создает пустое хранилище токенов.
func NewMemoryTokenRepository() *MemoryTokenRepository {
	return &MemoryTokenRepository{tokens: make(map[string]models.AccessToken)}
}

// PutToken заменяет токен владельца.
func (r *MemoryTokenRepository) PutToken(ctx context.Context, t models.AccessToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[t.OwnerID] = t
	return nil
}

// GetToken возвращает текущий токен владельца.
func (r *MemoryTokenRepository) GetToken(ctx context.Context, ownerID string) (*models.AccessToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tokens[ownerID]
	if !ok {
		return nil, models.NewNotFound("token", ownerID)
	}
	return &t, nil
}

// DeleteTokens удаляет токены владельцев.
func (r *MemoryTokenRepository) DeleteTokens(ctx context.Context, ownerIDs ...string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ownerIDs {
		if _, ok := r.tokens[id]; ok {
			delete(r.tokens, id)
			n++
		}
	}
	return n, nil
}
