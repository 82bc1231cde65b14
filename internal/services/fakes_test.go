package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/stretchr/testify/mock"
	"gorm.io/datatypes"
)

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intPtr(v int) *int { return &v }

func fixedClock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

// sampleBank is the question bank shared by service tests. Default scores:
// 1 -> 3, 2 -> 6, 3 -> 2, 4 -> 5, 5 -> 24, 6 -> 2.
func sampleBank() []*models.Question {
	category := uint(7)
	return []*models.Question{
		{
			ID: 1, CategoryID: &category, Type: models.SingleChoice, Difficulty: 3, Content: "Capital of France?",
			CorrectAnswers: datatypes.JSONSlice[string]{"B"},
			Options: []models.Option{
				{ID: 11, QuestionID: 1, Content: "Berlin", Sort: 1},
				{ID: 12, QuestionID: 1, Content: "Paris", Sort: 2},
				{ID: 13, QuestionID: 1, Content: "Rome", Sort: 3},
				{ID: 14, QuestionID: 1, Content: "Madrid", Sort: 4},
			},
		},
		{
			ID: 2, CategoryID: &category, Type: models.MultipleChoice, Difficulty: 4, Content: "Prime numbers?",
			CorrectAnswers: datatypes.JSONSlice[string]{"A", "C"},
			Options: []models.Option{
				{ID: 21, QuestionID: 2, Content: "2", Sort: 1},
				{ID: 22, QuestionID: 2, Content: "4", Sort: 2},
				{ID: 23, QuestionID: 2, Content: "5", Sort: 3},
				{ID: 24, QuestionID: 2, Content: "9", Sort: 4},
			},
		},
		{ID: 3, Type: models.TrueFalse, Difficulty: 2, Content: "Go has generics.", CorrectAnswers: datatypes.JSONSlice[string]{"true"}},
		{ID: 4, Type: models.FillBlank, Difficulty: 3, Content: "The capital of France is ___.", CorrectAnswers: datatypes.JSONSlice[string]{"Paris"}},
		{ID: 5, Type: models.Essay, Difficulty: 5, Content: "Discuss channels."},
		{
			ID: 6, Type: models.SingleChoice, Difficulty: 1, Content: "Broken key",
			CorrectAnswers: datatypes.JSONSlice[string]{"Z"},
			Options: []models.Option{
				{ID: 61, QuestionID: 6, Content: "yes", Sort: 1},
				{ID: 62, QuestionID: 6, Content: "no", Sort: 2},
			},
		},
	}
}

func stringPtr(v string) *string { return &v }

// MockQuestionRepository scripts bank searches through testify. GetByID reads the
// seeded bank directly.
type MockQuestionRepository struct {
	mock.Mock
	bank map[uint]*models.Question
}

func (m *MockQuestionRepository) Search(ctx context.Context, criteria repositories.QuestionSearchCriteria) ([]*models.Question, int64, error) {
	args := m.Called(ctx, criteria)
	questions, _ := args.Get(0).([]*models.Question)
	return questions, int64(len(questions)), args.Error(1)
}

func (m *MockQuestionRepository) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	q, ok := m.bank[id]
	if !ok {
		return nil, repositories.ErrRecordNotFound
	}
	return q, nil
}

// fakeRepository is an in-memory Repository. WithTransaction restores a snapshot when
// fn fails, which is enough to observe rollbacks in tests.
type fakeRepository struct {
	mu        sync.Mutex
	questions *MockQuestionRepository
	papers    map[uint]models.Paper
	pqs       map[uint]models.PaperQuestion
	templates map[uint]models.PaperTemplate
	sessions  map[uint]models.Session
	nextID    uint

	// beforeSessionUpdate runs ahead of every versioned save.
	beforeSessionUpdate func(f *fakeRepository, id uint)
	// beforeSessionCreate runs ahead of every session insert, outside the lock.
	beforeSessionCreate func(f *fakeRepository, session *models.Session)
	paperLocks          int
}

func newFakeRepository(bank ...*models.Question) *fakeRepository {
	f := &fakeRepository{
		questions: &MockQuestionRepository{bank: make(map[uint]*models.Question)},
		papers:    make(map[uint]models.Paper),
		pqs:       make(map[uint]models.PaperQuestion),
		templates: make(map[uint]models.PaperTemplate),
		sessions:  make(map[uint]models.Session),
		nextID:    100,
	}
	for _, q := range bank {
		f.questions.bank[q.ID] = q
	}
	return f
}

func (f *fakeRepository) Question() repositories.QuestionRepository            { return f.questions }
func (f *fakeRepository) Paper() repositories.PaperRepository                  { return fakePapers{f} }
func (f *fakeRepository) PaperQuestion() repositories.PaperQuestionRepository  { return fakePaperQuestions{f} }
func (f *fakeRepository) Template() repositories.TemplateRepository            { return fakeTemplates{f} }
func (f *fakeRepository) Session() repositories.SessionRepository              { return fakeSessions{f} }

func (f *fakeRepository) WithTransaction(ctx context.Context, fn func(tx repositories.Repository) error) error {
	f.mu.Lock()
	papers, pqs := maps.Clone(f.papers), maps.Clone(f.pqs)
	templates, sessions := maps.Clone(f.templates), maps.Clone(f.sessions)
	f.mu.Unlock()

	if err := fn(f); err != nil {
		f.mu.Lock()
		f.papers, f.pqs, f.templates, f.sessions = papers, pqs, templates, sessions
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeRepository) id() uint {
	f.nextID++
	return f.nextID
}

// joined returns a copy of pq with its bank question attached. Caller holds mu.
func (f *fakeRepository) joined(pq models.PaperQuestion) models.PaperQuestion {
	pq.Question = f.questions.bank[pq.QuestionID]
	return pq
}

func (f *fakeRepository) paperQuestions(paperID uint) []models.PaperQuestion {
	var out []models.PaperQuestion
	for _, pq := range f.pqs {
		if pq.PaperID == paperID {
			out = append(out, f.joined(pq))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder == out[j].SortOrder {
			return out[i].ID < out[j].ID
		}
		return out[i].SortOrder < out[j].SortOrder
	})
	return out
}

// listPaperQuestions is paperQuestions under lock, for assertions.
func (f *fakeRepository) listPaperQuestions(paperID uint) []models.PaperQuestion {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paperQuestions(paperID)
}

// storedPaper reads a paper under lock, for assertions.
func (f *fakeRepository) storedPaper(id uint) models.Paper {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.papers[id]
}

func (f *fakeRepository) storedSession(id uint) models.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[id]
}

// seedPaper stores paper and attaches the given bank questions with scores, in order.
func (f *fakeRepository) seedPaper(paper models.Paper, scores map[uint]int, order ...uint) *models.Paper {
	f.mu.Lock()
	defer f.mu.Unlock()

	paper.ID = f.id()
	paper.Questions = nil
	for i, qid := range order {
		pq := models.PaperQuestion{ID: f.id(), PaperID: paper.ID, QuestionID: qid, SortOrder: i + 1, Score: scores[qid], IsRequired: true}
		f.pqs[pq.ID] = pq
		paper.TotalScore += pq.Score
		paper.QuestionCount++
	}
	f.papers[paper.ID] = paper
	return &paper
}

func (f *fakeRepository) seedSession(session models.Session) *models.Session {
	f.mu.Lock()
	defer f.mu.Unlock()

	session.ID = f.id()
	if session.Version == 0 {
		session.Version = 1
	}
	f.sessions[session.ID] = cloneSession(session)
	return &session
}

func cloneSession(s models.Session) models.Session {
	s.Answers = maps.Clone(s.Answers)
	s.QuestionTimings = maps.Clone(s.QuestionTimings)
	s.Paper = nil
	return s
}

// ===== PAPERS =====

type fakePapers struct{ f *fakeRepository }

func (r fakePapers) Create(ctx context.Context, paper *models.Paper) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, p := range r.f.papers {
		if p.Title == paper.Title {
			return errors.New("duplicate key value violates unique constraint")
		}
	}
	paper.ID = r.f.id()
	stored := *paper
	stored.Questions = nil
	r.f.papers[paper.ID] = stored
	return nil
}

func (r fakePapers) GetByID(ctx context.Context, id uint) (*models.Paper, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	p, ok := r.f.papers[id]
	if !ok {
		return nil, repositories.ErrRecordNotFound
	}
	return &p, nil
}

func (r fakePapers) GetByIDForUpdate(ctx context.Context, id uint) (*models.Paper, error) {
	r.f.mu.Lock()
	r.f.paperLocks++
	r.f.mu.Unlock()
	return r.GetByID(ctx, id)
}

func (r fakePapers) GetByIDWithQuestions(ctx context.Context, id uint) (*models.Paper, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	p, ok := r.f.papers[id]
	if !ok {
		return nil, repositories.ErrRecordNotFound
	}
	p.Questions = r.f.paperQuestions(id)
	return &p, nil
}

func (r fakePapers) Update(ctx context.Context, paper *models.Paper) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if _, ok := r.f.papers[paper.ID]; !ok {
		return repositories.ErrRecordNotFound
	}
	stored := *paper
	stored.Questions = nil
	r.f.papers[paper.ID] = stored
	return nil
}

func (r fakePapers) Delete(ctx context.Context, id uint) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if _, ok := r.f.papers[id]; !ok {
		return repositories.ErrRecordNotFound
	}
	delete(r.f.papers, id)
	for pqID, pq := range r.f.pqs {
		if pq.PaperID == id {
			delete(r.f.pqs, pqID)
		}
	}
	return nil
}

func (r fakePapers) ExistsByTitle(ctx context.Context, title string) (bool, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, p := range r.f.papers {
		if p.Title == title {
			return true, nil
		}
	}
	return false, nil
}

// ===== PAPER QUESTIONS =====

type fakePaperQuestions struct{ f *fakeRepository }

func (r fakePaperQuestions) create(pq *models.PaperQuestion) error {
	for _, existing := range r.f.pqs {
		if existing.PaperID == pq.PaperID && existing.QuestionID == pq.QuestionID {
			return errors.New("duplicate key value violates unique constraint \"idx_paper_question\"")
		}
	}
	pq.ID = r.f.id()
	stored := *pq
	stored.Question = nil
	r.f.pqs[pq.ID] = stored
	return nil
}

func (r fakePaperQuestions) CreateBatch(ctx context.Context, pqs []*models.PaperQuestion) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, pq := range pqs {
		if err := r.create(pq); err != nil {
			return err
		}
	}
	return nil
}

func (r fakePaperQuestions) UpdateBatch(ctx context.Context, pqs []*models.PaperQuestion) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, pq := range pqs {
		stored := *pq
		stored.Question = nil
		r.f.pqs[pq.ID] = stored
	}
	return nil
}

func (r fakePaperQuestions) Delete(ctx context.Context, id uint) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if _, ok := r.f.pqs[id]; !ok {
		return repositories.ErrRecordNotFound
	}
	delete(r.f.pqs, id)
	return nil
}

func (r fakePaperQuestions) GetByID(ctx context.Context, id uint) (*models.PaperQuestion, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	pq, ok := r.f.pqs[id]
	if !ok {
		return nil, repositories.ErrRecordNotFound
	}
	pq = r.f.joined(pq)
	return &pq, nil
}

func (r fakePaperQuestions) ListByPaper(ctx context.Context, paperID uint) ([]*models.PaperQuestion, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	items := r.f.paperQuestions(paperID)
	out := make([]*models.PaperQuestion, len(items))
	for i := range items {
		out[i] = &items[i]
	}
	return out, nil
}

// ===== TEMPLATES =====

type fakeTemplates struct{ f *fakeRepository }

func (r fakeTemplates) Create(ctx context.Context, tpl *models.PaperTemplate) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	tpl.ID = r.f.id()
	for i := range tpl.Rules {
		tpl.Rules[i].ID = r.f.id()
		tpl.Rules[i].TemplateID = tpl.ID
	}
	stored := *tpl
	stored.Rules = append([]models.TemplateRule(nil), tpl.Rules...)
	r.f.templates[tpl.ID] = stored
	return nil
}

func (r fakeTemplates) GetByIDWithRules(ctx context.Context, id uint) (*models.PaperTemplate, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	tpl, ok := r.f.templates[id]
	if !ok {
		return nil, repositories.ErrRecordNotFound
	}
	tpl.Rules = append([]models.TemplateRule(nil), tpl.Rules...)
	sort.SliceStable(tpl.Rules, func(i, j int) bool { return tpl.Rules[i].Sort < tpl.Rules[j].Sort })
	return &tpl, nil
}

func (r fakeTemplates) ListActive(ctx context.Context) ([]*models.PaperTemplate, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []*models.PaperTemplate
	for _, tpl := range r.f.templates {
		if tpl.IsActive {
			tpl := tpl
			out = append(out, &tpl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ===== SESSIONS =====

type fakeSessions struct{ f *fakeRepository }

func (r fakeSessions) withPaper(s models.Session) *models.Session {
	if p, ok := r.f.papers[s.PaperID]; ok {
		s.Paper = &p
	}
	return &s
}

func (r fakeSessions) Create(ctx context.Context, session *models.Session) error {
	if hook := r.f.beforeSessionCreate; hook != nil {
		hook(r.f, session)
	}
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, s := range r.f.sessions {
		if s.PaperID == session.PaperID && s.UserID == session.UserID && s.AttemptNumber == session.AttemptNumber {
			return repositories.ErrDuplicateKey
		}
	}
	session.ID = r.f.id()
	if session.Version == 0 {
		session.Version = 1
	}
	r.f.sessions[session.ID] = cloneSession(*session)
	return nil
}

func (r fakeSessions) GetByID(ctx context.Context, id uint) (*models.Session, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	s, ok := r.f.sessions[id]
	if !ok {
		return nil, repositories.ErrRecordNotFound
	}
	return r.withPaper(cloneSession(s)), nil
}

func (r fakeSessions) GetByIDForUpdate(ctx context.Context, id uint) (*models.Session, error) {
	return r.GetByID(ctx, id)
}

func (r fakeSessions) Update(ctx context.Context, session *models.Session) error {
	if hook := r.f.beforeSessionUpdate; hook != nil {
		hook(r.f, session.ID)
	}

	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	stored, ok := r.f.sessions[session.ID]
	if !ok || stored.Version != session.Version {
		return repositories.ErrStaleRecord
	}
	session.Version++
	r.f.sessions[session.ID] = cloneSession(*session)
	return nil
}

func (r fakeSessions) GetActiveSession(ctx context.Context, userID string, paperID uint) (*models.Session, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var found *models.Session
	for _, s := range r.f.sessions {
		if s.UserID == userID && s.PaperID == paperID && s.Status.IsActive() {
			if found == nil || s.ID > found.ID {
				found = r.withPaper(cloneSession(s))
			}
		}
	}
	return found, nil
}

func (r fakeSessions) HasCompletedSession(ctx context.Context, userID string, paperID uint) (bool, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, s := range r.f.sessions {
		if s.UserID == userID && s.PaperID == paperID && s.Status == models.SessionCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeSessions) GetAttemptCount(ctx context.Context, userID string, paperID uint) (int, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	n := 0
	for _, s := range r.f.sessions {
		if s.UserID == userID && s.PaperID == paperID {
			n++
		}
	}
	return n, nil
}

func (r fakeSessions) GetExpiredSessionIDs(ctx context.Context, now time.Time) ([]uint, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var ids []uint
	for _, s := range r.f.sessions {
		if s.Status == models.SessionInProgress && s.ExpiresAt != nil && s.ExpiresAt.Before(now) {
			ids = append(ids, s.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r fakeSessions) ListByUser(ctx context.Context, userID string, filters repositories.SessionFilters) ([]*models.Session, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []*models.Session
	for _, s := range r.f.sessions {
		if s.UserID != userID || (filters.PaperID != nil && s.PaperID != *filters.PaperID) {
			continue
		}
		out = append(out, r.withPaper(cloneSession(s)))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r fakeSessions) ListByPaper(ctx context.Context, paperID uint) ([]*models.Session, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []*models.Session
	for _, s := range r.f.sessions {
		if s.PaperID == paperID {
			s := cloneSession(s)
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakeSessions) GetBestScores(ctx context.Context, userID string) ([]repositories.BestScore, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	best := make(map[uint]*repositories.BestScore)
	for _, s := range r.f.sessions {
		if s.UserID != userID || s.Status != models.SessionCompleted || s.Score == nil {
			continue
		}
		b, ok := best[s.PaperID]
		if !ok {
			b = &repositories.BestScore{PaperID: s.PaperID, PaperTitle: r.f.papers[s.PaperID].Title, BestScore: *s.Score}
			best[s.PaperID] = b
		}
		b.CompletedAttempts++
		if *s.Score > b.BestScore {
			b.BestScore = *s.Score
		}
	}
	out := make([]repositories.BestScore, 0, len(best))
	for _, b := range best {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaperID < out[j].PaperID })
	return out, nil
}
