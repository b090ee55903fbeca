package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/consultation_bot/internal/model"
	"github.com/Freeeeeet/consultation_bot/internal/notify"
	"github.com/Freeeeeet/consultation_bot/internal/repository"
)

type memState struct {
	users         map[int64]model.User
	researchers   map[int64]model.Researcher
	consultations map[int64]model.Consultation
	assignments   map[int64][]model.ConsultationResearcher
	ledger        []model.LedgerEntry
	messages      []model.ConsultationMessage
}

func (s memState) clone() memState {
	out := memState{
		users:         make(map[int64]model.User, len(s.users)),
		researchers:   make(map[int64]model.Researcher, len(s.researchers)),
		consultations: make(map[int64]model.Consultation, len(s.consultations)),
		assignments:   make(map[int64][]model.ConsultationResearcher, len(s.assignments)),
		ledger:        append([]model.LedgerEntry(nil), s.ledger...),
		messages:      append([]model.ConsultationMessage(nil), s.messages...),
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.researchers {
		out.researchers[k] = v
	}
	for k, v := range s.consultations {
		out.consultations[k] = v
	}
	for k, v := range s.assignments {
		out.assignments[k] = append([]model.ConsultationResearcher(nil), v...)
	}
	return out
}

// memDB хранилище в памяти: CAS по статусу, откат транзакции при ошибке,
// транзакции выполняются строго по одной.
type memDB struct {
	mu     sync.Mutex
	txMu   sync.Mutex
	nextID int64
	state  memState

	beforeFindAssignments func(consultationID int64)
	beforeLock            func(consultationID int64)
	findDueErr            error
	lockErr               map[int64]error
	decrementErr          map[int64]error
	panicOnLock           map[int64]bool
}

func newMemDB() *memDB {
	return &memDB{
		state: memState{
			users:         map[int64]model.User{},
			researchers:   map[int64]model.Researcher{},
			consultations: map[int64]model.Consultation{},
			assignments:   map[int64][]model.ConsultationResearcher{},
		},
		lockErr:      map[int64]error{},
		decrementErr: map[int64]error{},
		panicOnLock:  map[int64]bool{},
	}
}

func (db *memDB) id() int64 {
	db.nextID++
	return db.nextID
}

// ---- seeding helpers ----

func (db *memDB) addUser(balance int64) *model.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	id := db.id()
	u := model.User{ID: id, TelegramID: 1000 + id, ChatID: 5000 + id, EnergyBalance: balance}
	db.state.users[id] = u
	return &u
}

func (db *memDB) addResearcher(score int64, status model.ResearcherStatus) *model.Researcher {
	db.mu.Lock()
	defer db.mu.Unlock()
	id := db.id()
	r := model.Researcher{ID: id, TelegramID: 2000 + id, ChatID: 9000 + id, RecommendScore: score, Status: status}
	db.state.researchers[id] = r
	return &r
}

func (db *memDB) addConsultation(userID int64, status model.ConsultationStatus, timeoutAt time.Time, cost int64) *model.Consultation {
	db.mu.Lock()
	defer db.mu.Unlock()
	id := db.id()
	t := timeoutAt
	c := model.Consultation{ID: id, UserID: userID, Question: "Where is BTC going?", Cost: cost, Status: status, TimeoutAt: &t}
	db.state.consultations[id] = c
	return &c
}

func (db *memDB) assign(consultationID, researcherID int64, answer *string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.state.assignments[consultationID] = append(db.state.assignments[consultationID], model.ConsultationResearcher{
		ConsultationID: consultationID,
		ResearcherID:   researcherID,
		FirstAnswer:    answer,
	})
}

func (db *memDB) selectResearcher(consultationID, researcherID int64) {
	db.mu.Lock()
	defer db.mu.Unlock()
	c := db.state.consultations[consultationID]
	c.SelectedResearcherID = &researcherID
	db.state.consultations[consultationID] = c
}

// moveDirectly имитирует смену статуса другим путём (например, выбор пользователя)
func (db *memDB) moveDirectly(consultationID int64, status model.ConsultationStatus, timeoutAt time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()
	c := db.state.consultations[consultationID]
	c.Status = status
	c.TimeoutAt = &timeoutAt
	db.state.consultations[consultationID] = c
}

// answerDirectly имитирует ответ, пришедший в обход сервиса
func (db *memDB) answerDirectly(consultationID, researcherID int64, answer string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	list := db.state.assignments[consultationID]
	for i := range list {
		if list[i].ResearcherID == researcherID && list[i].FirstAnswer == nil {
			a := answer
			list[i].FirstAnswer = &a
		}
	}
}

// ---- inspection helpers ----

func (db *memDB) consultation(id int64) model.Consultation {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state.consultations[id]
}

func (db *memDB) user(id int64) model.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state.users[id]
}

func (db *memDB) researcher(id int64) model.Researcher {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state.researchers[id]
}

func (db *memDB) ledgerFor(consultationID int64) []model.LedgerEntry {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []model.LedgerEntry
	for _, e := range db.state.ledger {
		if e.ConsultationID == consultationID {
			out = append(out, e)
		}
	}
	return out
}

// ---- repository.Stores / TxRunner ----

func (db *memDB) Consultations() repository.ConsultationStore { return memConsultations{db} }
func (db *memDB) Assignments() repository.AssignmentStore     { return memAssignments{db} }
func (db *memDB) Researchers() repository.ResearcherStore     { return memResearchers{db} }
func (db *memDB) Users() repository.UserStore                 { return memUsers{db} }
func (db *memDB) Ledger() repository.LedgerStore              { return memLedger{db} }
func (db *memDB) Messages() repository.MessageStore           { return memMessages{db} }

func (db *memDB) WithTx(ctx context.Context, fn func(stores repository.Stores) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.Lock()
	snapshot := db.state.clone()
	db.mu.Unlock()

	committed := false
	defer func() {
		if !committed {
			db.mu.Lock()
			db.state = snapshot
			db.mu.Unlock()
		}
	}()

	if err := fn(db); err != nil {
		return err
	}
	committed = true
	return nil
}

type memConsultations struct{ db *memDB }

func (m memConsultations) Create(_ context.Context, c *model.Consultation) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c.ID = m.db.id()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	m.db.state.consultations[c.ID] = *c
	return nil
}

func (m memConsultations) GetByID(_ context.Context, id int64) (*model.Consultation, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c, ok := m.db.state.consultations[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m memConsultations) GetForUpdate(ctx context.Context, id int64) (*model.Consultation, error) {
	if m.db.beforeLock != nil {
		m.db.beforeLock(id)
	}
	if m.db.panicOnLock[id] {
		panic("boom")
	}
	if err := m.db.lockErr[id]; err != nil {
		return nil, err
	}
	return m.GetByID(ctx, id)
}

func (m memConsultations) FindDue(_ context.Context, now time.Time, statuses []model.ConsultationStatus, limit int) ([]*model.Consultation, error) {
	if m.db.findDueErr != nil {
		return nil, m.db.findDueErr
	}
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	allowed := map[model.ConsultationStatus]bool{}
	for _, s := range statuses {
		allowed[s] = true
	}

	var out []*model.Consultation
	for _, c := range m.db.state.consultations {
		if allowed[c.Status] && c.TimeoutAt != nil && !c.TimeoutAt.After(now) {
			cc := c
			out = append(out, &cc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TimeoutAt.Equal(*out[j].TimeoutAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].TimeoutAt.Before(*out[j].TimeoutAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m memConsultations) UpdateStatus(_ context.Context, id int64, expected, status model.ConsultationStatus, timeoutAt *time.Time) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c, ok := m.db.state.consultations[id]
	if !ok || c.Status != expected {
		return repository.ErrStatusConflict
	}
	c.Status = status
	c.TimeoutAt = timeoutAt
	c.UpdatedAt = time.Now()
	if status.IsTerminal() {
		now := time.Now()
		c.FinishedAt = &now
	}
	m.db.state.consultations[id] = c
	return nil
}

func (m memConsultations) SetSelectedResearcher(_ context.Context, id int64, expected model.ConsultationStatus, researcherID int64, timeoutAt time.Time) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c, ok := m.db.state.consultations[id]
	if !ok || c.Status != expected {
		return repository.ErrStatusConflict
	}
	c.Status = model.ConsultationStatusInProgress
	c.SelectedResearcherID = &researcherID
	c.TimeoutAt = &timeoutAt
	m.db.state.consultations[id] = c
	return nil
}

func (m memConsultations) ListByUser(_ context.Context, userID int64, limit int) ([]*model.Consultation, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []*model.Consultation
	for _, c := range m.db.state.consultations {
		if c.UserID == userID {
			cc := c
			out = append(out, &cc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m memConsultations) GetActiveByUser(_ context.Context, userID int64) (*model.Consultation, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, c := range m.db.state.consultations {
		if c.UserID == userID && c.Status == model.ConsultationStatusInProgress {
			return &c, nil
		}
	}
	return nil, nil
}

func (m memConsultations) GetActiveByResearcher(_ context.Context, researcherID int64) (*model.Consultation, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, c := range m.db.state.consultations {
		if c.SelectedResearcherID != nil && *c.SelectedResearcherID == researcherID && c.Status == model.ConsultationStatusInProgress {
			return &c, nil
		}
	}
	return nil, nil
}

type memAssignments struct{ db *memDB }

func (m memAssignments) CreateBatch(_ context.Context, consultationID int64, researcherIDs []int64) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, id := range researcherIDs {
		m.db.state.assignments[consultationID] = append(m.db.state.assignments[consultationID], model.ConsultationResearcher{
			ConsultationID: consultationID,
			ResearcherID:   id,
		})
	}
	return nil
}

func (m memAssignments) FindByConsultation(_ context.Context, consultationID int64) ([]*model.ConsultationResearcher, error) {
	if m.db.beforeFindAssignments != nil {
		m.db.beforeFindAssignments(consultationID)
	}
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []*model.ConsultationResearcher
	for _, a := range m.db.state.assignments[consultationID] {
		aa := a
		aa.ChatID = m.db.state.researchers[a.ResearcherID].ChatID
		out = append(out, &aa)
	}
	return out, nil
}

func (m memAssignments) SetFirstAnswer(_ context.Context, consultationID, researcherID int64, answer string, at time.Time) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	list := m.db.state.assignments[consultationID]
	for i := range list {
		if list[i].ResearcherID == researcherID && list[i].FirstAnswer == nil {
			a := answer
			list[i].FirstAnswer = &a
			list[i].AnsweredAt = &at
			return nil
		}
	}
	return repository.ErrStatusConflict
}

type memResearchers struct{ db *memDB }

func (m memResearchers) Create(_ context.Context, r *model.Researcher) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	r.ID = m.db.id()
	m.db.state.researchers[r.ID] = *r
	return nil
}

func (m memResearchers) GetByID(_ context.Context, id int64) (*model.Researcher, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	r, ok := m.db.state.researchers[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m memResearchers) GetForUpdate(ctx context.Context, id int64) (*model.Researcher, error) {
	return m.GetByID(ctx, id)
}

func (m memResearchers) GetByTelegramID(_ context.Context, telegramID int64) (*model.Researcher, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, r := range m.db.state.researchers {
		if r.TelegramID == telegramID {
			return &r, nil
		}
	}
	return nil, nil
}

func (m memResearchers) ListOnline(_ context.Context) ([]*model.Researcher, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []*model.Researcher
	for _, r := range m.db.state.researchers {
		if r.Status == model.ResearcherStatusOnline {
			rr := r
			out = append(out, &rr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memResearchers) SetStatus(_ context.Context, id int64, status model.ResearcherStatus) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	r, ok := m.db.state.researchers[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.Status = status
	m.db.state.researchers[id] = r
	return nil
}

func (m memResearchers) DecrementScore(_ context.Context, id int64, amount int64, floor *int64) error {
	if err := m.db.decrementErr[id]; err != nil {
		return err
	}
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	r, ok := m.db.state.researchers[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.RecommendScore -= amount
	if floor != nil && r.RecommendScore < *floor {
		r.RecommendScore = *floor
	}
	m.db.state.researchers[id] = r
	return nil
}

func (m memResearchers) AddEarnings(_ context.Context, id int64, amount int64) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	r, ok := m.db.state.researchers[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.EarnedEnergy += amount
	m.db.state.researchers[id] = r
	return nil
}

type memUsers struct{ db *memDB }

func (m memUsers) Create(_ context.Context, u *model.User) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u.ID = m.db.id()
	m.db.state.users[u.ID] = *u
	return nil
}

func (m memUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.state.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m memUsers) GetByTelegramID(_ context.Context, telegramID int64) (*model.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, u := range m.db.state.users {
		if u.TelegramID == telegramID {
			return &u, nil
		}
	}
	return nil, nil
}

func (m memUsers) Update(_ context.Context, u *model.User) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	existing, ok := m.db.state.users[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	balance := existing.EnergyBalance
	existing = *u
	existing.EnergyBalance = balance
	m.db.state.users[u.ID] = existing
	return nil
}

func (m memUsers) AdjustBalance(_ context.Context, id int64, delta int64) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.state.users[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	if u.EnergyBalance+delta < 0 {
		return 0, repository.ErrInsufficientBalance
	}
	u.EnergyBalance += delta
	m.db.state.users[id] = u
	return u.EnergyBalance, nil
}

type memLedger struct{ db *memDB }

func (m memLedger) Insert(_ context.Context, e *model.LedgerEntry) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, existing := range m.db.state.ledger {
		if existing.ConsultationID == e.ConsultationID && existing.Kind == e.Kind {
			return false, nil
		}
	}
	e.CreatedAt = time.Now()
	m.db.state.ledger = append(m.db.state.ledger, *e)
	return true, nil
}

func (m memLedger) ListByConsultation(_ context.Context, consultationID int64) ([]*model.LedgerEntry, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []*model.LedgerEntry
	for _, e := range m.db.state.ledger {
		if e.ConsultationID == consultationID {
			ee := e
			out = append(out, &ee)
		}
	}
	return out, nil
}

type memMessages struct{ db *memDB }

func (m memMessages) Insert(_ context.Context, msg *model.ConsultationMessage) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	msg.ID = m.db.id()
	msg.CreatedAt = time.Now()
	m.db.state.messages = append(m.db.state.messages, *msg)
	return nil
}

func (m memMessages) ListByConsultation(_ context.Context, consultationID int64) ([]*model.ConsultationMessage, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []*model.ConsultationMessage
	for _, msg := range m.db.state.messages {
		if msg.ConsultationID == consultationID {
			mm := msg
			out = append(out, &mm)
		}
	}
	return out, nil
}

// recordingGateway запоминает все уведомления
type recordingGateway struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (g *recordingGateway) Notify(kind notify.Kind, chatID int64, payload notify.Payload) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, notify.Message{Kind: kind, ChatID: chatID, Payload: payload})
}

func (g *recordingGateway) byKind(kind notify.Kind) []notify.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []notify.Message
	for _, m := range g.sent {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

func (g *recordingGateway) chats(kind notify.Kind) []int64 {
	var out []int64
	for _, m := range g.byKind(kind) {
		out = append(out, m.ChatID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (g *recordingGateway) reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = nil
}
