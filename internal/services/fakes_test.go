package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sitecraft/backend/internal/ledger"
	"github.com/sitecraft/backend/internal/models"
	"github.com/sitecraft/backend/internal/repository"
)

// ---------------------------------------------------------------------------
// memDB is an in-memory stand-in for the Postgres repositories. Each table is
// exposed through its own view type so method names match the real repos.
// ExecTx serialises transactions and restores a snapshot when fn fails.
// ---------------------------------------------------------------------------

type memDB struct {
	txMu sync.Mutex

	mu           sync.Mutex
	users        map[uuid.UUID]models.User
	projects     map[uuid.UUID]models.Project
	versions     []models.Version
	conversation []models.ConversationEntry
	credits      []models.CreditEntry
	clock        time.Time

	failVersionCreate error
	failAppend        func(content string) error
}

func newMemDB() *memDB {
	return &memDB{
		users:    make(map[uuid.UUID]models.User),
		projects: make(map[uuid.UUID]models.Project),
		clock:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (db *memDB) tick() time.Time {
	db.clock = db.clock.Add(time.Millisecond)
	return db.clock
}

func (db *memDB) addUser(credits int) uuid.UUID {
	db.mu.Lock()
	defer db.mu.Unlock()
	id := uuid.New()
	db.users[id] = models.User{ID: id, Name: "user-" + id.String()[:8], Credits: credits}
	return id
}

func (db *memDB) addProject(owner uuid.UUID, code string) uuid.UUID {
	db.mu.Lock()
	defer db.mu.Unlock()
	id := uuid.New()
	db.projects[id] = models.Project{ID: id, OwnerID: owner, Name: "site", CurrentCode: code, CreatedAt: db.tick()}
	return id
}

func (db *memDB) addVersion(projectID uuid.UUID, code string) uuid.UUID {
	db.mu.Lock()
	defer db.mu.Unlock()
	v := models.Version{ID: uuid.New(), ProjectID: projectID, Code: code, Description: "seed", CreatedAt: db.tick()}
	db.versions = append(db.versions, v)
	return v.ID
}

func (db *memDB) credit(id uuid.UUID) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.users[id].Credits
}

func (db *memDB) project(id uuid.UUID) models.Project {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.projects[id]
}

func (db *memDB) versionsOf(projectID uuid.UUID) []models.Version {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []models.Version
	for _, v := range db.versions {
		if v.ProjectID == projectID {
			out = append(out, v)
		}
	}
	return out
}

func (db *memDB) entries(projectID uuid.UUID) []models.ConversationEntry {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []models.ConversationEntry
	for _, e := range db.conversation {
		if e.ProjectID == projectID {
			out = append(out, e)
		}
	}
	return out
}

func (db *memDB) roles(projectID uuid.UUID) (user, assistant int) {
	for _, e := range db.entries(projectID) {
		if e.Role == models.RoleUser {
			user++
		} else {
			assistant++
		}
	}
	return user, assistant
}

func (db *memDB) ledgerEntries(userID uuid.UUID) []models.CreditEntry {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []models.CreditEntry
	for _, c := range db.credits {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out
}

func (db *memDB) ExecTx(ctx context.Context, fn func(ctx context.Context) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.Lock()
	users := make(map[uuid.UUID]models.User, len(db.users))
	for k, v := range db.users {
		users[k] = v
	}
	projects := make(map[uuid.UUID]models.Project, len(db.projects))
	for k, v := range db.projects {
		projects[k] = v
	}
	versions := append([]models.Version(nil), db.versions...)
	conversation := append([]models.ConversationEntry(nil), db.conversation...)
	credits := append([]models.CreditEntry(nil), db.credits...)
	db.mu.Unlock()

	if err := fn(ctx); err != nil {
		db.mu.Lock()
		db.users, db.projects, db.versions, db.conversation, db.credits = users, projects, versions, conversation, credits
		db.mu.Unlock()
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// users (UserReader, ledger.AccountStore)
// ---------------------------------------------------------------------------

type memUsers struct{ db *memDB }

func (u memUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u.db.mu.Lock()
	defer u.db.mu.Unlock()
	usr, ok := u.db.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &usr, nil
}

func (u memUsers) DeductCredits(_ context.Context, id uuid.UUID, amount int) (int, error) {
	u.db.mu.Lock()
	defer u.db.mu.Unlock()
	usr, ok := u.db.users[id]
	if !ok || usr.Credits < amount {
		return 0, repository.ErrNotFound
	}
	usr.Credits -= amount
	u.db.users[id] = usr
	return usr.Credits, nil
}

func (u memUsers) AddCredits(_ context.Context, id uuid.UUID, amount int) (int, error) {
	u.db.mu.Lock()
	defer u.db.mu.Unlock()
	usr, ok := u.db.users[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	usr.Credits += amount
	u.db.users[id] = usr
	return usr.Credits, nil
}

// ---------------------------------------------------------------------------
// credit entries (ledger.EntryStore)
// ---------------------------------------------------------------------------

type memCredits struct{ db *memDB }

func (c memCredits) Create(_ context.Context, e *models.CreditEntry) error {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	if e.AttemptID != nil {
		for _, x := range c.db.credits {
			if x.AttemptID != nil && *x.AttemptID == *e.AttemptID && x.EntryType == e.EntryType {
				return repository.ErrDuplicate
			}
		}
	}
	e.CreatedAt = c.db.tick()
	c.db.credits = append(c.db.credits, *e)
	return nil
}

func (c memCredits) ExistsForAttempt(_ context.Context, attemptID uuid.UUID, entryType string) (bool, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	for _, x := range c.db.credits {
		if x.AttemptID != nil && *x.AttemptID == attemptID && x.EntryType == entryType {
			return true, nil
		}
	}
	return false, nil
}

func (c memCredits) ListByUserID(_ context.Context, userID uuid.UUID, limit int) ([]*models.CreditEntry, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	var out []*models.CreditEntry
	for i := len(c.db.credits) - 1; i >= 0 && len(out) < limit; i-- {
		if c.db.credits[i].UserID == userID {
			e := c.db.credits[i]
			out = append(out, &e)
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// projects (ProjectStore)
// ---------------------------------------------------------------------------

type memProjects struct{ db *memDB }

func (p memProjects) Create(_ context.Context, pr *models.Project) error {
	p.db.mu.Lock()
	defer p.db.mu.Unlock()
	pr.CreatedAt = p.db.tick()
	pr.UpdatedAt = pr.CreatedAt
	p.db.projects[pr.ID] = *pr
	return nil
}

func (p memProjects) GetByID(_ context.Context, id uuid.UUID) (*models.Project, error) {
	p.db.mu.Lock()
	defer p.db.mu.Unlock()
	pr, ok := p.db.projects[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &pr, nil
}

func (p memProjects) GetForOwner(_ context.Context, id, ownerID uuid.UUID) (*models.Project, error) {
	p.db.mu.Lock()
	defer p.db.mu.Unlock()
	pr, ok := p.db.projects[id]
	if !ok || pr.OwnerID != ownerID {
		return nil, repository.ErrNotFound
	}
	return &pr, nil
}

func (p memProjects) SetCurrent(_ context.Context, id uuid.UUID, code string, versionID *uuid.UUID) error {
	p.db.mu.Lock()
	defer p.db.mu.Unlock()
	pr, ok := p.db.projects[id]
	if !ok {
		return repository.ErrNotFound
	}
	pr.CurrentCode, pr.CurrentVersionID, pr.UpdatedAt = code, versionID, p.db.tick()
	p.db.projects[id] = pr
	return nil
}

func (p memProjects) SetPublished(_ context.Context, id, ownerID uuid.UUID, published bool) error {
	p.db.mu.Lock()
	defer p.db.mu.Unlock()
	pr, ok := p.db.projects[id]
	if !ok || pr.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	pr.IsPublished = published
	p.db.projects[id] = pr
	return nil
}

func (p memProjects) Delete(_ context.Context, id, ownerID uuid.UUID) error {
	p.db.mu.Lock()
	defer p.db.mu.Unlock()
	pr, ok := p.db.projects[id]
	if !ok || pr.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	delete(p.db.projects, id)
	return nil
}

func (p memProjects) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]*models.Project, error) {
	p.db.mu.Lock()
	defer p.db.mu.Unlock()
	var out []*models.Project
	for _, pr := range p.db.projects {
		if pr.OwnerID == ownerID {
			cp := pr
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (p memProjects) ListPublished(_ context.Context, limit int) ([]*models.PublishedProject, error) {
	p.db.mu.Lock()
	defer p.db.mu.Unlock()
	var out []*models.PublishedProject
	for _, pr := range p.db.projects {
		if pr.IsPublished && pr.CurrentCode != "" && len(out) < limit {
			out = append(out, &models.PublishedProject{ID: pr.ID, Name: pr.Name, OwnerName: p.db.users[pr.OwnerID].Name})
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// versions (VersionStore)
// ---------------------------------------------------------------------------

type memVersions struct{ db *memDB }

func (v memVersions) Create(_ context.Context, projectID uuid.UUID, code, description string) (*models.Version, error) {
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	if v.db.failVersionCreate != nil {
		return nil, v.db.failVersionCreate
	}
	ver := models.Version{ID: uuid.New(), ProjectID: projectID, Code: code, Description: description, CreatedAt: v.db.tick()}
	v.db.versions = append(v.db.versions, ver)
	return &ver, nil
}

func (v memVersions) Get(_ context.Context, projectID, versionID uuid.UUID) (*models.Version, error) {
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	for _, ver := range v.db.versions {
		if ver.ID == versionID && ver.ProjectID == projectID {
			cp := ver
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (v memVersions) ListByProject(_ context.Context, projectID uuid.UUID) ([]*models.Version, error) {
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	var out []*models.Version
	for _, ver := range v.db.versions {
		if ver.ProjectID == projectID {
			cp := ver
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// conversation (ConversationLog)
// ---------------------------------------------------------------------------

type memConversation struct{ db *memDB }

func (c memConversation) Append(_ context.Context, projectID uuid.UUID, role, content string) (*models.ConversationEntry, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	if c.db.failAppend != nil {
		if err := c.db.failAppend(content); err != nil {
			return nil, err
		}
	}
	e := models.ConversationEntry{ID: uuid.New(), ProjectID: projectID, Role: role, Content: content, CreatedAt: c.db.tick()}
	c.db.conversation = append(c.db.conversation, e)
	return &e, nil
}

func (c memConversation) ListByProject(_ context.Context, projectID uuid.UUID) ([]*models.ConversationEntry, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	var out []*models.ConversationEntry
	for _, e := range c.db.conversation {
		if e.ProjectID == projectID {
			cp := e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Generation and ledger doubles
// ---------------------------------------------------------------------------

type reply struct {
	text string
	err  error
}

type stubGenerator struct {
	mu      sync.Mutex
	replies []reply
	prompts []string
}

func newStubGenerator(replies ...reply) *stubGenerator {
	return &stubGenerator{replies: replies}
}

func (g *stubGenerator) Complete(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if len(g.replies) == 0 {
		return "", errors.New("stub generator: no reply scripted")
	}
	r := g.replies[0]
	g.replies = g.replies[1:]
	return r.text, r.err
}

func (g *stubGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

// flakyLedger wraps a real ledger and injects failures.
type flakyLedger struct {
	ledger.Service
	debitErr  error
	creditErr error
}

func (f *flakyLedger) Debit(ctx context.Context, userID, attemptID uuid.UUID, amount int) (int, error) {
	if f.debitErr != nil {
		return 0, f.debitErr
	}
	return f.Service.Debit(ctx, userID, attemptID, amount)
}

func (f *flakyLedger) Credit(ctx context.Context, userID, attemptID uuid.UUID, amount int) (int, error) {
	if f.creditErr != nil {
		return 0, f.creditErr
	}
	return f.Service.Credit(ctx, userID, attemptID, amount)
}

type scheduledRefund struct {
	userID, attemptID uuid.UUID
	amount            int
}

type recordingScheduler struct {
	mu        sync.Mutex
	scheduled []scheduledRefund
}

func (s *recordingScheduler) ScheduleRefund(_ context.Context, userID, attemptID uuid.UUID, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = append(s.scheduled, scheduledRefund{userID, attemptID, amount})
	return nil
}
