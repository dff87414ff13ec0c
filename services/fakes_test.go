package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/teamtrack/teamtrack/models"
	"github.com/teamtrack/teamtrack/repositories"
)

// In-memory repository fakes. They enforce the same contracts the Postgres
// implementations do (lookup cap, idempotent attendance writes, atomic
// approval) so service tests exercise real behavior rather than mocks.

type fakeUserRepo struct {
	mu      sync.Mutex
	users   map[int]*models.User
	nextID  int
	queries int // ListByIDs call count, for chunking assertions
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int]*models.User), nextID: 1}
}

func (r *fakeUserRepo) add(u models.User) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == 0 {
		u.ID = r.nextID
	}
	if u.ID >= r.nextID {
		r.nextID = u.ID + 1
	}
	stored := u
	r.users[stored.ID] = &stored
	return &stored
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.PhoneNumber == user.PhoneNumber {
			return repositories.ErrUserPhoneConflict
		}
	}
	user.ID = r.nextID
	user.CreatedAt = time.Now()
	r.nextID++
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) GetByPhone(_ context.Context, phoneNumber string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.PhoneNumber == phoneNumber {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) Update(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return repositories.ErrUserNotFound
	}
	for id, existing := range r.users {
		if id != user.ID && existing.PhoneNumber == user.PhoneNumber {
			return repositories.ErrUserPhoneConflict
		}
	}
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *fakeUserRepo) ListByIDs(_ context.Context, ids []int) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(ids) > repositories.MaxLookupIDs {
		return nil, repositories.ErrTooManyLookupIDs
	}
	r.queries++
	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out, nil
}

func (r *fakeUserRepo) ListAll(_ context.Context) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out, nil
}

type fakeTeamRepo struct {
	mu     sync.Mutex
	teams  map[int]*models.Team
	nextID int
}

func newFakeTeamRepo() *fakeTeamRepo {
	return &fakeTeamRepo{teams: make(map[int]*models.Team), nextID: 1}
}

func (r *fakeTeamRepo) add(t models.Team) *models.Team {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == 0 {
		t.ID = r.nextID
	}
	if t.ID >= r.nextID {
		r.nextID = t.ID + 1
	}
	stored := t
	r.teams[stored.ID] = &stored
	return &stored
}

func copyTeam(t *models.Team) *models.Team {
	copied := *t
	copied.MemberIDs = append([]int(nil), t.MemberIDs...)
	copied.CaptainIDs = append([]int(nil), t.CaptainIDs...)
	copied.AppliedIDs = append([]int(nil), t.AppliedIDs...)
	return &copied
}

func (r *fakeTeamRepo) Create(_ context.Context, team *models.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.teams {
		if existing.Name == team.Name {
			return repositories.ErrTeamNameConflict
		}
	}
	team.ID = r.nextID
	team.CreatedAt = time.Now()
	r.nextID++
	r.teams[team.ID] = copyTeam(team)
	return nil
}

func (r *fakeTeamRepo) GetByID(_ context.Context, id int) (*models.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	return copyTeam(t), nil
}

func (r *fakeTeamRepo) Update(_ context.Context, team *models.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.teams[team.ID]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	for id, existing := range r.teams {
		if id != team.ID && existing.Name == team.Name {
			return repositories.ErrTeamNameConflict
		}
	}
	stored.Name = team.Name
	stored.Bio = team.Bio
	stored.ImageKey = team.ImageKey
	return nil
}

func (r *fakeTeamRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.teams[id]; !ok {
		return repositories.ErrTeamNotFound
	}
	delete(r.teams, id)
	return nil
}

func (r *fakeTeamRepo) List(_ context.Context) ([]*models.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Team, 0, len(r.teams))
	for _, t := range r.teams {
		out = append(out, copyTeam(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTeamRepo) ListByMember(ctx context.Context, userID int) ([]*models.Team, error) {
	all, _ := r.List(ctx)
	out := make([]*models.Team, 0)
	for _, t := range all {
		if t.HasMember(userID) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTeamRepo) ListIDsByMember(ctx context.Context, userID int) ([]int, error) {
	teams, _ := r.ListByMember(ctx, userID)
	ids := make([]int, 0, len(teams))
	for _, t := range teams {
		ids = append(ids, t.ID)
	}
	return ids, nil
}

func (r *fakeTeamRepo) ListAllIDs(ctx context.Context) ([]int, error) {
	teams, _ := r.List(ctx)
	ids := make([]int, 0, len(teams))
	for _, t := range teams {
		ids = append(ids, t.ID)
	}
	return ids, nil
}

func (r *fakeTeamRepo) AddMember(_ context.Context, teamID, userID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[teamID]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	if !t.HasMember(userID) {
		t.MemberIDs = append(t.MemberIDs, userID)
	}
	return nil
}

func (r *fakeTeamRepo) RemoveMember(_ context.Context, teamID, userID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[teamID]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	if !t.HasMember(userID) {
		return repositories.ErrMembershipNotFound
	}
	t.MemberIDs = removeID(t.MemberIDs, userID)
	t.CaptainIDs = removeID(t.CaptainIDs, userID)
	return nil
}

func (r *fakeTeamRepo) SetCaptain(_ context.Context, teamID, userID int, captain bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[teamID]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	if !t.HasMember(userID) {
		return repositories.ErrMembershipNotFound
	}
	t.CaptainIDs = removeID(t.CaptainIDs, userID)
	if captain {
		t.CaptainIDs = append(t.CaptainIDs, userID)
	}
	return nil
}

func (r *fakeTeamRepo) AddApplication(_ context.Context, teamID, userID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[teamID]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	if !t.HasApplied(userID) {
		t.AppliedIDs = append(t.AppliedIDs, userID)
	}
	return nil
}

func (r *fakeTeamRepo) RemoveApplication(_ context.Context, teamID, userID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[teamID]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	if !t.HasApplied(userID) {
		return repositories.ErrApplicationNotFound
	}
	t.AppliedIDs = removeID(t.AppliedIDs, userID)
	return nil
}

func (r *fakeTeamRepo) ApproveApplication(_ context.Context, teamID, userID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[teamID]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	if !t.HasApplied(userID) {
		return repositories.ErrApplicationNotFound
	}
	t.AppliedIDs = removeID(t.AppliedIDs, userID)
	if !t.HasMember(userID) {
		t.MemberIDs = append(t.MemberIDs, userID)
	}
	return nil
}

func removeID(ids []int, id int) []int {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[int]*models.Session
	nextID   int
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[int]*models.Session), nextID: 1}
}

func copySession(s *models.Session) *models.Session {
	copied := *s
	copied.Attending = append([]int(nil), s.Attending...)
	copied.Available = append([]int(nil), s.Available...)
	return &copied
}

func (r *fakeSessionRepo) add(s models.Session) *models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == 0 {
		s.ID = r.nextID
	}
	if s.ID >= r.nextID {
		r.nextID = s.ID + 1
	}
	stored := s
	r.sessions[stored.ID] = &stored
	return &stored
}

func (r *fakeSessionRepo) Create(_ context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session.ID = r.nextID
	session.CreatedAt = time.Now()
	r.nextID++
	r.sessions[session.ID] = copySession(session)
	return nil
}

func (r *fakeSessionRepo) GetByID(_ context.Context, id int) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, repositories.ErrSessionNotFound
	}
	return copySession(s), nil
}

func (r *fakeSessionRepo) Update(_ context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.sessions[session.ID]
	if !ok {
		return repositories.ErrSessionNotFound
	}
	stored.Name = session.Name
	stored.Description = session.Description
	stored.Location = session.Location
	stored.Opposition = session.Opposition
	stored.Start = session.Start
	stored.End = session.End
	return nil
}

func (r *fakeSessionRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return repositories.ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

func (r *fakeSessionRepo) ListByTeamIDs(_ context.Context, teamIDs []int) ([]*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wanted := make(map[int]struct{}, len(teamIDs))
	for _, id := range teamIDs {
		wanted[id] = struct{}{}
	}
	out := make([]*models.Session, 0)
	for _, s := range r.sessions {
		if _, ok := wanted[s.TeamID]; ok {
			out = append(out, copySession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (r *fakeSessionRepo) ListStartingBetween(_ context.Context, from, to time.Time) ([]*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Session, 0)
	for _, s := range r.sessions {
		if !s.Start.Before(from) && s.Start.Before(to) {
			out = append(out, copySession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (r *fakeSessionRepo) SetAttendance(_ context.Context, sessionID, userID int, kind string, present bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return repositories.ErrSessionNotFound
	}
	set := &s.Attending
	if kind == repositories.AttendanceAvailable {
		set = &s.Available
	}
	*set = removeID(*set, userID)
	if present {
		*set = append(*set, userID)
	}
	return nil
}

type fakeCodeRepo struct {
	mu    sync.Mutex
	codes map[string]*models.SignInCode
}

func newFakeCodeRepo() *fakeCodeRepo {
	return &fakeCodeRepo{codes: make(map[string]*models.SignInCode)}
}

func (r *fakeCodeRepo) Upsert(_ context.Context, code *models.SignInCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *code
	r.codes[code.PhoneNumber] = &stored
	return nil
}

func (r *fakeCodeRepo) GetByPhone(_ context.Context, phoneNumber string) (*models.SignInCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codes[phoneNumber]
	if !ok {
		return nil, repositories.ErrSignInCodeNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *fakeCodeRepo) Delete(_ context.Context, phoneNumber string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.codes[phoneNumber]; !ok {
		return repositories.ErrSignInCodeNotFound
	}
	delete(r.codes, phoneNumber)
	return nil
}

func (r *fakeCodeRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for phone, c := range r.codes {
		if time.Now().After(c.ExpiresAt) {
			delete(r.codes, phone)
			n++
		}
	}
	return n, nil
}

// recordingNotifier captures realtime events emitted by services.
type sessionEvent struct {
	TeamID    int
	SessionID int
	Deleted   bool
}

type recordingNotifier struct {
	mu            sync.Mutex
	teamUpdates   []int
	sessionEvents []sessionEvent
}

func (n *recordingNotifier) TeamUpdated(teamID int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.teamUpdates = append(n.teamUpdates, teamID)
}

func (n *recordingNotifier) SessionUpdated(teamID, sessionID int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sessionEvents = append(n.sessionEvents, sessionEvent{teamID, sessionID, false})
}

func (n *recordingNotifier) SessionDeleted(teamID, sessionID int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sessionEvents = append(n.sessionEvents, sessionEvent{teamID, sessionID, true})
}

// recordingEmailSender captures digest emails.
type recordingEmailSender struct {
	mu   sync.Mutex
	sent []sentEmail
}

type sentEmail struct {
	To      string
	Subject string
	Body    string
}

func (s *recordingEmailSender) Send(to, subject, htmlBody string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentEmail{To: to, Subject: subject, Body: htmlBody})
	return nil
}
