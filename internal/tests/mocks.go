package tests

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"minuteride/internal/domain"
	"minuteride/internal/events"
	"minuteride/internal/notify"
	"minuteride/internal/redis"
	"minuteride/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK JOB REPOSITORY
// ──────────────────────────────────────────────

// MockJobRepository is an in-memory JobRepository with the same conditional
// write semantics as the PostgreSQL implementation.
type MockJobRepository struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job

	// Counters for verification
	ClaimCallCount    int32
	CompleteCallCount int32

	// Error injection
	CreateError   error
	CompleteError error
	StartError    error

	// OnCreate, if set, is called after a successful Create (e.g. to emit a change event).
	OnCreate func(job *domain.Job)
}

// NewMockJobRepository creates a new mock job repository.
func NewMockJobRepository() *MockJobRepository {
	return &MockJobRepository{jobs: make(map[string]*domain.Job)}
}

// AddJob adds a job to the mock repository.
func (m *MockJobRepository) AddJob(job *domain.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	m.jobs[job.ID] = job
}

// GetJob returns a copy of a stored job for test assertions.
func (m *MockJobRepository) GetJob(id string) *domain.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil
	}
	copy := *job
	return &copy
}

// CountJobs returns the number of stored jobs.
func (m *MockJobRepository) CountJobs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

func (m *MockJobRepository) Create(ctx context.Context, job *domain.Job) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	copy := *job
	m.jobs[job.ID] = &copy
	m.mu.Unlock()

	if m.OnCreate != nil {
		m.OnCreate(job)
	}
	return nil
}

func (m *MockJobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *job
	return &copy, nil
}

func (m *MockJobRepository) List(ctx context.Context, filter domain.JobFilter) ([]*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*domain.Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		if filter.VisibleToDriver != "" && job.AssignedDriverID != "" && job.AssignedDriverID != filter.VisibleToDriver {
			continue
		}
		copy := *job
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MockJobRepository) Claim(ctx context.Context, jobID, driverID string) (bool, error) {
	atomic.AddInt32(&m.ClaimCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok || job.AssignedDriverID != "" || job.Status != domain.JobStatusNew {
		return false, nil
	}
	job.AssignedDriverID = driverID
	job.Status = domain.JobStatusAssigned
	job.UpdatedAt = time.Now()
	return true, nil
}

func (m *MockJobRepository) Assign(ctx context.Context, jobID, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return repository.ErrNotFound
	}
	job.AssignedDriverID = driverID
	job.Status = domain.JobStatusAssigned
	job.UpdatedAt = time.Now()
	return nil
}

func (m *MockJobRepository) Start(ctx context.Context, jobID, driverID string, startedAt time.Time) (bool, error) {
	if m.StartError != nil {
		return false, m.StartError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok || job.AssignedDriverID != driverID || job.Status != domain.JobStatusAssigned {
		return false, nil
	}
	job.Status = domain.JobStatusInProgress
	job.StartedAt = startedAt
	job.UpdatedAt = time.Now()
	return true, nil
}

func (m *MockJobRepository) Complete(ctx context.Context, jobID, driverID string, metrics domain.TripMetrics) (bool, error) {
	atomic.AddInt32(&m.CompleteCallCount, 1)
	if m.CompleteError != nil {
		return false, m.CompleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok || job.AssignedDriverID != driverID || job.Status != domain.JobStatusInProgress {
		return false, nil
	}
	secs, mins, dist := metrics.DurationSeconds, metrics.DurationMinutes, metrics.DistanceMeters
	fare, payout := metrics.Fare, metrics.DriverPayout
	job.Status = domain.JobStatusCompleted
	job.DurationSeconds = &secs
	job.DurationMinutes = &mins
	job.DistanceMeters = &dist
	job.Fare = &fare
	job.DriverPayout = &payout
	job.EndedAt = metrics.EndedAt
	job.UpdatedAt = time.Now()
	return true, nil
}

func (m *MockJobRepository) SetStatus(ctx context.Context, jobID string, status domain.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return repository.ErrNotFound
	}
	job.Status = status
	if status == domain.JobStatusNew {
		job.AssignedDriverID = ""
	}
	job.UpdatedAt = time.Now()
	return nil
}

// ──────────────────────────────────────────────
// MOCK DRIVER DIRECTORY
// ──────────────────────────────────────────────

// MockDriverDirectory is a mock implementation of DriverDirectory.
type MockDriverDirectory struct {
	mu      sync.RWMutex
	drivers []*domain.Driver

	// Error injection
	GetAllError      error
	RecipientsError  error
	PushTargetsError error
}

// NewMockDriverDirectory creates a new mock driver directory.
func NewMockDriverDirectory(drivers ...*domain.Driver) *MockDriverDirectory {
	return &MockDriverDirectory{drivers: drivers}
}

func (m *MockDriverDirectory) GetAll(ctx context.Context) ([]*domain.Driver, error) {
	if m.GetAllError != nil {
		return nil, m.GetAllError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		copy := *d
		result = append(result, &copy)
	}
	return result, nil
}

func (m *MockDriverDirectory) SMSRecipients(ctx context.Context) ([]string, error) {
	if m.RecipientsError != nil {
		return nil, m.RecipientsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	phones := make([]string, 0, len(m.drivers))
	for _, d := range m.drivers {
		if d.SMSEnabled && d.Phone != "" {
			phones = append(phones, d.Phone)
		}
	}
	return phones, nil
}

func (m *MockDriverDirectory) PushTargets(ctx context.Context) ([]domain.PushTarget, error) {
	if m.PushTargetsError != nil {
		return nil, m.PushTargetsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var targets []domain.PushTarget
	for _, d := range m.drivers {
		if d.ExpoPushToken != "" {
			targets = append(targets, domain.PushTarget{DriverID: d.ID, Token: d.ExpoPushToken, Provider: domain.PushProviderExpo})
		}
		if d.FCMToken != "" {
			targets = append(targets, domain.PushTarget{DriverID: d.ID, Token: d.FCMToken, Provider: domain.PushProviderFCM})
		}
	}
	return targets, nil
}

// ──────────────────────────────────────────────
// MOCK SESSION STORE
// ──────────────────────────────────────────────

// MockSessionStore is an in-memory SessionStoreInterface with atomic Begin and Update.
type MockSessionStore struct {
	mu       sync.Mutex
	sessions map[string]domain.TripSession

	// Error injection
	GetError error
	EndError error

	// BeforeUpdate runs between the caller's read and the atomic update.
	BeforeUpdate func()
}

// NewMockSessionStore creates a new mock session store.
func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{sessions: make(map[string]domain.TripSession)}
}

// Put stores a session directly, bypassing Begin.
func (m *MockSessionStore) Put(session domain.TripSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.DriverID] = session
}

// Has reports whether the driver has a session.
func (m *MockSessionStore) Has(driverID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[driverID]
	return ok
}

func (m *MockSessionStore) Begin(ctx context.Context, session *domain.TripSession) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[session.DriverID]; exists {
		return false, nil
	}
	m.sessions[session.DriverID] = *session
	return true, nil
}

func (m *MockSessionStore) Get(ctx context.Context, driverID string) (*domain.TripSession, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[driverID]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

func (m *MockSessionStore) Update(ctx context.Context, current *domain.TripSession, fn func(*domain.TripSession)) (*domain.TripSession, error) {
	if m.BeforeUpdate != nil {
		m.BeforeUpdate()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.sessions[current.DriverID]
	if !ok || stored.JobID != current.JobID || !stored.StartTime.Equal(current.StartTime) {
		return nil, redis.ErrSessionChanged
	}
	fn(&stored)
	m.sessions[current.DriverID] = stored
	return &stored, nil
}

// Session returns a copy of the driver's stored session.
func (m *MockSessionStore) Session(driverID string) (domain.TripSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[driverID]
	return session, ok
}

func (m *MockSessionStore) End(ctx context.Context, driverID string) error {
	if m.EndError != nil {
		return m.EndError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, driverID)
	return nil
}

// ──────────────────────────────────────────────
// MOCK LOCATION STORE
// ──────────────────────────────────────────────

// MockLocationStore is a mock implementation of LocationStoreInterface.
type MockLocationStore struct {
	mu        sync.RWMutex
	locations map[string]redis.DriverLocation
}

// NewMockLocationStore creates a new mock location store.
func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{locations: make(map[string]redis.DriverLocation)}
}

func (m *MockLocationStore) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[driverID] = redis.DriverLocation{DriverID: driverID, Lat: lat, Lng: lng}
	return nil
}

func (m *MockLocationStore) Positions(ctx context.Context) ([]redis.DriverLocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]redis.DriverLocation, 0, len(m.locations))
	for _, loc := range m.locations {
		result = append(result, loc)
	}
	return result, nil
}

func (m *MockLocationStore) RemoveLocation(ctx context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locations, driverID)
	return nil
}

// ──────────────────────────────────────────────
// MOCK NOTIFICATION CHANNELS
// ──────────────────────────────────────────────

// MockSMSSender records sent messages. Numbers listed in FailFor fail.
type MockSMSSender struct {
	mu      sync.Mutex
	Sent    map[string]string
	FailFor map[string]bool
}

// NewMockSMSSender creates a new mock SMS sender.
func NewMockSMSSender() *MockSMSSender {
	return &MockSMSSender{Sent: make(map[string]string), FailFor: make(map[string]bool)}
}

func (m *MockSMSSender) SendSMS(ctx context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailFor[to] {
		return errors.New("mock sms failure")
	}
	m.Sent[to] = body
	return nil
}

// SentCount returns the number of delivered messages.
func (m *MockSMSSender) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// MockPusher records push messages.
type MockPusher struct {
	mu       sync.Mutex
	Messages []notify.PushMessage
	Err      error
}

func (m *MockPusher) Push(ctx context.Context, msg notify.PushMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Messages = append(m.Messages, msg)
	return nil
}

// Count returns the number of pushed messages.
func (m *MockPusher) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Messages)
}

// MockNotifier counts new-job alerts without sending anything.
type MockNotifier struct {
	Calls atomic.Int32
}

func (m *MockNotifier) NotifyNewJobAsync(jobID, pickup, dropoff string) {
	m.Calls.Add(1)
}

// ──────────────────────────────────────────────
// MOCK EVENT PUBLISHER
// ──────────────────────────────────────────────

// MockPublisher records published job events.
type MockPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (m *MockPublisher) Publish(ctx context.Context, ev events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *MockPublisher) Close() error { return nil }

// Types returns the types published so far.
func (m *MockPublisher) Types() []events.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]events.Type, 0, len(m.events))
	for _, ev := range m.events {
		types = append(types, ev.Type)
	}
	return types
}

// ──────────────────────────────────────────────
// FAKE CLOCK
// ──────────────────────────────────────────────

// FakeClock is a manually advanced clock for trip timing.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a clock at t.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Ensure mocks implement interfaces.
var (
	_ repository.JobRepository     = (*MockJobRepository)(nil)
	_ repository.DriverDirectory   = (*MockDriverDirectory)(nil)
	_ redis.SessionStoreInterface  = (*MockSessionStore)(nil)
	_ redis.LocationStoreInterface = (*MockLocationStore)(nil)
	_ events.Publisher             = (*MockPublisher)(nil)
)
