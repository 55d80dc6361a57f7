// Package store holds the per-session application state: the idea collection, the current
// user, the admin capability flag, the set of voted ideas and the notification slot.
//
// A Store is the single source of truth for one session. Every mutation happens under one
// lock, so callers never observe a partial update. Consumers receive the *Store explicitly;
// there is no package-level instance.
package store

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"forgeboard/config"
	"forgeboard/models"
	"forgeboard/seed"

	"github.com/google/uuid"
)

// Persister is durable key/value storage scoped to one client, the server-side
// counterpart of browser local storage.
type Persister interface {
	GetItem(key string) (value string, ok bool, err error)
	SetItem(key, value string) error
	RemoveItem(key string) error
}

// Notification message ids emitted by the store.
const (
	MsgIdeaSubmitted     = "idea.submitted"
	MsgVoteRecorded      = "vote.recorded"
	MsgVoteLoginRequired = "vote.login_required"
	MsgStatusUpdated     = "status.updated"
)

type Options struct {
	// Seed replaces the default seed collection when non-nil.
	Seed      []models.Idea
	Persister Persister
	Notifier  *Notifier
	Now       func() time.Time
	NewID     func() string
	Logger    *slog.Logger
}

type Store struct {
	mu        sync.RWMutex
	ideas     []models.Idea
	user      *models.User
	authState models.AuthState
	verifying time.Time
	isAdmin   bool
	voted     map[string]struct{}

	persister Persister
	notifier  *Notifier
	now       func() time.Time
	newID     func() string
	logger    *slog.Logger
}

// New creates a store seeded with the initial idea collection.
func New(opts Options) *Store {
	ideas := opts.Seed
	if ideas == nil {
		ideas = seed.Ideas()
	} else {
		ideas = append([]models.Idea(nil), ideas...)
	}
	s := &Store{
		ideas:     ideas,
		voted:     make(map[string]struct{}),
		persister: opts.Persister,
		notifier:  opts.Notifier,
		now:       opts.Now,
		newID:     opts.NewID,
		logger:    opts.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if s.notifier == nil {
		s.notifier = NewNotifier(config.NotificationTTL, s.now)
	}
	if s.persister == nil {
		s.persister = NewMemoryPersister()
	}
	return s
}

// Close releases the notification timer.
func (s *Store) Close() {
	s.notifier.Close()
}

// --- Idea collection ---

// Ideas returns a copy of the collection in storage order (newest submissions first).
func (s *Store) Ideas() []models.Idea {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Idea, len(s.ideas))
	copy(out, s.ideas)
	return out
}

// Idea resolves an id against the live collection.
func (s *Store) Idea(id string) (models.Idea, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.ideas[i], true
	}
	return models.Idea{}, false
}

// Rank applies the ranking engine to the current collection.
func (s *Store) Rank(filter models.Category) Ranking {
	return Rank(s.Ideas(), filter)
}

// Analytics aggregates the current collection.
func (s *Store) Analytics() Analytics {
	return Analyze(s.Ideas())
}

func (s *Store) indexOf(id string) int {
	for i := range s.ideas {
		if s.ideas[i].ID == id {
			return i
		}
	}
	return -1
}

// AddIdea validates the input and inserts a new open idea at the front of the collection
// with the author's own vote already counted.
func (s *Store) AddIdea(input models.IdeaInput) (models.Idea, error) {
	input = input.Normalize()
	if err := input.Validate(); err != nil {
		return models.Idea{}, fmt.Errorf("%w: %w", ErrInvalidIdea, err)
	}

	s.mu.Lock()
	id := s.newID()
	for id == "" || s.indexOf(id) >= 0 {
		id = s.newID()
	}
	idea := models.Idea{
		ID:           id,
		Title:        input.Title,
		Description:  input.Description,
		Category:     input.Category,
		Votes:        1,
		Status:       models.StatusOpen,
		Author:       input.Author,
		CreatedAt:    s.now().UTC(),
		ImageURL:     input.ImageURL,
		ThumbnailURL: input.ThumbnailURL,
	}
	s.ideas = append([]models.Idea{idea}, s.ideas...)
	s.mu.Unlock()

	s.logger.Info("Idea submitted", "idea_id", idea.ID, "category", idea.Category)
	s.notifier.Show(models.NotifySuccess, MsgIdeaSubmitted, nil)
	return idea, nil
}

// VoteIdea toggles the session's vote on an idea. It needs a logged-in user.
// cast is true when the call added a vote and false when it retracted one.
func (s *Store) VoteIdea(id string) (idea models.Idea, cast bool, err error) {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		s.notifier.Show(models.NotifyError, MsgVoteLoginRequired, nil)
		return models.Idea{}, false, ErrUnauthorized
	}
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return models.Idea{}, false, ErrNotFound
	}

	_, retract := s.voted[id]
	if retract {
		s.ideas[i].Votes--
		delete(s.voted, id)
	} else {
		s.ideas[i].Votes++
		s.voted[id] = struct{}{}
	}
	idea = s.ideas[i]
	s.mu.Unlock()

	if !retract {
		s.notifier.Show(models.NotifySuccess, MsgVoteRecorded, nil)
	}
	return idea, !retract, nil
}

// UpdateStatus sets an idea's status and, when devNote is non-nil, its dev note.
// Capability checks belong to the caller; the store applies the change unconditionally.
func (s *Store) UpdateStatus(id string, status models.Status, devNote *string) (models.Idea, error) {
	if !status.Valid() {
		return models.Idea{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return models.Idea{}, ErrNotFound
	}
	s.ideas[i].Status = status
	if devNote != nil {
		s.ideas[i].DevNote = *devNote
	}
	idea := s.ideas[i]
	s.mu.Unlock()

	s.logger.Info("Idea status updated", "idea_id", id, "status", status)
	s.notifier.Show(models.NotifySuccess, MsgStatusUpdated, map[string]string{"Status": string(status)})
	return idea, nil
}

// --- Session state ---

// ToggleAdmin flips the local admin capability and returns the new value. It grants no
// security boundary of its own.
func (s *Store) ToggleAdmin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isAdmin = !s.isAdmin
	return s.isAdmin
}

func (s *Store) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isAdmin
}

func (s *Store) HasVoted(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.voted[id]
	return ok
}

// VotedIDs returns the voted ids in collection order.
func (s *Store) VotedIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.voted))
	for _, idea := range s.ideas {
		if _, ok := s.voted[idea.ID]; ok {
			ids = append(ids, idea.ID)
		}
	}
	return ids
}

// --- Identity ---

func (s *Store) User() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return models.User{}, false
	}
	return *s.user, true
}

func (s *Store) AuthState() models.AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authState
}

// BeginVerifying moves LoggedOut to Verifying. It is the in-flight guard of the login flow.
func (s *Store) BeginVerifying() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.authState {
	case models.Verifying:
		return ErrLoginInProgress
	case models.LoggedIn:
		return ErrAlreadyLoggedIn
	}
	s.authState = models.Verifying
	s.verifying = s.now()
	return nil
}

// VerifyingFor reports how long the in-flight login has been running, measured on the
// store's clock.
func (s *Store) VerifyingFor() (time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.authState != models.Verifying {
		return 0, false
	}
	return s.now().Sub(s.verifying), true
}

// AbortVerifying returns a verifying session to LoggedOut.
func (s *Store) AbortVerifying() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.authState == models.Verifying {
		s.authState = models.LoggedOut
	}
}

// SetUser installs the identity and writes it to durable storage. The user stays
// installed for the session even if the write fails.
func (s *Store) SetUser(u models.User) error {
	s.mu.Lock()
	s.user = &u
	s.authState = models.LoggedIn
	s.mu.Unlock()

	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("could not encode user: %w", err)
	}
	if err := s.persister.SetItem(config.UserStorageKey, string(raw)); err != nil {
		return fmt.Errorf("could not persist user: %w", err)
	}
	return nil
}

// ClearUser removes the identity from the session and from durable storage.
// Voted ids are kept.
func (s *Store) ClearUser() error {
	s.mu.Lock()
	s.user = nil
	s.authState = models.LoggedOut
	s.mu.Unlock()

	if err := s.persister.RemoveItem(config.UserStorageKey); err != nil {
		return fmt.Errorf("could not remove stored user: %w", err)
	}
	return nil
}

// Restore installs a previously persisted user without re-verification. Unreadable data
// leaves the session logged out and is removed from storage; the returned error only
// reports what happened.
func (s *Store) Restore() error {
	raw, ok, err := s.persister.GetItem(config.UserStorageKey)
	if err != nil {
		return fmt.Errorf("could not read stored user: %w", err)
	}
	if !ok {
		return nil
	}

	var u models.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil || !u.Valid() {
		if rerr := s.persister.RemoveItem(config.UserStorageKey); rerr != nil {
			s.logger.Warn("Failed to remove malformed stored user", "error", rerr)
		}
		if err == nil {
			err = fmt.Errorf("incomplete user record")
		}
		return fmt.Errorf("%w: %w", ErrMalformedStoredState, err)
	}

	s.mu.Lock()
	s.user = &u
	s.authState = models.LoggedIn
	s.mu.Unlock()
	return nil
}

// --- Notifications ---

func (s *Store) Notify(kind models.NotificationKind, messageID string, data map[string]string) {
	s.notifier.Show(kind, messageID, data)
}

func (s *Store) Notification() (models.Notification, bool) {
	return s.notifier.Current()
}

func (s *Store) DismissNotification() {
	s.notifier.Dismiss()
}

// --- In-memory persister ---

// MemoryPersister keeps items in process memory. It backs stores that have no durable
// storage configured, and tests.
type MemoryPersister struct {
	mu    sync.Mutex
	items map[string]string
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{items: make(map[string]string)}
}

func (m *MemoryPersister) GetItem(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *MemoryPersister) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *MemoryPersister) RemoveItem(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}
