package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/logger"
	"github.com/google/uuid"

	"prizedraw/internal/draw"
	"prizedraw/internal/models"
	"prizedraw/internal/privacy"
	"prizedraw/internal/source"
)

var (
	ErrNoActiveDraw = errors.New("no active draw")
	ErrInvalidCount = errors.New("invalid winner count")
	ErrInvalidDepth = errors.New("invalid reveal depth")
	ErrInvalidEntry = errors.New("invalid entry")
	ErrNoSource     = errors.New("no comment store configured")
)

// Publisher receives every view change of a tenant's draw.
type Publisher interface {
	Publish(tenant string, v any)
}

// Options configures a DrawService.
type Options struct {
	MaxWinners int
	MaxDepth   int
	SessionTTL time.Duration
	// Rand drives selection. It is only used under the service lock.
	Rand      draw.Rand
	Source    source.PoolSource
	Publisher Publisher
}

// DrawSession holds the data of a single tenant.
type DrawSession struct {
	Pool []models.Entry
	// Reveal is nil until the first draw. Starting a draw replaces it.
	Reveal     *draw.Reveal
	Visibility privacy.FieldVisibility
	// Log holds every entry shown in the active draw, in reveal order.
	Log          []LoggedStep
	LastActivity time.Time
}

// LoggedStep is a revealed entry with the visibility it had when the
// operator moved on. The visibility of the last step is the session's.
type LoggedStep struct {
	Step       models.RevealStep
	Visibility privacy.FieldVisibility
}

// DrawService manages the draw sessions of all tenants.
type DrawService struct {
	mu       sync.Mutex
	sessions map[string]*DrawSession
	opts     Options
}

// NewDrawService creates and initializes a new DrawService.
func NewDrawService(opts Options) *DrawService {
	if opts.MaxWinners <= 0 {
		opts.MaxWinners = 3
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = time.Hour
	}
	if opts.Rand == nil {
		opts.Rand = draw.NewRand(0)
	}
	return &DrawService{
		sessions: make(map[string]*DrawSession),
		opts:     opts,
	}
}

// getSession returns a session for a tenant, creating one if it doesn't exist.
// The caller must hold s.mu.
func (s *DrawService) getSession(tenantID string) *DrawSession {
	session, exists := s.sessions[tenantID]
	if !exists {
		session = &DrawSession{
			Pool:       make([]models.Entry, 0),
			Visibility: privacy.Hidden(),
		}
		s.sessions[tenantID] = session
	}
	session.LastActivity = time.Now()
	return session
}

// Attempts lists the reveal depths an operator may choose.
func (s *DrawService) Attempts() []models.AttemptOption {
	options := make([]models.AttemptOption, 0, s.opts.MaxDepth+1)
	for depth := 0; depth <= s.opts.MaxDepth; depth++ {
		label := models.AttemptLabel(depth)
		if label == "" {
			label = "attempt #" + strconv.Itoa(depth+1)
		}
		options = append(options, models.AttemptOption{Depth: depth, Label: label})
	}
	return options
}

// GetPool returns a copy of the tenant's pool.
func (s *DrawService) GetPool(tenantID string) []models.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Entry{}, s.getSession(tenantID).Pool...)
}

// SetPool replaces the tenant's pool. A running reveal keeps its own result.
func (s *DrawService) SetPool(tenantID string, entries []models.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getSession(tenantID).Pool = append([]models.Entry{}, entries...)
}

// AddEntry appends a single entry. Manually added entries need a participant.
func (s *DrawService) AddEntry(tenantID string, entry models.Entry) error {
	if strings.TrimSpace(entry.ParticipantID) == "" {
		return fmt.Errorf("%w: participant id is required", ErrInvalidEntry)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	session := s.getSession(tenantID)
	session.Pool = append(session.Pool, entry)
	return nil
}

// ImportCSV appends the entries read from r and returns how many were added.
// On a read error the pool is left unchanged.
func (s *DrawService) ImportCSV(tenantID string, r io.Reader) (int, error) {
	entries, err := source.ReadCSV(r)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	session := s.getSession(tenantID)
	session.Pool = append(session.Pool, entries...)
	return len(entries), nil
}

// LoadPool replaces the tenant's pool with the comments of ref.
func (s *DrawService) LoadPool(ctx context.Context, tenantID, ref string) (int, error) {
	if s.opts.Source == nil {
		return 0, ErrNoSource
	}
	entries, err := s.opts.Source.LoadPool(ctx, ref)
	if err != nil {
		return 0, fmt.Errorf("load pool %q: %w", ref, err)
	}

	s.SetPool(tenantID, entries)
	logger.Infof("Loaded %d entries from %q for tenant %s", len(entries), ref, tenantID)
	return len(entries), nil
}

// StartDraw selects up to count winners from the tenant's pool and prepares
// their reveal with the winner at the depth attempt. Any previous draw of
// the tenant is discarded.
func (s *DrawService) StartDraw(tenantID string, count, depth int) (models.DrawView, error) {
	if count < 0 || count > s.opts.MaxWinners {
		return models.DrawView{}, fmt.Errorf("%w: %d not in [0, %d]", ErrInvalidCount, count, s.opts.MaxWinners)
	}
	if depth < 0 || depth > s.opts.MaxDepth {
		return models.DrawView{}, fmt.Errorf("%w: %d not in [0, %d]", ErrInvalidDepth, depth, s.opts.MaxDepth)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	session := s.getSession(tenantID)

	result := models.DrawResult{
		ID:             uuid.NewString(),
		Selected:       draw.Select(session.Pool, count, s.opts.Rand),
		RequestedCount: count,
		PoolSize:       len(session.Pool),
		DrawnAt:        time.Now(),
	}
	reveal, err := draw.NewReveal(result, depth)
	if err != nil {
		logger.Errorf("draw %s for tenant %s: %v", result.ID, tenantID, err)
		return models.DrawView{}, err
	}

	session.Reveal = &reveal
	session.Visibility = privacy.Hidden()
	session.Log = nil

	if reveal.Phase() == draw.PhaseEmpty {
		logger.Infof("draw %s for tenant %s: no eligible participants among %d entries", result.ID, tenantID, len(session.Pool))
	} else {
		logger.Infof("draw %s for tenant %s: selected %d of %d requested, winner at attempt #%d",
			result.ID, tenantID, len(result.Selected), count, reveal.TargetIndex()+1)
	}

	view := s.view(session)
	s.publish(tenantID, view)
	return view, nil
}

// Advance moves the tenant's reveal one step.
func (s *DrawService) Advance(tenantID string) (models.DrawView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session := s.getSession(tenantID)
	if session.Reveal == nil {
		return models.DrawView{}, ErrNoActiveDraw
	}

	before := session.Reveal.Current()
	next, step := session.Reveal.Advance()
	session.Reveal = &next

	if step.Position != before.Position {
		if n := len(session.Log); n > 0 {
			session.Log[n-1].Visibility = session.Visibility
		}
		session.Log = append(session.Log, LoggedStep{Step: step})
		session.Visibility = privacy.Hidden()

		logger.Infof("draw %s for tenant %s: attempt #%d %s participant %s",
			next.Result().ID, tenantID, step.Position, step.Outcome, step.Entry.ParticipantID)
	}

	view := s.view(session)
	s.publish(tenantID, view)
	return view, nil
}

// Current returns the tenant's draw view without changing it.
func (s *DrawService) Current(tenantID string) (models.DrawView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session := s.getSession(tenantID)
	if session.Reveal == nil {
		return models.DrawView{}, ErrNoActiveDraw
	}
	return s.view(session), nil
}

// ToggleField flips the visibility of one field of the displayed entry.
func (s *DrawService) ToggleField(tenantID string, kind privacy.FieldKind) (models.DrawView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session := s.getSession(tenantID)
	if session.Reveal == nil {
		return models.DrawView{}, ErrNoActiveDraw
	}

	session.Visibility = session.Visibility.Toggle(kind)
	view := s.view(session)
	s.publish(tenantID, view)
	return view, nil
}

// ExportCSV writes the entries revealed so far, masked as they were shown.
func (s *DrawService) ExportCSV(tenantID string, w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session := s.getSession(tenantID)
	if session.Reveal == nil {
		return ErrNoActiveDraw
	}

	// BOM so spreadsheet apps pick UTF-8.
	if _, err := w.Write([]byte("\xef\xbb\xbf")); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := []string{"draw_id", "attempt", "outcome"}
	for _, k := range privacy.Kinds {
		header = append(header, string(k))
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	drawID := session.Reveal.Result().ID
	for i, logged := range session.Log {
		visibility := logged.Visibility
		if i == len(session.Log)-1 {
			visibility = session.Visibility
		}
		fields := maskedFields(logged.Step.Entry, visibility)

		row := []string{drawID, strconv.Itoa(logged.Step.Position), string(logged.Step.Outcome)}
		for _, k := range privacy.Kinds {
			row = append(row, fields[string(k)])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// CleanUpInactiveSessions removes sessions idle for longer than the TTL.
func (s *DrawService) CleanUpInactiveSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for tenantID, session := range s.sessions {
		if time.Since(session.LastActivity) > s.opts.SessionTTL {
			logger.Infof("Evicting inactive session for tenant: %s", tenantID)
			delete(s.sessions, tenantID)
		}
	}
}

// ClearSession removes all data associated with a specific tenant.
func (s *DrawService) ClearSession(tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, tenantID)
	logger.Infof("Cleared session for tenant: %s", tenantID)
}

func (s *DrawService) publish(tenantID string, view models.DrawView) {
	if s.opts.Publisher != nil {
		s.opts.Publisher.Publish(tenantID, view)
	}
}

// view renders the session's reveal. The caller must hold s.mu and ensure
// session.Reveal is set.
func (s *DrawService) view(session *DrawSession) models.DrawView {
	reveal := *session.Reveal
	result := reveal.Result()
	step := reveal.Current()

	v := models.DrawView{
		DrawID:         result.ID,
		State:          stateName(reveal),
		Outcome:        step.Outcome,
		Position:       step.Position,
		Attempt:        models.AttemptLabel(reveal.Depth()),
		TargetPosition: reveal.TargetIndex() + 1,
		SelectedCount:  len(result.Selected),
	}
	if step.Outcome == models.OutcomeNonWinner || step.Outcome == models.OutcomeWinner {
		v.Fields = maskedFields(step.Entry, session.Visibility)
		v.Visibility = session.Visibility.Strings()
	}
	return v
}

func stateName(r draw.Reveal) string {
	if r.Phase() == draw.PhaseRevealing && !r.Started() {
		return "awaiting"
	}
	return r.Phase().String()
}

func maskedFields(e models.Entry, visibility privacy.FieldVisibility) map[string]string {
	date := ""
	if e.Timestamp != nil {
		date = e.Timestamp.Format("2006-01-02 15:04")
	}
	return map[string]string{
		string(privacy.Name):    privacy.Mask(e.DisplayName, privacy.Name, visibility[privacy.Name]),
		string(privacy.Email):   privacy.Mask(e.ContactHandle, privacy.Email, visibility[privacy.Email]),
		string(privacy.Comment): privacy.Mask(e.ContentSnippet, privacy.Comment, visibility[privacy.Comment]),
		string(privacy.Date):    privacy.Mask(date, privacy.Date, visibility[privacy.Date]),
	}
}
