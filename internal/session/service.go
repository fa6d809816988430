package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/splitcheck/internal/receipt"
	"github.com/zombor/splitcheck/internal/scanning"
)

const (
	// DefaultTTL is how long a session stays usable after creation
	DefaultTTL = 48 * time.Hour
	// DefaultMaxAge is the absolute age past which the sweeper always purges
	DefaultMaxAge = 7 * 24 * time.Hour
)

var (
	// ErrNothingSelected is returned when confirming an empty selection
	ErrNothingSelected = errors.New("nothing selected")
	// ErrUnknownItem is returned for item indices outside the receipt
	ErrUnknownItem = errors.New("unknown item")
	// ErrNoPhoto is returned when a session has no stored photo
	ErrNoPhoto = errors.New("no photo stored for this receipt")
)

// IDGenerator generates session keys
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// uuidGenerator generates random UUID keys
type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles receipt sessions
type Service struct {
	store       Store
	scanner     scanning.Scanner
	storage     Storage
	calculator  *receipt.Calculator
	idGenerator IDGenerator
	timeSource  TimeSource
	ttl         time.Duration
	maxAge      time.Duration
}

// NewService creates a new Service with UUID keys and the system clock.
// scanner and storage may be nil when uploads are not used.
func NewService(store Store, scanner scanning.Scanner, storage Storage, calc *receipt.Calculator) *Service {
	return NewServiceWithDeps(store, scanner, storage, calc, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(store Store, scanner scanning.Scanner, storage Storage, calc *receipt.Calculator, idGen IDGenerator, timeSrc TimeSource) *Service {
	if calc == nil {
		calc = receipt.NewCalculator()
	}
	return &Service{
		store:       store,
		scanner:     scanner,
		storage:     storage,
		calculator:  calc,
		idGenerator: idGen,
		timeSource:  timeSrc,
		ttl:         DefaultTTL,
		maxAge:      DefaultMaxAge,
	}
}

// SetExpiry overrides the session TTL and the sweeper's absolute age limit.
// Zero disables the respective check.
func (s *Service) SetExpiry(ttl, maxAge time.Duration) {
	s.ttl = ttl
	s.maxAge = maxAge
}

// Calculator returns the calculator used for confirmations
func (s *Service) Calculator() *receipt.Calculator {
	return s.calculator
}

// ExpiresAt returns when the session stops being served
func (s *Service) ExpiresAt(sess *Session) time.Time {
	if s.ttl <= 0 {
		return time.Time{}
	}
	return sess.CreatedAt.Add(s.ttl)
}

func (s *Service) expired(sess *Session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.CreatedAt) > s.ttl
}

func (s *Service) tooOld(sess *Session, now time.Time) bool {
	return s.maxAge > 0 && now.Sub(sess.CreatedAt) > s.maxAge
}

// Create stores a new session for r under key, replacing any previous
// session with that key. An empty key gets a generated one.
func (s *Service) Create(key string, r *receipt.Receipt) (*Session, error) {
	if r == nil {
		return nil, receipt.ErrNotRecognized
	}
	if key == "" {
		key = s.idGenerator.Generate()
	}

	sess := newSession(key, r, s.timeSource.Now())
	if err := s.store.Put(sess); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	slog.Info("Session created", "key", key, "items", len(r.Items))
	return sess, nil
}

// CreateFromRaw builds a receipt from recognizer output and stores it
func (s *Service) CreateFromRaw(key string, raw map[string]any) (*Session, receipt.Reconciliation, error) {
	r, err := receipt.Build(raw)
	if err != nil {
		return nil, receipt.Reconciliation{}, err
	}
	return s.createReconciled(key, r)
}

// CreateFromJSON is CreateFromRaw for recognizer JSON that has not been
// decoded yet. Numbers keep their exact decimal text.
func (s *Service) CreateFromJSON(key string, data []byte) (*Session, receipt.Reconciliation, error) {
	r, err := receipt.BuildJSON(data)
	if err != nil {
		return nil, receipt.Reconciliation{}, err
	}
	return s.createReconciled(key, r)
}

func (s *Service) createReconciled(key string, r *receipt.Receipt) (*Session, receipt.Reconciliation, error) {
	sess, err := s.Create(key, r)
	if err != nil {
		return nil, receipt.Reconciliation{}, err
	}
	return sess, s.reconcile(sess), nil
}

// ProcessReceipt saves an uploaded photo, recognizes it and opens a session.
// Nothing is kept when recognition fails.
func (s *Service) ProcessReceipt(ctx context.Context, filename string, data []byte, contentType string) (*Session, receipt.Reconciliation, error) {
	if s.scanner == nil {
		return nil, receipt.Reconciliation{}, fmt.Errorf("no scanner configured")
	}

	key := s.idGenerator.Generate()

	var photo string
	if s.storage != nil {
		var err error
		photo, err = s.storage.Save(key, filename, data)
		if err != nil {
			return nil, receipt.Reconciliation{}, fmt.Errorf("saving photo: %w", err)
		}
	}

	fail := func(err error) (*Session, receipt.Reconciliation, error) {
		s.deletePhoto(photo)
		return nil, receipt.Reconciliation{}, err
	}

	raw, err := s.scanner.ScanReceipt(ctx, data, contentType)
	if err != nil {
		slog.Error("Failed to scan receipt",
			"filename", filename,
			"content_type", contentType,
			"size_bytes", len(data),
			"error", err,
		)
		return fail(fmt.Errorf("%w: %v", receipt.ErrNotRecognized, err))
	}

	r, err := receipt.Build(raw)
	if err != nil {
		slog.Warn("Recognizer output held no items", "filename", filename, "error", err)
		return fail(err)
	}

	sess := newSession(key, r, s.timeSource.Now())
	sess.Photo = photo
	if err := s.store.Put(sess); err != nil {
		return fail(fmt.Errorf("saving session: %w", err))
	}

	slog.Info("Session created", "key", key, "items", len(r.Items), "filename", filename)
	return sess, s.reconcile(sess), nil
}

func (s *Service) reconcile(sess *Session) receipt.Reconciliation {
	rec := receipt.Reconcile(sess.Receipt)
	if rec.CheckAmount.Valid && !rec.Matches {
		slog.Warn("Recognized items do not add up to the printed total",
			"key", sess.Key,
			"calculated", rec.CalculatedTotal.String(),
			"printed", rec.CheckAmount.Decimal.String(),
		)
	}
	return rec
}

// Get returns a live session
func (s *Service) Get(key string) (*Session, error) {
	sess, err := s.store.Get(key)
	if err != nil {
		return nil, err
	}
	if s.expired(sess, s.timeSource.Now()) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return sess, nil
}

// update applies fn to a live session
func (s *Service) update(key string, fn func(*Session) error) error {
	now := s.timeSource.Now()
	return s.store.Update(key, func(sess *Session) error {
		if s.expired(sess, now) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fn(sess)
	})
}

// GetSelection returns the participant's current selection, empty if none
func (s *Service) GetSelection(key, participant string) (receipt.Selection, error) {
	sess, err := s.Get(key)
	if err != nil {
		return nil, err
	}
	return sess.Selections[participant].Snapshot(), nil
}

// SetSelectionCount sets how many units of an item the participant took,
// clamped to the item's quantity
func (s *Service) SetSelectionCount(key, participant string, index, count int) (receipt.Selection, error) {
	var out receipt.Selection
	err := s.update(key, func(sess *Session) error {
		item, ok := sess.Receipt.Item(index)
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownItem, index)
		}
		sel := sess.selection(participant)
		setCount(sel, index, clamp(count, item.Quantity))
		out = sel.Snapshot()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// IncrementSelection takes one more unit of an item, rolling back to zero
// once every unit is taken
func (s *Service) IncrementSelection(key, participant string, index int) (receipt.Selection, error) {
	var out receipt.Selection
	err := s.update(key, func(sess *Session) error {
		item, ok := sess.Receipt.Item(index)
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownItem, index)
		}
		sel := sess.selection(participant)
		next := sel[index] + 1
		if next > item.Quantity {
			next = 0
		}
		setCount(sel, index, next)
		out = sel.Snapshot()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func clamp(count, quantity int) int {
	switch {
	case count < 0:
		return 0
	case count > quantity:
		return quantity
	}
	return count
}

func setCount(sel receipt.Selection, index, count int) {
	if count == 0 {
		delete(sel, index)
		return
	}
	sel[index] = count
}

// StoreResult records a participant's result, overwriting any earlier one
func (s *Service) StoreResult(key, participant string, result *Result) error {
	if result == nil {
		return fmt.Errorf("storing result: nil result")
	}
	return s.update(key, func(sess *Session) error {
		sess.setResult(participant, result)
		return nil
	})
}

// Confirm computes the participant's share from their selection and stores it
func (s *Service) Confirm(key, participant string) (*Result, error) {
	var result *Result
	err := s.update(key, func(sess *Session) error {
		sel := sess.Selections[participant]
		if sel.Empty() {
			return ErrNothingSelected
		}

		split := s.calculator.Compute(sess.Receipt, sel)
		result = &Result{
			Total:       split.Total,
			Subtotal:    split.Subtotal,
			Breakdown:   split.Breakdown(),
			Selection:   sel.Snapshot(),
			ConfirmedAt: s.timeSource.Now(),
		}
		sess.setResult(participant, result)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Selection confirmed", "key", key, "participant", participant, "total", result.Total.String())
	return result, nil
}

// Results aggregates every participant's share of a live session
func (s *Service) Results(key string) (Summary, error) {
	sess, err := s.Get(key)
	if err != nil {
		return Summary{}, err
	}
	return Aggregate(sess, s.calculator), nil
}

// Delete removes a session and its photo
func (s *Service) Delete(key string) error {
	sess, err := s.store.Get(key)
	if err != nil {
		return err
	}
	if err := s.store.Delete(key); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	s.deletePhoto(sess.Photo)
	slog.Info("Session deleted", "key", key)
	return nil
}

// PhotoFile returns the stored photo of a live session and its content type
func (s *Service) PhotoFile(key string) ([]byte, string, error) {
	sess, err := s.Get(key)
	if err != nil {
		return nil, "", err
	}
	if sess.Photo == "" || s.storage == nil {
		return nil, "", ErrNoPhoto
	}

	data, err := s.storage.Get(sess.Photo)
	if err != nil {
		return nil, "", fmt.Errorf("reading photo: %w", err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(sess.Photo))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}

func (s *Service) deletePhoto(name string) {
	if name == "" || s.storage == nil {
		return
	}
	if err := s.storage.Delete(name); err != nil {
		slog.Warn("Failed to delete photo", "photo", name, "error", err)
	}
}

// Sweep purges sessions past their TTL or past the absolute age limit and
// returns how many were removed
func (s *Service) Sweep() (int, error) {
	now := s.timeSource.Now()
	photos := make(map[string]string)

	deleted, err := s.store.DeleteWhere(func(sess *Session) bool {
		if !s.expired(sess, now) && !s.tooOld(sess, now) {
			return false
		}
		photos[sess.Key] = sess.Photo
		return true
	})
	if err != nil {
		return 0, fmt.Errorf("sweeping sessions: %w", err)
	}

	for _, key := range deleted {
		s.deletePhoto(photos[key])
	}
	if len(deleted) > 0 {
		slog.Info("Swept expired sessions", "count", len(deleted))
	}
	return len(deleted), nil
}

// RunSweeper sweeps every interval until ctx is done
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(); err != nil {
				slog.Error("Session sweep failed", "error", err)
			}
		}
	}
}
