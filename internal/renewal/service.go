package renewal

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/remi-espie/AutoRenewPayByPhone/internal/config"
	"github.com/remi-espie/AutoRenewPayByPhone/internal/paybyphone"
	"github.com/remi-espie/AutoRenewPayByPhone/internal/repository"
	"github.com/remi-espie/AutoRenewPayByPhone/internal/ws"
)

// ErrUnknownAccount is returned for account names absent from configuration.
var ErrUnknownAccount = errors.New("renewal: unknown account")

// ErrInvalidDuration is returned for non-positive requested durations.
var ErrInvalidDuration = errors.New("renewal: duration must be positive minutes")

// Engine is the per-account PayByPhone pipeline the service drives.
// *paybyphone.Client implements it; tests substitute fakes.
type Engine interface {
	Bootstrap(ctx context.Context) error
	Ready() bool
	Park(ctx context.Context) (*paybyphone.ParkingSession, *paybyphone.Quote, error)
	Quote(ctx context.Context, minutes int) (*paybyphone.Quote, error)
	Check(ctx context.Context) (*paybyphone.ParkingSession, error)
	Vehicles(ctx context.Context) ([]paybyphone.Vehicle, error)
}

// EngineFactory builds an engine for one configured account.
type EngineFactory func(account config.Account) Engine

// Service owns the engines, the renewal state and the periodic sweep.
//
// All operations for one account are serialized through a per-account lock:
// an engine's credentials and token are private to that account, and two
// renewals for the same vehicle must never interleave. Different accounts
// proceed independently.
type Service struct {
	accounts map[string]config.Account
	factory  EngineFactory
	store    Store
	hub      *ws.Hub                       // optional
	history  *repository.HistoryRepository // optional
	logger   *zap.Logger
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	engines map[string]Engine
	locks   map[string]*sync.Mutex
}

// NewService builds the renewal service. hub and history may be nil.
func NewService(
	accounts []config.Account,
	factory EngineFactory,
	store Store,
	hub *ws.Hub,
	history *repository.HistoryRepository,
	interval time.Duration,
	logger *zap.Logger,
) *Service {
	if interval <= 0 {
		interval = time.Minute
	}
	byName := make(map[string]config.Account, len(accounts))
	for _, account := range accounts {
		byName[account.Name] = account
	}
	return &Service{
		accounts: byName,
		factory:  factory,
		store:    store,
		hub:      hub,
		history:  history,
		logger:   logger,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
		engines:  make(map[string]Engine),
		locks:    make(map[string]*sync.Mutex),
	}
}

func (s *Service) accountLock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[name] = lock
	}
	return lock
}

// engine returns the account's engine, bootstrapping it on first use, and
// reports whether it just did. Callers hold the account lock.
func (s *Service) engine(ctx context.Context, account config.Account) (Engine, bool, error) {
	s.mu.Lock()
	eng, ok := s.engines[account.Name]
	if !ok {
		eng = s.factory(account)
		s.engines[account.Name] = eng
	}
	s.mu.Unlock()

	if !eng.Ready() {
		if err := eng.Bootstrap(ctx); err != nil {
			return nil, false, err
		}
		return eng, true, nil
	}
	return eng, false, nil
}

// withAuthRetry runs fn and, on an upstream 401, re-bootstraps once and
// retries. The access token has no refresh flow, so an expired token is
// recovered exactly this way and nothing else is retried.
func (s *Service) withAuthRetry(ctx context.Context, account string, eng Engine, fn func() error) error {
	err := fn()
	if !errors.Is(err, paybyphone.ErrUnauthorized) {
		return err
	}
	s.logger.Warn("token rejected, re-running bootstrap", zap.String("account", account))
	if err := eng.Bootstrap(ctx); err != nil {
		return err
	}
	return fn()
}

// Park books one increment for the account and, when the booked window covers
// less than requested, records the continuation in the state store. The sweep
// picks it up; there is no detached timer task, so a pending renewal survives
// wherever the store does.
func (s *Service) Park(ctx context.Context, name string, minutes int) (*paybyphone.ParkingSession, error) {
	if minutes <= 0 {
		return nil, ErrInvalidDuration
	}
	account, ok := s.accounts[name]
	if !ok {
		return nil, ErrUnknownAccount
	}

	lock := s.accountLock(name)
	lock.Lock()
	defer lock.Unlock()

	eng, _, err := s.engine(ctx, account)
	if err != nil {
		return nil, err
	}

	var session *paybyphone.ParkingSession
	err = s.withAuthRetry(ctx, name, eng, func() error {
		var parkErr error
		session, _, parkErr = eng.Park(ctx)
		return parkErr
	})
	if err != nil {
		return nil, err
	}

	s.recordBooking(ctx, account, session, false)
	s.publish(ws.EventBooked, account, session)
	s.commitPlan(ctx, account, session, minutes)
	return session, nil
}

// commitPlan writes the continuation derived from a verified session. Caller
// holds the account lock; the current state is re-read right before writing
// and the write is skipped when a concurrent renewal already recorded a
// schedule at or past this session's start, so double renewal degrades to a
// no-op instead of stacking bookings.
func (s *Service) commitPlan(ctx context.Context, account config.Account, session *paybyphone.ParkingSession, requestedMinutes int) {
	next, remaining := Plan(session.StartTime, session.ExpireTime, requestedMinutes)

	current, exists, err := s.store.Get(ctx, account.Name)
	if err != nil {
		s.logger.Error("failed to read renewal state", zap.String("account", account.Name), zap.Error(err))
		return
	}
	if exists && !session.StartTime.After(current.NextCheck) {
		s.logger.Info("renewal already recorded for this window, keeping existing state",
			zap.String("account", account.Name),
			zap.Time("next_check", current.NextCheck),
		)
		return
	}

	if remaining <= 0 && !exists {
		// single booking satisfied the request, nothing to track
		return
	}

	state := State{
		Plate:            account.Plate,
		NextCheck:        next,
		RemainingMinutes: remaining,
		UpdatedAt:        s.now(),
	}
	if err := s.store.Put(ctx, account.Name, state); err != nil {
		s.logger.Error("failed to write renewal state", zap.String("account", account.Name), zap.Error(err))
		return
	}

	if remaining > 0 {
		s.logger.Info("continuation scheduled",
			zap.String("account", account.Name),
			zap.Time("next_check", next),
			zap.Int("remaining_minutes", remaining),
		)
		s.publish(ws.EventRenewalScheduled, account, state)
	}
}

// Run drives the periodic sweep until ctx is done.
func (s *Service) Run(ctx context.Context) {
	s.logger.Info("renewal sweep started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("renewal sweep stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep renews every account whose check time has arrived. A failed entry is
// left unchanged and retried on the next cycle; there is no backoff.
func (s *Service) sweep(ctx context.Context) {
	states, err := s.store.List(ctx)
	if err != nil {
		s.logger.Error("sweep: failed to list renewal states", zap.Error(err))
		return
	}

	now := s.now()
	for name, state := range states {
		if !state.Due(now) {
			continue
		}
		if err := s.renew(ctx, name, state); err != nil {
			s.logger.Error("sweep: renewal failed, retrying next cycle",
				zap.String("account", name),
				zap.Error(err),
			)
			if account, ok := s.accounts[name]; ok {
				s.publish(ws.EventRenewalFailed, account, map[string]string{"error": err.Error()})
			}
		}
	}
}

func (s *Service) renew(ctx context.Context, name string, state State) error {
	account, ok := s.accounts[name]
	if !ok {
		return ErrUnknownAccount
	}

	lock := s.accountLock(name)
	lock.Lock()
	defer lock.Unlock()

	eng, bootstrapped, err := s.engine(ctx, account)
	if err != nil {
		return err
	}
	// The token may have expired since the last pass; bootstrap again unless
	// the engine was freshly bootstrapped just now.
	if !bootstrapped {
		if err := eng.Bootstrap(ctx); err != nil {
			return err
		}
	}

	session, _, err := eng.Park(ctx)
	if err != nil {
		return err
	}

	s.recordBooking(ctx, account, session, true)
	s.publish(ws.EventRenewalDone, account, session)
	s.commitPlan(ctx, account, session, state.RemainingMinutes)
	return nil
}

// Check reports the account's current session, if any.
func (s *Service) Check(ctx context.Context, name string) (*paybyphone.ParkingSession, error) {
	account, ok := s.accounts[name]
	if !ok {
		return nil, ErrUnknownAccount
	}
	lock := s.accountLock(name)
	lock.Lock()
	defer lock.Unlock()

	eng, _, err := s.engine(ctx, account)
	if err != nil {
		return nil, err
	}
	var session *paybyphone.ParkingSession
	err = s.withAuthRetry(ctx, name, eng, func() error {
		var checkErr error
		session, checkErr = eng.Check(ctx)
		return checkErr
	})
	return session, err
}

// Quote prices the requested duration without booking anything.
func (s *Service) Quote(ctx context.Context, name string, minutes int) (*paybyphone.Quote, error) {
	if minutes <= 0 {
		return nil, ErrInvalidDuration
	}
	account, ok := s.accounts[name]
	if !ok {
		return nil, ErrUnknownAccount
	}
	lock := s.accountLock(name)
	lock.Lock()
	defer lock.Unlock()

	eng, _, err := s.engine(ctx, account)
	if err != nil {
		return nil, err
	}
	var quote *paybyphone.Quote
	err = s.withAuthRetry(ctx, name, eng, func() error {
		var quoteErr error
		quote, quoteErr = eng.Quote(ctx, minutes)
		return quoteErr
	})
	return quote, err
}

// Vehicles lists the vehicles on the account's PayByPhone profile.
func (s *Service) Vehicles(ctx context.Context, name string) ([]paybyphone.Vehicle, error) {
	account, ok := s.accounts[name]
	if !ok {
		return nil, ErrUnknownAccount
	}
	lock := s.accountLock(name)
	lock.Lock()
	defer lock.Unlock()

	eng, _, err := s.engine(ctx, account)
	if err != nil {
		return nil, err
	}
	var vehicles []paybyphone.Vehicle
	err = s.withAuthRetry(ctx, name, eng, func() error {
		var listErr error
		vehicles, listErr = eng.Vehicles(ctx)
		return listErr
	})
	return vehicles, err
}

// States returns a snapshot of all renewal entries.
func (s *Service) States(ctx context.Context) (map[string]State, error) {
	return s.store.List(ctx)
}

func (s *Service) recordBooking(ctx context.Context, account config.Account, session *paybyphone.ParkingSession, renewed bool) {
	if s.history == nil {
		return
	}
	record := &repository.BookingRecord{
		Account:      account.Name,
		Plate:        account.Plate,
		SessionID:    session.ParkingSessionID,
		Lot:          account.Lot,
		StartTime:    session.StartTime,
		ExpireTime:   session.ExpireTime,
		CostAmount:   session.TotalCost.Amount,
		CostCurrency: session.TotalCost.Currency,
		Renewed:      renewed,
	}
	if err := s.history.SaveBooking(ctx, record); err != nil {
		s.logger.Warn("failed to record booking", zap.String("account", account.Name), zap.Error(err))
	}
}

func (s *Service) publish(kind string, account config.Account, data interface{}) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(ws.Event{
		Type:    kind,
		Account: account.Name,
		Plate:   account.Plate,
		At:      s.now(),
		Data:    data,
	})
}
