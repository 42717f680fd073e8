package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chilly266futon/orderComposer/internal/balance"
	"github.com/chilly266futon/orderComposer/internal/composer"
	"github.com/chilly266futon/orderComposer/internal/domain"
	"github.com/chilly266futon/orderComposer/internal/events"
	"github.com/chilly266futon/orderComposer/internal/storage"
)

type BalanceLoader interface {
	Load(ctx context.Context, userID string) (*balance.Snapshot, error)
}

// Notifier delivers composer signals to the presentation layer. Forget is
// called once a session is closed, after its composer has settled.
type Notifier interface {
	Notify(sessionID string, event composer.Event)
	Haptic(sessionID string, style string)
	Forget(sessionID string)
}

const (
	defaultPublishTimeout = 5 * time.Second
	outboxSize            = 256
)

type Deps struct {
	Estimator composer.EstimationClient
	Orders    composer.OrderClient
	Balances  BalanceLoader
	Publisher events.Publisher
	Notifier  Notifier
	// PublishTimeout bounds each outcome event write.
	PublishTimeout time.Duration
}

// Service keeps one composer per open trading panel.
type Service struct {
	storage   *storage.SessionStorage
	estimator composer.EstimationClient
	orders    composer.OrderClient
	balances  BalanceLoader
	publisher events.Publisher
	notifier  Notifier
	cfg       composer.Config
	logger    *zap.Logger

	publishTimeout time.Duration
	outboxMu       sync.RWMutex
	outboxClosed   bool
	outbox         chan events.OrderEvent
	publisherDone  chan struct{}
}

func NewService(storage *storage.SessionStorage, cfg composer.Config, deps Deps, logger *zap.Logger) *Service {
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}

	if deps.PublishTimeout <= 0 {
		deps.PublishTimeout = defaultPublishTimeout
	}

	s := &Service{
		storage:        storage,
		estimator:      deps.Estimator,
		orders:         deps.Orders,
		balances:       deps.Balances,
		publisher:      deps.Publisher,
		notifier:       deps.Notifier,
		cfg:            cfg,
		logger:         logger,
		publishTimeout: deps.PublishTimeout,
		outbox:         make(chan events.OrderEvent, outboxSize),
		publisherDone:  make(chan struct{}),
	}
	go s.runPublisher()

	return s
}

// View is what the panel renders for a session.
type View struct {
	SessionID string
	Snapshot  composer.Snapshot
	// Balance is the available balance of the amount asset.
	Balance decimal.Decimal
}

func (s *Service) OpenSession(ctx context.Context, userID string, pair domain.TradingPair) (View, error) {
	id := uuid.NewString()
	log := s.logger.With(zap.String("session_id", id), zap.String("user_id", userID))

	holder := balance.NewHolder(nil)
	if s.balances != nil {
		snap, err := s.balances.Load(ctx, userID)
		if err != nil {
			log.Warn("balances unavailable, starting with empty balances", zap.Error(err))
		} else {
			holder.Store(snap)
			log.Debug("balances loaded", zap.Strings("assets", snap.Assets()))
		}
	}

	c := composer.New(s.cfg, pair, composer.Deps{
		Balances:  holder,
		Estimator: s.estimator,
		Orders:    s.orders,
		Haptic:    sessionHaptic{id: id, notifier: s.notifier},
		Observer:  s.observer(id, userID),
	}, log)

	session := &storage.Session{
		ID:        id,
		UserID:    userID,
		Composer:  c,
		Balances:  holder,
		CreatedAt: time.Now(),
	}
	session.Touch(session.CreatedAt)
	s.storage.Add(session)

	log.Info("session opened", zap.String("pair", pair.String()))

	return s.view(session), nil
}

func (s *Service) CloseSession(id string) error {
	session, exists := s.storage.Delete(id)
	if !exists {
		return domain.ErrSessionNotFound
	}

	s.close(session)

	s.logger.Info("session closed",
		zap.String("session_id", id),
		zap.String("user_id", session.UserID),
	)
	return nil
}

// UserSessions lists the open panels of a user.
func (s *Service) UserSessions(userID string) []View {
	sessions := s.storage.GetByUserID(userID)

	views := make([]View, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, s.view(session))
	}
	return views
}

func (s *Service) View(id string) (View, error) {
	session, err := s.session(id)
	if err != nil {
		return View{}, err
	}
	return s.view(session), nil
}

func (s *Service) RefreshBalances(ctx context.Context, id string) (View, error) {
	session, err := s.session(id)
	if err != nil {
		return View{}, err
	}
	session.Touch(time.Now())
	if s.balances == nil {
		return s.view(session), nil
	}

	snap, err := s.balances.Load(ctx, session.UserID)
	if err != nil {
		return View{}, err
	}
	session.Balances.Store(snap)

	return s.view(session), nil
}

// Submit starts a submission. With wait set it blocks until the attempt
// settles or ctx is done; otherwise the outcome is Pending and arrives
// through the Notifier.
func (s *Service) Submit(ctx context.Context, id string, wait bool) (View, composer.Outcome, error) {
	session, err := s.session(id)
	if err != nil {
		return View{}, composer.OutcomePending, err
	}

	session.Touch(time.Now())
	sub := session.Composer.Submit()

	outcome := composer.OutcomePending
	if wait {
		select {
		case <-sub.Done():
			outcome = sub.Outcome()
		case <-ctx.Done():
		}
	} else {
		select {
		case <-sub.Done():
			outcome = sub.Outcome()
		default:
		}
	}

	return s.view(session), outcome, nil
}

// Reap closes sessions with no activity for ttl.
func (s *Service) Reap(now time.Time, ttl time.Duration) int {
	reaped := 0
	for _, session := range s.storage.IdleSince(now.Add(-ttl)) {
		if _, exists := s.storage.Delete(session.ID); exists {
			s.close(session)
			reaped++
		}
	}
	if reaped > 0 {
		s.logger.Info("idle sessions closed", zap.Int("count", reaped))
	}
	return reaped
}

// Shutdown closes every open session and flushes pending outcome events.
// It is safe to call more than once.
func (s *Service) Shutdown() {
	for _, session := range s.storage.All() {
		if _, exists := s.storage.Delete(session.ID); exists {
			s.close(session)
		}
	}

	s.outboxMu.Lock()
	if !s.outboxClosed {
		s.outboxClosed = true
		close(s.outbox)
	}
	s.outboxMu.Unlock()

	<-s.publisherDone
}

// close settles the composer before the notifier drops the session, so no
// signal arrives for a forgotten session.
func (s *Service) close(session *storage.Session) {
	session.Composer.Close()
	if s.notifier != nil {
		s.notifier.Forget(session.ID)
	}
}

func (s *Service) session(id string) (*storage.Session, error) {
	session, exists := s.storage.GetByID(id)
	if !exists {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *Service) view(session *storage.Session) View {
	snap := session.Composer.Snapshot()
	return View{
		SessionID: session.ID,
		Snapshot:  snap,
		Balance:   session.Balances.Get(snap.AmountAsset),
	}
}

func (s *Service) observer(sessionID, userID string) composer.Observer {
	return func(ev composer.Event) {
		if s.notifier != nil {
			s.notifier.Notify(sessionID, ev)
		}

		if ev.Kind == composer.EventDraftChanged || ev.Snapshot.Draft.LastError.IsValidation() {
			return
		}
		s.publish(sessionID, userID, ev)
	}
}

func (s *Service) publish(sessionID, userID string, ev composer.Event) {
	draft := ev.Snapshot.Draft
	req := draft.Request(ev.Snapshot.Pair)

	event := events.OrderEvent{
		SessionID: sessionID,
		UserID:    userID,
		Outcome:   outcomeName(ev),
		Code:      string(draft.LastError),
		Side:      draft.Side.String(),
		OrderType: draft.OrderType.String(),
		Amount:    draft.Amount.String(),
		Pair:      req.Pair,
		Timestamp: time.Now().UTC(),
	}
	if req.Price != nil {
		event.Price = req.Price.String()
	}

	s.outboxMu.RLock()
	defer s.outboxMu.RUnlock()

	if s.outboxClosed {
		return
	}
	select {
	case s.outbox <- event:
	default:
		s.logger.Warn("order event dropped, outbox full",
			zap.String("session_id", sessionID),
			zap.String("outcome", event.Outcome),
		)
	}
}

// runPublisher writes outcome events in order, off the composer goroutines.
func (s *Service) runPublisher() {
	defer close(s.publisherDone)

	for event := range s.outbox {
		ctx, cancel := context.WithTimeout(context.Background(), s.publishTimeout)
		err := s.publisher.Publish(ctx, event)
		cancel()

		if err != nil {
			s.logger.Error("failed to publish order event",
				zap.String("session_id", event.SessionID),
				zap.String("outcome", event.Outcome),
				zap.Error(err),
			)
		}
	}
}

func outcomeName(ev composer.Event) string {
	switch ev.Kind {
	case composer.EventSubmitted:
		return composer.OutcomeAccepted.String()
	case composer.EventSubmitUnknown:
		return composer.OutcomeUnknown.String()
	}
	if ev.Snapshot.Draft.LastError.IsTransport() {
		return composer.OutcomeFailed.String()
	}
	return composer.OutcomeRejected.String()
}

type sessionHaptic struct {
	id       string
	notifier Notifier
}

func (h sessionHaptic) ImpactOccurred(style string) {
	if h.notifier != nil {
		h.notifier.Haptic(h.id, style)
	}
}
