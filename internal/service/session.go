package service

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-velo/internal/mapview"
	"github.com/joeblew999/plat-velo/internal/style"
)

// SessionOptions configures every map session.
type SessionOptions struct {
	TTL           time.Duration
	FrameInterval time.Duration
	HitTolerance  float64
	Center        orb.Point
	Zoom          float64
	Icons         mapview.IconLoader
	Tooltips      mapview.TooltipRenderer
}

// Session is one client's map: a style document, the composer drawing on
// it and a bus carrying the document's changes.
type Session struct {
	ID       string
	Doc      *style.Document
	Composer *mapview.Composer
	Bus      *EventBus

	mu      sync.Mutex
	filter  FeatureFilter
	plotted bool
}

// Plot replaces the session's features with the ones matching filter. The
// camera is fitted on the first plot only.
func (s *Session) Plot(ctx context.Context, features *FeatureService, filter FeatureFilter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plotLocked(ctx, features, filter)
}

// Restyle applies new composer options and plots the current filter again.
func (s *Session) Restyle(ctx context.Context, features *FeatureService, opts mapview.Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.Composer.Restyle(opts); err != nil {
		return err
	}
	return s.plotLocked(ctx, features, s.filter)
}

func (s *Session) plotLocked(ctx context.Context, features *FeatureService, filter FeatureFilter) error {
	fc := features.Collection(filter)
	if err := s.Composer.Plot(ctx, fc); err != nil {
		return err
	}
	if !s.plotted {
		mapview.FitCamera(s.Doc, fc.Features)
		s.plotted = true
	}
	s.filter = filter
	return nil
}

// Pointer moves the pointer to at.
func (s *Session) Pointer(at orb.Point) {
	s.Doc.Move(at)
}

// Leave moves the pointer off the map.
func (s *Session) Leave() {
	s.Doc.Leave()
}

// Click clicks at a position and returns the popup it opened, if any.
func (s *Session) Click(at orb.Point) (style.Popup, bool) {
	s.Doc.Click(at)
	return s.Doc.OpenedPopup()
}

// Info summarises the session.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	filter := s.filter
	s.mu.Unlock()
	return SessionInfo{
		ID:        s.ID,
		Filter:    filter,
		Layers:    len(s.Doc.Layers()),
		Sources:   len(s.Doc.SourceIDs()),
		Animating: s.Composer.Animating(mapview.LayerWIP),
		Version:   s.Doc.Version(),
	}
}

func (s *Session) close() {
	s.Composer.Close()
	s.Bus.Close()
}

// SessionService owns the live map sessions. Sessions expire after being
// idle for the configured TTL; expiry stops their animation.
type SessionService struct {
	features *FeatureService
	styles   *StyleService
	opts     SessionOptions
	bus      *EventBus
	logger   *slog.Logger
	cache    *ttlcache.Cache[string, *Session]
}

// NewSessionService creates a session service and starts its expiry loop.
// bus receives session lifecycle events and may be nil.
func NewSessionService(features *FeatureService, styles *StyleService, opts SessionOptions, bus *EventBus) *SessionService {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}
	s := &SessionService{
		features: features,
		styles:   styles,
		opts:     opts,
		bus:      bus,
		logger:   slog.With("svc", "sessions"),
		cache: ttlcache.New[string, *Session](
			ttlcache.WithTTL[string, *Session](opts.TTL)),
	}
	s.cache.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *Session]) {
		item.Value().close()
		s.logger.Info("Session closed", "id", item.Key(), "reason", evictionReason(reason))
		s.publish("deleted", item.Key())
	})
	go s.cache.Start()
	return s
}

func evictionReason(r ttlcache.EvictionReason) string {
	switch r {
	case ttlcache.EvictionReasonDeleted:
		return "deleted"
	case ttlcache.EvictionReasonExpired:
		return "expired"
	default:
		return fmt.Sprintf("reason-%d", r)
	}
}

func (s *SessionService) publish(action, id string) {
	if s.bus != nil {
		s.bus.Publish(Event{Resource: "sessions", Action: action, ID: id})
	}
}

// Create opens a session and plots the features matching filter.
func (s *SessionService) Create(ctx context.Context, filter FeatureFilter) (*Session, error) {
	id := uuid.NewString()
	logger := s.logger.With("session", id)

	doc := style.New(style.Options{
		Name:         "plat-velo",
		HitTolerance: s.opts.HitTolerance,
		Center:       s.opts.Center,
		Zoom:         s.opts.Zoom,
	})
	copts := s.styles.Composer()
	copts.Clock = mapview.NewTickerClock(s.opts.FrameInterval)
	copts.Icons = s.opts.Icons
	copts.Tooltips = s.opts.Tooltips
	copts.Logger = logger

	sess := &Session{
		ID:       id,
		Doc:      doc,
		Composer: mapview.NewComposer(doc, copts),
		Bus:      NewEventBus(),
	}
	doc.OnChange(func(c style.Change) {
		sess.Bus.Publish(Event{Resource: "sessions", Action: c.Kind, ID: id, Data: c})
	})

	if err := sess.Plot(ctx, s.features, filter); err != nil {
		sess.close()
		return nil, fmt.Errorf("plotting session: %w", err)
	}
	s.cache.Set(id, sess, ttlcache.DefaultTTL)

	logger.Info("Session created", "layers", len(doc.Layers()))
	s.publish("created", id)
	return sess, nil
}

// Get returns a session and extends its lifetime.
func (s *SessionService) Get(id string) (*Session, error) {
	item := s.cache.Get(id)
	if item == nil {
		return nil, fmt.Errorf("session %q: %w", id, ErrSessionNotFound)
	}
	return item.Value(), nil
}

// Delete closes a session.
func (s *SessionService) Delete(id string) error {
	if !s.cache.Has(id) {
		return fmt.Errorf("session %q: %w", id, ErrSessionNotFound)
	}
	s.cache.Delete(id)
	return nil
}

// List describes every live session.
func (s *SessionService) List() []SessionInfo {
	var out []SessionInfo
	for _, item := range s.cache.Items() {
		out = append(out, item.Value().Info())
	}
	slices.SortFunc(out, func(a, b SessionInfo) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Restyle hands the current style configuration to every live session and
// replots it with its current filter.
func (s *SessionService) Restyle(ctx context.Context) {
	opts := s.styles.Composer()
	for _, item := range s.cache.Items() {
		sess := item.Value()
		if err := sess.Restyle(ctx, s.features, opts); err != nil {
			s.logger.Error("Restyle failed", "session", sess.ID, "error", err)
		}
	}
}

// Watch restyles the sessions on every style change received from events,
// until the channel is closed.
func (s *SessionService) Watch(ctx context.Context, events <-chan Event) {
	for ev := range events {
		if ev.Resource != "styles" {
			continue
		}
		s.logger.Debug("Style changed, restyling sessions", "action", ev.Action, "id", ev.ID)
		s.Restyle(ctx)
	}
}

// Stop closes every session and stops the expiry loop.
func (s *SessionService) Stop() {
	s.cache.DeleteAll()
	s.cache.Stop()
}
