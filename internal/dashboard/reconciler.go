// Package dashboard holds the mechanic console's view of bookings, spare
// parts and notifications and keeps it in step with the backend and the
// realtime channel.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jetsetgo/workshop-console/internal/config"
	"github.com/jetsetgo/workshop-console/internal/models"
	"github.com/jetsetgo/workshop-console/internal/realtime"
)

const (
	DefaultHighlightTTL     = 15 * time.Second
	DefaultNotificationsCap = 100
)

var (
	ErrClosed         = errors.New("dashboard closed")
	ErrRunning        = errors.New("dashboard loop already running")
	ErrUnknownBooking = errors.New("booking not found")
)

// Remote is the slice of the backend the dashboard reads and mutates
type Remote interface {
	GetProfile(ctx context.Context) (*models.Profile, error)
	ListBookings(ctx context.Context) ([]models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id string, status models.BookingStatus) error
	ListSpareParts(ctx context.Context) ([]models.SparePartRequest, error)
	CreateSparePart(ctx context.Context, req models.SparePartRequest) (*models.SparePartRequest, error)
	SetShopOpen(ctx context.Context, open bool) error
}

// Reconciler owns the dashboard state. All transitions run on the loop
// goroutine started by Run; readers take the latest snapshot lock-free.
type Reconciler struct {
	remote       Remote
	pageSize     int
	highlightTTL time.Duration
	notifCap     int
	now          func() time.Time

	state atomic.Pointer[Snapshot]

	ops      chan func()
	inbound  chan realtime.Event
	expiries chan expiry
	reloads  chan reloadResult

	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	running   atomic.Bool
	teardown  sync.Once

	attachMu    sync.Mutex
	attachments map[*attachment]struct{}

	// loop-owned
	loopCtx      context.Context
	timers       map[string]highlightTimer
	timerGen     uint64
	reloading    bool
	reloadQueued bool
}

type highlightTimer struct {
	timer *time.Timer
	gen   uint64
}

type expiry struct {
	id  string
	gen uint64
}

type reloadResult struct {
	seq      uint64
	bookings []models.Booking
	err      error
}

// NewReconciler creates a reconciler over remote. Call Run to start it.
func NewReconciler(remote Remote, cfg *config.DashboardConfig) *Reconciler {
	r := &Reconciler{
		remote:       remote,
		pageSize:     DefaultPageSize,
		highlightTTL: DefaultHighlightTTL,
		notifCap:     DefaultNotificationsCap,
		now:          time.Now,
		ops:          make(chan func()),
		inbound:      make(chan realtime.Event, 64),
		expiries:     make(chan expiry, 16),
		reloads:      make(chan reloadResult, 1),
		done:         make(chan struct{}),
		stopped:      make(chan struct{}),
		attachments:  make(map[*attachment]struct{}),
		timers:       make(map[string]highlightTimer),
	}
	if cfg != nil {
		if cfg.PageSize > 0 {
			r.pageSize = cfg.PageSize
		}
		if cfg.HighlightTTL > 0 {
			r.highlightTTL = cfg.HighlightTTL
		}
		if cfg.NotificationsCap > 0 {
			r.notifCap = cfg.NotificationsCap
		}
	}
	r.state.Store(&Snapshot{Highlighted: map[string]struct{}{}})
	return r
}

// Snapshot returns the current state
func (r *Reconciler) Snapshot() Snapshot {
	return *r.state.Load()
}

// PageSize is the number of rows per list page
func (r *Reconciler) PageSize() int {
	return r.pageSize
}

// Run applies transitions until ctx is cancelled or Close is called
func (r *Reconciler) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	r.loopCtx = ctx
	defer close(r.stopped)
	defer r.shutdown()
	defer cancel()

	log.Debug("Dashboard loop started")
	for {
		select {
		case <-ctx.Done():
			r.closeOnce.Do(func() { close(r.done) })
			return ctx.Err()
		case <-r.done:
			return nil
		case op := <-r.ops:
			op()
		case e := <-r.inbound:
			r.ingest(e)
		case x := <-r.expiries:
			r.expire(x)
		case res := <-r.reloads:
			r.reloaded(res)
		}
	}
}

// Close detaches every channel, cancels pending highlight timers and stops
// the loop. Events arriving afterwards are ignored.
func (r *Reconciler) Close() {
	r.closeOnce.Do(func() { close(r.done) })
	if r.running.Load() {
		<-r.stopped
		return
	}
	r.shutdown()
}

func (r *Reconciler) shutdown() {
	r.teardown.Do(func() {
		r.attachMu.Lock()
		attached := make([]*attachment, 0, len(r.attachments))
		for a := range r.attachments {
			attached = append(attached, a)
		}
		r.attachMu.Unlock()
		for _, a := range attached {
			a.detach()
		}

		for id, ht := range r.timers {
			ht.timer.Stop()
			delete(r.timers, id)
		}
		log.Debug("Dashboard loop stopped")
	})
}

func (r *Reconciler) store(s Snapshot) {
	r.state.Store(&s)
}

func (r *Reconciler) current() Snapshot {
	return *r.state.Load()
}

// do runs fn on the loop goroutine and waits for it
func (r *Reconciler) do(fn func()) error {
	finished := make(chan struct{})
	op := func() {
		fn()
		close(finished)
	}
	select {
	case r.ops <- op:
	case <-r.done:
		return ErrClosed
	}
	<-finished
	return nil
}

// apply runs t on the loop and returns the snapshot it produced
func (r *Reconciler) apply(t Transition) (Snapshot, error) {
	var next Snapshot
	err := r.do(func() {
		next = t(r.current())
		r.store(next)
	})
	if err != nil {
		return r.Snapshot(), err
	}
	return next, nil
}

// Load fetches profile, bookings and spare parts together. If any fetch
// fails the state is left as it was and one error is reported.
func (r *Reconciler) Load(ctx context.Context) error {
	startSeq := r.Snapshot().mutationSeq

	var (
		profile  *models.Profile
		bookings []models.Booking
		parts    []models.SparePartRequest
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := r.remote.GetProfile(gctx)
		if err != nil {
			return fmt.Errorf("profile: %w", err)
		}
		profile = p
		return nil
	})
	g.Go(func() error {
		bs, err := r.remote.ListBookings(gctx)
		if err != nil {
			return fmt.Errorf("bookings: %w", err)
		}
		bookings = bs
		return nil
	})
	g.Go(func() error {
		ps, err := r.remote.ListSpareParts(gctx)
		if err != nil {
			return fmt.Errorf("spare parts: %w", err)
		}
		parts = ps
		return nil
	})
	if err := g.Wait(); err != nil {
		err = fmt.Errorf("load dashboard: %w", err)
		r.report("Could not load the dashboard", models.NotificationService, err)
		return err
	}

	stale := false
	_, err := r.apply(func(s Snapshot) Snapshot {
		if profile != nil {
			s.Profile = profile
		}
		s.SpareParts = parts
		if s.mutationSeq == startSeq {
			s.Bookings = bookings
		} else {
			stale = true
		}
		s.LoadedAt = r.now()
		return s
	})
	if err != nil {
		return err
	}
	if stale {
		r.Reload()
	}

	log.WithFields(log.Fields{
		"bookings":    len(bookings),
		"spare_parts": len(parts),
	}).Info("Dashboard loaded")
	return nil
}

// Reload refreshes the bookings collection in the background
func (r *Reconciler) Reload() {
	_ = r.do(r.startReload)
}

// UpdateStatus moves a booking to status. The local booking changes only
// after the backend accepted the change.
func (r *Reconciler) UpdateStatus(ctx context.Context, id string, status models.BookingStatus) (Snapshot, error) {
	if !models.IsValidBookingStatus(status) {
		return r.Snapshot(), models.NewValidationError("status", "unknown booking status %q", status)
	}
	if _, ok := r.Snapshot().Booking(id); !ok {
		return r.Snapshot(), ErrUnknownBooking
	}

	if err := r.remote.UpdateBookingStatus(ctx, id, status); err != nil {
		r.report("Could not update booking status", models.NotificationBooking, err)
		return r.Snapshot(), err
	}

	log.WithFields(log.Fields{
		"booking_id": id,
		"status":     status,
	}).Info("Booking status updated")
	return r.apply(withBookingStatus(id, status))
}

// SparePartDraft is a spare-part request as entered in the console
type SparePartDraft struct {
	PartName     string `json:"partName"`
	CarModel     string `json:"carModel"`
	Quantity     int    `json:"quantity"`
	Urgency      string `json:"urgency"`
	SerialNumber string `json:"serialNumber"`
	ServiceID    string `json:"serviceId"`
}

// Validate turns the draft into a pending request
func (d SparePartDraft) Validate(now time.Time) (models.SparePartRequest, error) {
	name := strings.TrimSpace(d.PartName)
	if name == "" {
		return models.SparePartRequest{}, models.NewValidationError("partName", "part name is required")
	}
	model := strings.TrimSpace(d.CarModel)
	if model == "" {
		return models.SparePartRequest{}, models.NewValidationError("carModel", "car model is required")
	}
	if d.Quantity <= 0 {
		return models.SparePartRequest{}, models.NewValidationError("quantity", "quantity must be at least 1")
	}
	urgency := models.Urgency(strings.ToLower(strings.TrimSpace(d.Urgency)))
	if urgency == "" {
		urgency = models.UrgencyMedium
	}
	if !models.IsValidUrgency(urgency) {
		return models.SparePartRequest{}, models.NewValidationError("urgency", "unknown urgency %q", d.Urgency)
	}

	return models.SparePartRequest{
		PartName:     name,
		CarModel:     model,
		Quantity:     d.Quantity,
		Urgency:      urgency,
		SerialNumber: strings.TrimSpace(d.SerialNumber),
		Status:       models.SparePartPending,
		RequestedAt:  now,
		ServiceID:    strings.TrimSpace(d.ServiceID),
	}, nil
}

// RequestSparePart submits a spare-part request and adds it to the list
func (r *Reconciler) RequestSparePart(ctx context.Context, draft SparePartDraft) (models.SparePartRequest, error) {
	req, err := draft.Validate(r.now())
	if err != nil {
		return models.SparePartRequest{}, err
	}

	created, err := r.remote.CreateSparePart(ctx, req)
	if err != nil {
		r.report("Could not request spare part", models.NotificationSparePart, err)
		return models.SparePartRequest{}, err
	}
	if created != nil {
		req = *created
	}

	if _, err := r.apply(withSparePart(req)); err != nil {
		return req, err
	}
	log.WithFields(log.Fields{
		"part":     req.PartName,
		"quantity": req.Quantity,
		"urgency":  req.Urgency,
	}).Info("Spare part requested")
	return req, nil
}

// SetShopOpen toggles whether the shop takes bookings
func (r *Reconciler) SetShopOpen(ctx context.Context, open bool) error {
	if err := r.remote.SetShopOpen(ctx, open); err != nil {
		r.report("Could not change shop status", models.NotificationShop, err)
		return err
	}
	msg := "Shop is now closed"
	if open {
		msg = "Shop is now open"
	}
	_, err := r.apply(func(s Snapshot) Snapshot {
		s = withShopOpen(open)(s)
		return withNotification(r.notification(msg, models.NotificationShop, ""), r.notifCap)(s)
	})
	return err
}

// SetProfile replaces the profile after a remote profile change
func (r *Reconciler) SetProfile(p models.Profile) error {
	_, err := r.apply(withProfile(p))
	return err
}

// MarkRead marks one notification read; an empty id marks all
func (r *Reconciler) MarkRead(id string) error {
	_, err := r.apply(withRead(id))
	return err
}

// Dismiss drops a booking from the highlight set before its timer fires
func (r *Reconciler) Dismiss(id string) error {
	return r.do(func() {
		if ht, ok := r.timers[id]; ok {
			ht.timer.Stop()
			delete(r.timers, id)
		}
		r.store(withoutHighlight(id)(r.current()))
	})
}

// Bookings returns a filtered page of bookings
func (r *Reconciler) Bookings(query, status string, page int) Page[models.Booking] {
	return Paginate(FilterBookings(r.Snapshot().Bookings, query, status), page, r.pageSize)
}

// SpareParts returns a filtered page of spare-part requests
func (r *Reconciler) SpareParts(query, status string, page int) Page[models.SparePartRequest] {
	return Paginate(FilterSpareParts(r.Snapshot().SpareParts, query, status), page, r.pageSize)
}

// Revenue derives revenue figures from the current bookings
func (r *Reconciler) Revenue() Revenue {
	return ComputeRevenue(r.Snapshot().Bookings, r.now())
}

// report logs err and posts it to the notification feed
func (r *Reconciler) report(msg string, kind models.NotificationType, err error) {
	log.WithError(err).Error(msg)
	n := r.notification(fmt.Sprintf("%s: %v", msg, err), kind, "")
	select {
	case r.ops <- func() { r.store(withNotification(n, r.notifCap)(r.current())) }:
	case <-r.done:
	}
}

func (r *Reconciler) notification(msg string, kind models.NotificationType, bookingID string) models.NotificationEvent {
	return models.NotificationEvent{
		ID:        uuid.New().String(),
		Message:   msg,
		Type:      kind,
		Timestamp: r.now(),
		BookingID: bookingID,
	}
}

// ingest handles one booking-related realtime event on the loop
func (r *Reconciler) ingest(e realtime.Event) {
	ref := e.Payload.BookingRef()
	msg, kind := describe(e)

	s := withNotification(r.notification(msg, kind, ref), r.notifCap)(r.current())
	if ref != "" && !s.IsHighlighted(ref) {
		s = withHighlight(ref)(s)
		r.schedule(ref)
	}
	r.store(s)

	log.WithFields(log.Fields{
		"event":      e.Name,
		"booking_id": ref,
	}).Info("Realtime event received")
	r.startReload()
}

// describe renders the toast text for an event
func describe(e realtime.Event) (string, models.NotificationType) {
	name := strings.TrimSpace(e.Payload.CustomerName)
	switch e.Name {
	case realtime.EventNewBooking:
		if name != "" {
			return fmt.Sprintf("New booking from %s!", name), models.NotificationBooking
		}
		return "New booking received!", models.NotificationBooking
	case realtime.EventBookingUpdate:
		if name != "" {
			return fmt.Sprintf("Booking updated for %s", name), models.NotificationBooking
		}
		return "Booking updated", models.NotificationBooking
	default:
		kind := models.NotificationType(e.Payload.Type)
		if _, err := models.DestinationView(kind); err != nil {
			kind = models.NotificationBooking
		}
		switch {
		case e.Payload.Message != "":
			return e.Payload.Message, kind
		case name != "":
			return fmt.Sprintf("New notification from %s", name), kind
		default:
			return "New notification", kind
		}
	}
}

// schedule arms the expiry timer for a freshly highlighted booking
func (r *Reconciler) schedule(id string) {
	r.timerGen++
	gen := r.timerGen
	t := time.AfterFunc(r.highlightTTL, func() {
		select {
		case r.expiries <- expiry{id: id, gen: gen}:
		case <-r.done:
		}
	})
	r.timers[id] = highlightTimer{timer: t, gen: gen}
}

func (r *Reconciler) expire(x expiry) {
	ht, ok := r.timers[x.id]
	if !ok || ht.gen != x.gen {
		return
	}
	delete(r.timers, x.id)
	r.store(withoutHighlight(x.id)(r.current()))
}

// startReload fetches bookings off the loop. Concurrent requests collapse
// into one follow-up fetch.
func (r *Reconciler) startReload() {
	if r.reloading {
		r.reloadQueued = true
		return
	}
	r.reloading = true

	ctx := r.loopCtx
	seq := r.current().mutationSeq
	go func() {
		bookings, err := r.remote.ListBookings(ctx)
		select {
		case r.reloads <- reloadResult{seq: seq, bookings: bookings, err: err}:
		case <-r.done:
		}
	}()
}

// reloaded applies a finished reload unless a local mutation landed while
// it was in flight, in which case it fetches again.
func (r *Reconciler) reloaded(res reloadResult) {
	r.reloading = false
	cur := r.current()

	switch {
	case res.err != nil:
		log.WithError(res.err).Error("Bookings reload failed")
		n := r.notification(fmt.Sprintf("Could not refresh bookings: %v", res.err), models.NotificationBooking, "")
		r.store(withNotification(n, r.notifCap)(cur))
	case res.seq != cur.mutationSeq:
		log.WithFields(log.Fields{
			"started_at": res.seq,
			"current":    cur.mutationSeq,
		}).Debug("Discarding stale bookings reload")
		r.reloadQueued = true
	default:
		r.store(withBookings(res.bookings)(cur))
		log.WithField("bookings", len(res.bookings)).Debug("Bookings reloaded")
	}

	if r.reloadQueued {
		r.reloadQueued = false
		r.startReload()
	}
}

// attachment is one subscription of the reconciler to a realtime channel
type attachment struct {
	r           *Reconciler
	ch          realtime.Channel
	mechanicID  string
	unsubscribe func()

	mu          sync.Mutex
	registered  bool
	registering bool
	epoch       uint64
	detached    bool
}

// Attach subscribes to ch and registers mechanicID on every connect,
// immediately if ch is already connected. The returned func undoes it.
func (r *Reconciler) Attach(ch realtime.Channel, mechanicID string) (detach func()) {
	a := &attachment{r: r, ch: ch, mechanicID: mechanicID}

	select {
	case <-r.done:
		return func() {}
	default:
	}

	r.attachMu.Lock()
	r.attachments[a] = struct{}{}
	r.attachMu.Unlock()

	unsubscribe := ch.Subscribe(a.handle)
	a.mu.Lock()
	a.unsubscribe = unsubscribe
	detached := a.detached
	a.mu.Unlock()
	if detached {
		unsubscribe()
		return a.detach
	}

	if ch.Connected() {
		a.register()
	}
	return a.detach
}

func (a *attachment) handle(e realtime.Event) {
	a.mu.Lock()
	detached := a.detached
	a.mu.Unlock()
	if detached {
		return
	}

	switch e.Name {
	case realtime.EventConnect:
		a.register()
	case realtime.EventDisconnect:
		a.mu.Lock()
		a.registered = false
		a.epoch++
		a.mu.Unlock()
		log.Warn("Realtime channel disconnected")
	case realtime.EventError:
		log.WithError(e.Err).Warn("Realtime channel error")
	case realtime.EventNotification, realtime.EventNewBooking, realtime.EventBookingUpdate:
		select {
		case a.r.inbound <- e:
		case <-a.r.done:
		}
	default:
		log.WithField("event", e.Name).Debug("Ignoring realtime event")
	}
}

// register emits register_mechanic once per connect. The emit runs without
// a.mu held; a disconnect during it bumps epoch and the result is dropped.
func (a *attachment) register() {
	a.mu.Lock()
	if a.detached || a.registered || a.registering {
		a.mu.Unlock()
		return
	}
	a.registering = true
	epoch := a.epoch
	a.mu.Unlock()

	err := a.ch.Emit(realtime.EventRegisterMechanic, a.mechanicID)

	a.mu.Lock()
	a.registering = false
	if err == nil && a.epoch == epoch {
		a.registered = true
	}
	a.mu.Unlock()

	if err != nil {
		log.WithError(err).Warn("Failed to register mechanic on realtime channel")
		return
	}
	log.WithField("mechanic_id", a.mechanicID).Info("Registered mechanic on realtime channel")
}

func (a *attachment) detach() {
	a.mu.Lock()
	if a.detached {
		a.mu.Unlock()
		return
	}
	a.detached = true
	unsubscribe := a.unsubscribe
	a.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}

	a.r.attachMu.Lock()
	delete(a.r.attachments, a)
	a.r.attachMu.Unlock()
}
