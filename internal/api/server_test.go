package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jetsetgo/workshop-console/internal/config"
	"github.com/jetsetgo/workshop-console/internal/logging"
	"github.com/jetsetgo/workshop-console/internal/models"
	"github.com/jetsetgo/workshop-console/internal/realtime"
	"github.com/jetsetgo/workshop-console/internal/session"
)

// fakeBackend is an in-memory booking backend
type fakeBackend struct {
	mu         sync.Mutex
	bookings   []models.Booking
	reports    map[string]models.InspectionReport
	bills      int
	failStatus string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		bookings: []models.Booking{
			{ID: "b-1", CustomerName: "Alice", ServiceType: "Oil change", Status: models.BookingPending, Amount: 100},
			{ID: "b-2", CustomerName: "Bob", ServiceType: "Brakes", Status: models.BookingConfirmed, Amount: 200},
		},
		reports: make(map[string]models.InspectionReport),
	}
}

func reply(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (b *fakeBackend) handler() http.Handler {
	m := http.NewServeMux()
	m.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "secret" {
			reply(w, http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
			return
		}
		reply(w, http.StatusOK, map[string]interface{}{
			"token": "tok-1",
			"user":  map[string]string{"id": "mech-1", "name": "Sam", "email": req.Email},
		})
	})
	m.HandleFunc("GET /mechanic/profile", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, models.Profile{ID: "mech-1", Name: "Sam"})
	})
	m.HandleFunc("GET /bookings", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		reply(w, http.StatusOK, map[string]interface{}{
			"bookings": b.bookings, "total": len(b.bookings), "page": 1, "pages": 1,
		})
	})
	m.HandleFunc("GET /bookings/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, booking := range b.bookings {
			if booking.ID == r.PathValue("id") {
				reply(w, http.StatusOK, booking)
				return
			}
		}
		reply(w, http.StatusNotFound, map[string]string{"message": "not found"})
	})
	m.HandleFunc("PATCH /bookings/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		var req StatusRequest
		json.NewDecoder(r.Body).Decode(&req)

		b.mu.Lock()
		defer b.mu.Unlock()
		if id == b.failStatus {
			reply(w, http.StatusInternalServerError, map[string]string{"message": "boom"})
			return
		}
		for i := range b.bookings {
			if b.bookings[i].ID == id {
				b.bookings[i].Status = req.Status
			}
		}
		reply(w, http.StatusOK, map[string]bool{"success": true})
	})
	m.HandleFunc("GET /spare-parts", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, map[string]interface{}{"requests": []models.SparePartRequest{}})
	})
	m.HandleFunc("POST /inspections", func(w http.ResponseWriter, r *http.Request) {
		var report models.InspectionReport
		json.NewDecoder(r.Body).Decode(&report)
		b.mu.Lock()
		b.reports[report.BookingID] = report
		b.mu.Unlock()
		reply(w, http.StatusCreated, report)
	})
	m.HandleFunc("GET /inspections/booking/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		report, ok := b.reports[r.PathValue("id")]
		b.mu.Unlock()
		if !ok {
			reply(w, http.StatusNotFound, map[string]string{"message": "not found"})
			return
		}
		reply(w, http.StatusOK, report)
	})
	m.HandleFunc("PATCH /inspections/booking/{id}/decision", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, map[string]bool{"success": true})
	})
	m.HandleFunc("POST /bills", func(w http.ResponseWriter, r *http.Request) {
		var bill models.Bill
		json.NewDecoder(r.Body).Decode(&bill)
		b.mu.Lock()
		b.bills++
		b.mu.Unlock()
		reply(w, http.StatusCreated, bill)
	})
	return m
}

func (b *fakeBackend) billCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bills
}

// fakeChannel is an in-memory realtime channel that is always connected
type fakeChannel struct {
	*realtime.Hub

	mu      sync.Mutex
	emitted []string
}

func (f *fakeChannel) Emit(event string, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitted = append(f.emitted, fmt.Sprintf("%s:%v", event, data))
	return nil
}

func (f *fakeChannel) Connected() bool { return true }
func (f *fakeChannel) Start()          {}
func (f *fakeChannel) Stop()           {}

func (f *fakeChannel) Status() realtime.ConnectionStatus {
	return realtime.ConnectionStatus{Transport: "fake", Connected: true}
}

func (f *fakeChannel) Emitted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.emitted...)
}

type harness struct {
	server  *Server
	backend *fakeBackend
	channel *fakeChannel
	url     string
	client  *http.Client
	store   *session.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logging.Discard()

	fb := newFakeBackend()
	backend := httptest.NewServer(fb.handler())
	t.Cleanup(backend.Close)

	cfg := config.Default()
	cfg.Backend.Endpoint = backend.URL
	cfg.Session.Path = filepath.Join(t.TempDir(), "session.yaml")

	store := session.NewStore(cfg.Session.Path)
	s := NewServer(cfg, logging.NewBuffer(50), store)
	ch := &fakeChannel{Hub: realtime.NewHub()}
	s.newChannel = func(*config.RealtimeConfig, string) (realtime.Channel, error) {
		return ch, nil
	}

	console := httptest.NewServer(s.Handler())
	t.Cleanup(console.Close)
	t.Cleanup(func() { s.Shutdown(context.Background()) })

	return &harness{
		server:  s,
		backend: fb,
		channel: ch,
		url:     console.URL,
		store:   store,
		client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
	}
}

func (h *harness) call(t *testing.T, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, h.url+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := h.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	code, _ := h.call(t, http.MethodPost, "/api/login", LoginRequest{Email: "sam@example.com", Password: "secret"})
	require.Equal(t, http.StatusOK, code)
	h.waitLoaded(t)
}

func (h *harness) waitLoaded(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		code, body := h.call(t, http.MethodGet, "/api/bookings", nil)
		return code == http.StatusOK && body["total"] == 2.0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	code, body := h.call(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
}

func TestSessionGate(t *testing.T) {
	h := newHarness(t)

	code, body := h.call(t, http.MethodGet, "/api/bookings", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "login_required", body["error"])

	code, _ = h.call(t, http.MethodGet, "/api/logs", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	resp, err := h.client.Get(h.url + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp, err = h.client.Get(h.url + "/login")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	code, body = h.call(t, http.MethodGet, "/api/status", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["signed_in"])
}

func TestLoginLifecycle(t *testing.T) {
	h := newHarness(t)

	code, _ := h.call(t, http.MethodPost, "/api/login", LoginRequest{Email: "sam@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := h.call(t, http.MethodPost, "/api/login", LoginRequest{Email: "", Password: ""})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "email", body["field"])

	h.login(t)
	_, err := os.Stat(h.server.config.Session.Path)
	require.NoError(t, err)
	assert.Contains(t, h.channel.Emitted(), "register_mechanic:mech-1")

	code, body = h.call(t, http.MethodGet, "/api/status", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["signed_in"])

	code, _ = h.call(t, http.MethodPost, "/api/logout", nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = h.call(t, http.MethodGet, "/api/bookings", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	_, err = os.Stat(h.server.config.Session.Path)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 0, h.channel.Len())
}

func TestResumeSavedSession(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Save(&session.Session{
		Token:    "tok-1",
		Identity: session.Identity{ID: "mech-1"},
	}))

	require.NoError(t, h.server.Resume())
	h.waitLoaded(t)
}

func TestBookingStatus(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	code, body := h.call(t, http.MethodPatch, "/api/bookings/b-1/status", StatusRequest{Status: models.BookingCompleted})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "completed", body["booking"].(map[string]interface{})["status"])

	h.backend.mu.Lock()
	h.backend.failStatus = "b-2"
	h.backend.mu.Unlock()

	code, _ = h.call(t, http.MethodPatch, "/api/bookings/b-2/status", StatusRequest{Status: models.BookingCancelled})
	assert.Equal(t, http.StatusBadGateway, code)

	code, _ = h.call(t, http.MethodPatch, "/api/bookings/b-2/status", StatusRequest{Status: "finished"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = h.call(t, http.MethodGet, "/api/bookings?status=cancelled", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0.0, body["total"])

	code, body = h.call(t, http.MethodGet, "/api/bookings?status=completed&q=alice", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1.0, body["total"])
	assert.Equal(t, 1.0, body["pageCount"])

	_, body = h.call(t, http.MethodGet, "/api/revenue", nil)
	rev := body["revenue"].(map[string]interface{})
	assert.Equal(t, 100.0, rev["total"])
}

func TestGenerateBill(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	code, _ := h.call(t, http.MethodPost, "/api/bills", BillRequest{BookingID: "b-1"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, 0, h.backend.billCount())

	code, body := h.call(t, http.MethodPost, "/api/bills", map[string]interface{}{
		"bookingId":       "b-1",
		"items":           []map[string]string{{"name": "Oil Change", "price": "500"}, {"name": "Filter", "price": "150"}},
		"advanceReceived": "200",
	})
	require.Equal(t, http.StatusCreated, code)
	bill := body["bill"].(map[string]interface{})
	assert.Equal(t, 650.0, bill["totalAmount"])
	assert.Equal(t, 450.0, bill["balance"])
	assert.Equal(t, "450", body["formatted"].(map[string]interface{})["balance"])
	assert.Equal(t, 1, h.backend.billCount())
}

func TestInspectionFlow(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	code, body := h.call(t, http.MethodGet, "/api/inspections/b-1", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Nil(t, body["report"])

	code, body = h.call(t, http.MethodPost, "/api/inspections", map[string]interface{}{
		"bookingId": "b-1",
		"issues": []map[string]string{
			{"title": "Worn Brake Pads", "estimatedCost": "1500", "severity": "High"},
			{"title": "Oil Leak", "estimatedCost": "800", "severity": "Medium"},
		},
	})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, 2300.0, body["report"].(map[string]interface{})["totalEstimatedCost"])

	code, body = h.call(t, http.MethodPost, "/api/inspections/b-1/decision", DecisionRequest{Status: models.ReportApproved, UserNotes: "go ahead"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "approved", body["report"].(map[string]interface{})["status"])

	code, _ = h.call(t, http.MethodPost, "/api/inspections/b-1/decision", DecisionRequest{Status: models.ReportRejected})
	assert.Equal(t, http.StatusConflict, code)
}

func TestRealtimeEventReachesFeed(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	h.channel.Dispatch(realtime.Event{
		Name:    realtime.EventNewBooking,
		Payload: realtime.Payload{BookingID: "b-2", CustomerName: "Bob"},
	})

	require.Eventually(t, func() bool {
		_, body := h.call(t, http.MethodGet, "/api/bookings", nil)
		ids, _ := body["highlighted"].([]interface{})
		return len(ids) == 1 && ids[0] == "b-2"
	}, 2*time.Second, 10*time.Millisecond)

	_, body := h.call(t, http.MethodGet, "/api/notifications", nil)
	notes := body["notifications"].([]interface{})
	require.NotEmpty(t, notes)
	first := notes[0].(map[string]interface{})
	assert.Equal(t, "New booking from Bob!", first["message"])
	assert.Equal(t, "bookings", first["view"])

	code, body := h.call(t, http.MethodPost, "/api/notifications/all/read", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0.0, body["unread"])
}

func TestDismissHighlight(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	h.channel.Dispatch(realtime.Event{
		Name:    realtime.EventBookingUpdate,
		Payload: realtime.Payload{BookingID: "b-1"},
	})
	require.Eventually(t, func() bool {
		_, body := h.call(t, http.MethodGet, "/api/bookings", nil)
		ids, _ := body["highlighted"].([]interface{})
		return len(ids) == 1
	}, 2*time.Second, 10*time.Millisecond)

	code, _ := h.call(t, http.MethodDelete, "/api/bookings/b-1/highlight", nil)
	assert.Equal(t, http.StatusOK, code)

	_, body := h.call(t, http.MethodGet, "/api/bookings", nil)
	assert.Empty(t, body["highlighted"])
}

func TestGetBooking(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	code, body := h.call(t, http.MethodGet, "/api/bookings/b-2", nil)
	require.Equal(t, http.StatusOK, code)
	booking := body["booking"].(map[string]interface{})
	assert.Equal(t, "Bob", booking["customerName"])
	assert.Equal(t, false, body["highlighted"])

	code, _ = h.call(t, http.MethodGet, "/api/bookings/b-404", nil)
	assert.Equal(t, http.StatusNotFound, code)

	_, body = h.call(t, http.MethodGet, "/api/bookings", nil)
	assert.Equal(t, 10.0, body["pageSize"])
}

func TestClearLogs(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	h.server.logBuf.Add(logging.Entry{Timestamp: time.Now(), Level: "info", Message: "hello"})
	_, body := h.call(t, http.MethodGet, "/api/logs", nil)
	assert.Len(t, body["logs"], 1)

	code, _ := h.call(t, http.MethodDelete, "/api/logs", nil)
	assert.Equal(t, http.StatusOK, code)

	_, body = h.call(t, http.MethodGet, "/api/logs", nil)
	assert.Empty(t, body["logs"])
}
