package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/jetsetgo/workshop-console/internal/billing"
	"github.com/jetsetgo/workshop-console/internal/cloud"
	"github.com/jetsetgo/workshop-console/internal/dashboard"
	"github.com/jetsetgo/workshop-console/internal/inspection"
	"github.com/jetsetgo/workshop-console/internal/models"
	"github.com/jetsetgo/workshop-console/internal/session"
)

// maxImageSize caps profile image uploads
const maxImageSize = 10 << 20

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// LoginRequest is the console sign-in form
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleLogin exchanges credentials for a session and opens its workspace
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, models.NewValidationError("email", "email and password are required"))
		return
	}

	resp, err := s.backend.Login(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	sess, err := session.New(resp.Token, session.Identity{
		ID:    resp.User.ID,
		Name:  resp.User.Name,
		Email: resp.User.Email,
		Role:  resp.User.Role,
	})
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	if err := s.store.Save(sess); err != nil {
		log.WithError(err).Warn("Session could not be persisted")
	}
	if err := s.activate(sess); err != nil {
		writeError(w, err)
		return
	}

	log.WithField("mechanic_id", sess.Identity.ID).Info("Signed in")
	writeJSON(w, http.StatusOK, map[string]interface{}{"identity": sess.Identity})
}

// handleLogout closes the workspace and forgets the session
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.deactivate(); err != nil {
		writeError(w, err)
		return
	}
	log.Info("Signed out")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleStatus returns session, realtime and load status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	out := map[string]interface{}{
		"status": "running",
		"uptime": humanize.RelTime(s.started, time.Now(), "", ""),
	}

	ws := s.workspace()
	if ws == nil {
		out["signed_in"] = false
		writeJSON(w, http.StatusOK, out)
		return
	}

	snap := ws.Dashboard.Snapshot()
	out["signed_in"] = true
	out["identity"] = ws.Session.Identity
	out["realtime"] = ws.Channel.Status()
	out["unread"] = snap.Unread()
	out["bookings_count"] = len(snap.Bookings)
	if snap.Profile != nil {
		out["shop_open"] = snap.Profile.ShopOpen
	}
	if !snap.LoadedAt.IsZero() {
		out["loaded_at"] = snap.LoadedAt
		out["loaded_ago"] = humanize.Time(snap.LoadedAt)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleRefresh reloads the dashboard on demand
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request, ws *Workspace) {
	if err := ws.Dashboard.Load(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// pageParam reads ?page=, defaulting to the first page
func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		return 1
	}
	return page
}

// handleBookings returns one filtered page of bookings
func (s *Server) handleBookings(w http.ResponseWriter, r *http.Request, ws *Workspace) {
	q := r.URL.Query()
	page := ws.Dashboard.Bookings(q.Get("q"), q.Get("status"), pageParam(r))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"bookings":    page.Items,
		"page":        page.Number,
		"pageCount":   page.Count,
		"pageSize":    ws.Dashboard.PageSize(),
		"total":       page.Total,
		"highlighted": ws.Dashboard.Snapshot().HighlightedIDs(),
	})
}

// handleBooking fetches one booking fresh from the backend
func (s *Server) handleBooking(w http.ResponseWriter, r *http.Request, ws *Workspace) {
	id := mux.Vars(r)["id"]
	booking, err := ws.Client.GetBooking(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"booking":     booking,
		"highlighted": ws.Dashboard.Snapshot().IsHighlighted(id),
	})
}

// StatusRequest moves a booking to a new status
type StatusRequest struct {
	Status models.BookingStatus `json:"status"`
}

// handleBookingStatus transitions one booking
func (s *Server) handleBookingStatus(w http.ResponseWriter, r *http.Request, ws *Workspace) {
	id := mux.Vars(r)["id"]

	var req StatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	snap, err := ws.Dashboard.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	booking, _ := snap.Booking(id)
	writeJSON(w, http.StatusOK, map[string]interface{}{"booking": booking})
}

// handleDismissHighlight clears a booking's highlight early
func (s *Server) handleDismissHighlight(w http.ResponseWriter, r *http.Request, ws *Workspace) {
	if err := ws.Dashboard.Dismiss(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleSpareParts returns one filtered page of spare-part requests
func (s *Server) handleSpareParts(w http.ResponseWriter, r *http.Request, ws *Workspace) {
	q := r.URL.Query()
	page := ws.Dashboard.SpareParts(q.Get("q"), q.Get("status"), pageParam(r))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"requests":  page.Items,
		"page":      page.Number,
		"pageCount": page.Count,
		"pageSize":  ws.Dashboard.PageSize(),
		"total":     page.Total,
	})
}

// handleRequestSparePart submits a spare-part request
func (s *Server) handleRequestSparePart(w http.ResponseWriter, r *http.Request, ws *Workspace) {
	var draft dashboard.SparePartDraft
	if err := decodeJSON(r, &draft); err != nil {
		writeError(w, err)
		return
	}
	created, err := ws.Dashboard.RequestSparePart(r.Context(), draft)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"request": created})
}

// InspectionRequest is the mechanic's inspection form
type InspectionRequest struct {
	BookingID     string                  `json:"bookingId"`
	Issues        []inspection.IssueDraft `json:"issues"`
	MechanicNotes string                  `json:"mechanicNotes"`
}

// handleSubmitInspection creates a pending inspection report
func (s *Server) handleSubmitInspection(w http.ResponseWriter, r *http.Request, ws *Workspace) {
	var req InspectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	report, err := ws.Inspections.Submit(r.Context(), req.BookingID, req.Issues, req.MechanicNotes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"report": report})
}

// handleGetInspection returns a booking's report, or null if none exists
func (s *Server) handleGetInspection(w http.ResponseWriter, r *http.Request, ws *Workspace) {
	report, err := ws.Inspections.Load(r.Context(), mux.Vars(r)["bookingId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"report": report})
}

// DecisionRequest is the customer's answer to a report
type DecisionRequest struct {
	Status    models.ReportStatus `json:"status"`
	UserNotes string              `json:"userNotes"`
}

// handleDecideInspection approves or rejects a pending report
func (s *Server) handleDecideInspection(w http.ResponseWriter, r *http.Request, ws *Workspace) {
	var req DecisionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	report, err := ws.Inspections.Decide(r.Context(), mux.Vars(r)["bookingId"], req.Status, req.UserNotes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"report": report})
}

// BillRequest is the bill form as typed
type BillRequest struct {
	BookingID       string              `json:"bookingId"`
	Items           []billing.ItemDraft `json:"items"`
	AdvanceReceived string              `json:"advanceReceived"`
}

// handleGenerateBill validates and submits a bill
func (s *Server) handleGenerateBill(w http.ResponseWriter, r *http.Request, ws *Workspace) {
	var req BillRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	bill, err := billing.BuildBill(req.BookingID, req.Items, req.AdvanceReceived, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}

	if _, err := ws.Client.GenerateBill(r.Context(), bill); err != nil {
		writeError(w, err)
		return
	}

	log.WithFields(log.Fields{
		"booking_id": bill.BookingID,
		"total":      bill.TotalAmount,
		"balance":    bill.Balance,
	}).Info("Bill generated")
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"bill": bill,
		"formatted": map[string]string{
			"total":   humanize.CommafWithDigits(bill.TotalAmount, 2),
			"advance": humanize.CommafWithDigits(bill.AdvanceReceived, 2),
			"balance": humanize.CommafWithDigits(bill.Balance, 2),
		},
	})
}

// handleRevenue returns revenue figures derived from bookings
func (s *Server) handleRevenue(w http.ResponseWriter, r *http.Request, ws *Workspace) {
	rev := ws.Dashboard.Revenue()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"revenue": rev,
		"formatted": map[string]string{
			"total":     humanize.CommafWithDigits(rev.Total, 2),
			"monthly":   humanize.CommafWithDigits(rev.Monthly, 2),
			"lastMonth": humanize.CommafWithDigits(rev.LastMonth, 2),
			"growth":    humanize.FtoaWithDigits(rev.Growth, 1) + "%",
		},
	})
}

// notificationView is a notification plus the view it opens
type notificationView struct {
	models.NotificationEvent
	View models.View `json:"view"`
	Ago  string      `json:"ago"`
}

// handleNotifications returns the feed, newest first
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request, ws *Workspace) {
	snap := ws.Dashboard.Snapshot()
	items := make([]notificationView, 0, len(snap.Notifications))
	for _, n := range snap.Notifications {
		view, err := models.DestinationView(n.Type)
		if err != nil {
			log.WithError(err).Warn("Notification without destination")
			continue
		}
		items = append(items, notificationView{NotificationEvent: n, View: view, Ago: humanize.Time(n.Timestamp)})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": items,
		"unread":        snap.Unread(),
	})
}

// handleMarkRead marks one notification read; the id "all" marks every one
func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request, ws *Workspace) {
	id := mux.Vars(r)["id"]
	if id == "all" {
		id = ""
	}
	if err := ws.Dashboard.MarkRead(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": ws.Dashboard.Snapshot().Unread()})
}

// ShopRequest toggles the shop
type ShopRequest struct {
	Open bool `json:"open"`
}

// handleShop opens or closes the shop
func (s *Server) handleShop(w http.ResponseWriter, r *http.Request, ws *Workspace) {
	var req ShopRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := ws.Dashboard.SetShopOpen(r.Context(), req.Open); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"open": req.Open})
}

// handleProfileImage uploads a new profile image and points the profile at it
func (s *Server) handleProfileImage(w http.ResponseWriter, r *http.Request, ws *Workspace) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize)
	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, models.NewValidationError("image", "an image file is required"))
		return
	}
	defer file.Close()

	url, err := s.images.Upload(r.Context(), file)
	if err != nil {
		writeError(w, err)
		return
	}

	profile, err := ws.Client.UpdateProfileImage(r.Context(), url)
	if err != nil {
		writeError(w, err)
		return
	}
	if profile.ProfileImage == "" {
		profile.ProfileImage = url
	}
	if err := ws.Dashboard.SetProfile(*profile); err != nil {
		writeError(w, err)
		return
	}

	log.WithField("url", url).Info("Profile image updated")
	writeJSON(w, http.StatusOK, map[string]interface{}{"profile": profile})
}

// handleListCarousel returns the carousel slides
func (s *Server) handleListCarousel(w http.ResponseWriter, r *http.Request, ws *Workspace) {
	slides, err := ws.Client.ListCarousel(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"slides": slides})
}

// handleCreateCarousel adds a slide
func (s *Server) handleCreateCarousel(w http.ResponseWriter, r *http.Request, ws *Workspace) {
	var slide models.CarouselSlide
	if err := decodeJSON(r, &slide); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(slide.Title) == "" {
		writeError(w, models.NewValidationError("title", "title is required"))
		return
	}
	if strings.TrimSpace(slide.ImageURL) == "" {
		writeError(w, models.NewValidationError("imageUrl", "image is required"))
		return
	}

	created, err := ws.Client.CreateCarouselSlide(r.Context(), slide)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"slide": created})
}

// handleDeleteCarousel removes a slide
func (s *Server) handleDeleteCarousel(w http.ResponseWriter, r *http.Request, ws *Workspace) {
	err := ws.Client.DeleteCarouselSlide(r.Context(), mux.Vars(r)["id"])
	if err != nil && !errors.Is(err, cloud.ErrNotFound) {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleLogs returns captured log entries, optionally filtered by level
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request, _ *Workspace) {
	var levels []string
	if raw := r.URL.Query().Get("level"); raw != "" {
		levels = strings.Split(raw, ",")
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"logs": s.logBuf.Entries(levels)})
}

// handleClearLogs empties the activity log
func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request, _ *Workspace) {
	s.logBuf.Clear()
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleUI serves the console page, or sends the browser to sign in
func (s *Server) handleUI(w http.ResponseWriter, r *http.Request) {
	if s.workspace() == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(webUI))
}

// handleLoginPage serves the console page in its sign-in state
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(webUI))
}
