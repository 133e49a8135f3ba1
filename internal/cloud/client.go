package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jetsetgo/workshop-console/internal/config"
	"github.com/jetsetgo/workshop-console/internal/models"
)

// Client calls the remote booking backend. Every request carries the
// bearer credential of the session the client was created for.
type Client struct {
	endpoint string
	token    string
	pageSize int
	client   *http.Client
}

// NewClient creates a client without a credential; use WithToken for
// authenticated calls.
func NewClient(cfg *config.BackendConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		pageSize: pageSize,
		client:   &http.Client{Timeout: timeout},
	}
}

// WithToken returns a copy of the client that authenticates with token
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// LoginResponse is the backend's answer to a successful login
type LoginResponse struct {
	Token string        `json:"token"`
	User  LoginIdentity `json:"user"`
}

// LoginIdentity is the minimal identity returned alongside the token
type LoginIdentity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Login exchanges credentials for a bearer token
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var out LoginResponse
	err := c.do(ctx, "login", http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, &RemoteCallError{Op: "login", StatusCode: http.StatusOK, Body: "response carried no token"}
	}
	return &out, nil
}

// GetProfile returns the signed-in mechanic's profile
func (c *Client) GetProfile(ctx context.Context) (*models.Profile, error) {
	var out models.Profile
	if err := c.do(ctx, "get profile", http.MethodGet, "/mechanic/profile", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProfileImage points the profile at a hosted image URL
func (c *Client) UpdateProfileImage(ctx context.Context, imageURL string) (*models.Profile, error) {
	var out models.Profile
	err := c.do(ctx, "update profile", http.MethodPut, "/mechanic/profile", map[string]string{
		"profileImage": imageURL,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SetShopOpen toggles whether the shop accepts bookings
func (c *Client) SetShopOpen(ctx context.Context, open bool) error {
	return c.do(ctx, "set shop status", http.MethodPatch, "/mechanic/shop-status", map[string]bool{
		"isOpen": open,
	}, nil)
}

type bookingPage struct {
	Bookings []models.Booking `json:"bookings"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	Pages    int              `json:"pages"`
}

// ListBookings fetches every booking, walking the backend's pages
func (c *Client) ListBookings(ctx context.Context) ([]models.Booking, error) {
	all := make([]models.Booking, 0)
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("page", fmt.Sprint(page))
		q.Set("limit", fmt.Sprint(c.pageSize))

		var out bookingPage
		if err := c.do(ctx, "list bookings", http.MethodGet, "/bookings?"+q.Encode(), nil, &out); err != nil {
			return nil, err
		}
		all = append(all, out.Bookings...)

		if len(out.Bookings) == 0 || page >= out.Pages {
			return all, nil
		}
	}
}

// GetBooking fetches one booking
func (c *Client) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	var out models.Booking
	if err := c.do(ctx, "get booking", http.MethodGet, "/bookings/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateBookingStatus asks the backend to move a booking to status
func (c *Client) UpdateBookingStatus(ctx context.Context, id string, status models.BookingStatus) error {
	return c.do(ctx, "update booking status", http.MethodPatch, "/bookings/"+url.PathEscape(id)+"/status", map[string]string{
		"status": string(status),
	}, nil)
}

// ListSpareParts fetches the mechanic's spare-part requests
func (c *Client) ListSpareParts(ctx context.Context) ([]models.SparePartRequest, error) {
	var out struct {
		Requests []models.SparePartRequest `json:"requests"`
	}
	if err := c.do(ctx, "list spare parts", http.MethodGet, "/spare-parts", nil, &out); err != nil {
		return nil, err
	}
	if out.Requests == nil {
		out.Requests = []models.SparePartRequest{}
	}
	return out.Requests, nil
}

// CreateSparePart submits a new spare-part request
func (c *Client) CreateSparePart(ctx context.Context, req models.SparePartRequest) (*models.SparePartRequest, error) {
	var out models.SparePartRequest
	if err := c.do(ctx, "create spare part", http.MethodPost, "/spare-parts", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateInspection submits a mechanic's inspection report
func (c *Client) CreateInspection(ctx context.Context, report models.InspectionReport) (*models.InspectionReport, error) {
	var out models.InspectionReport
	if err := c.do(ctx, "create inspection", http.MethodPost, "/inspections", report, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetInspection fetches the report for a booking. A missing report is
// reported as ErrNotFound.
func (c *Client) GetInspection(ctx context.Context, bookingID string) (*models.InspectionReport, error) {
	var out models.InspectionReport
	if err := c.do(ctx, "get inspection", http.MethodGet, "/inspections/booking/"+url.PathEscape(bookingID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DecideInspection records the customer's decision on a report
func (c *Client) DecideInspection(ctx context.Context, bookingID string, status models.ReportStatus, notes string) error {
	return c.do(ctx, "decide inspection", http.MethodPatch, "/inspections/booking/"+url.PathEscape(bookingID)+"/decision", map[string]string{
		"status":    string(status),
		"userNotes": notes,
	}, nil)
}

// GenerateBill submits a bill for a booking
func (c *Client) GenerateBill(ctx context.Context, bill models.Bill) (*models.Bill, error) {
	var out models.Bill
	if err := c.do(ctx, "generate bill", http.MethodPost, "/bills", bill, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListCarousel returns the admin carousel slides
func (c *Client) ListCarousel(ctx context.Context) ([]models.CarouselSlide, error) {
	var out struct {
		Slides []models.CarouselSlide `json:"slides"`
	}
	if err := c.do(ctx, "list carousel", http.MethodGet, "/admin/carousel", nil, &out); err != nil {
		return nil, err
	}
	if out.Slides == nil {
		out.Slides = []models.CarouselSlide{}
	}
	return out.Slides, nil
}

// CreateCarouselSlide adds a slide
func (c *Client) CreateCarouselSlide(ctx context.Context, slide models.CarouselSlide) (*models.CarouselSlide, error) {
	var out models.CarouselSlide
	if err := c.do(ctx, "create carousel slide", http.MethodPost, "/admin/carousel", slide, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteCarouselSlide removes a slide
func (c *Client) DeleteCarouselSlide(ctx context.Context, id string) error {
	return c.do(ctx, "delete carousel slide", http.MethodDelete, "/admin/carousel/"+url.PathEscape(id), nil, nil)
}

// do sends a JSON request and decodes a JSON response into out (if non-nil)
func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return &RemoteCallError{Op: op, Err: err}
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &RemoteCallError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &RemoteCallError{Op: op, StatusCode: resp.StatusCode, Err: ErrNotFound}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &RemoteCallError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RemoteCallError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
