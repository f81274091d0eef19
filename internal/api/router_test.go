package api

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frontdesk-io/frontdesk-ce/internal/clock"
	"github.com/frontdesk-io/frontdesk-ce/internal/config"
	"github.com/frontdesk-io/frontdesk-ce/internal/dispatcher"
	"github.com/frontdesk-io/frontdesk-ce/internal/events"
	"github.com/frontdesk-io/frontdesk-ce/internal/lookup"
	"github.com/frontdesk-io/frontdesk-ce/internal/middleware"
	"github.com/frontdesk-io/frontdesk-ce/internal/models"
	"github.com/frontdesk-io/frontdesk-ce/internal/repository"
	"github.com/frontdesk-io/frontdesk-ce/internal/repository/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "test-secret"

type apiFixture struct {
	router *Router
	store  *repository.Store
	hub    *events.Hub
	clock  *clock.Fixed
}

func newAPIFixture(t *testing.T, mutate ...func(*config.Config)) *apiFixture {
	t.Helper()
	store := memory.NewStore()
	hub := events.NewHub(log.Default())
	t.Cleanup(hub.Close)
	clk := &clock.Fixed{T: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)}

	services := store.Services.(*memory.ServiceRepository)
	services.Put(&models.Service{ID: "svc-transcript", Office: models.OfficeRegistrar, Name: "Transcript", Active: true})
	services.Put(&models.Service{ID: "svc-request", Office: models.OfficeRegistrar, Name: "Document Request", Active: true, SpecialRequest: true})
	windows := store.Windows.(*memory.WindowRepository)
	windows.Put(&models.Window{
		ID: "win-a", Office: models.OfficeRegistrar, Name: "Window A",
		ServiceIDs: []string{"svc-transcript"}, IsOpen: true, IsServing: true,
	})

	cfg := &config.Config{
		Server:    config.ServerConfig{RequestTimeout: 5 * time.Second},
		Auth:      config.AuthConfig{JWTSecret: testSecret},
		RateLimit: config.RateLimitConfig{PublicPerMinute: 1000, AuthPer15Min: 1000},
		Queue: config.QueueConfig{OfficeEnabled: map[string]bool{
			"registrar": true, "admissions": true,
		}},
	}
	for _, m := range mutate {
		m(cfg)
	}

	disp := dispatcher.New(store, hub, clk, dispatcher.Options{
		QueueCfg: func() config.QueueConfig { return cfg.Queue },
	})
	look := lookup.NewService(store, clk, 24*time.Hour)

	router := NewRouter(Options{
		Dispatcher: disp,
		Lookup:     look,
		Store:      store,
		Hub:        hub,
		Config:     cfg,
		Ping:       func() error { return nil },
	})
	router.SetupRoutes()
	return &apiFixture{router: router, store: store, hub: hub, clock: clk}
}

func (f *apiFixture) do(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.GetEngine().ServeHTTP(w, req)
	return w
}

func adminToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		Role:   "staff",
		Office: "registrar",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	raw, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return raw
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dest))
}

func admitBody() map[string]interface{} {
	return map[string]interface{}{
		"office":       "registrar",
		"service_name": "Transcript",
		"role":         "Visitor",
		"customer_form": map[string]string{
			"name":    "Juan Dela Cruz",
			"contact": "09171234567",
			"email":   "juan@example.com",
		},
	}
}

func (f *apiFixture) admit(t *testing.T) string {
	t.Helper()
	w := f.do(http.MethodPost, "/queue", admitBody(), "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		TicketID string `json:"ticketId"`
	}
	decode(t, w, &resp)
	require.NotEmpty(t, resp.TicketID)
	return resp.TicketID
}

func TestAdmitEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(http.MethodPost, "/queue", admitBody(), "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		TicketID    string `json:"ticketId"`
		Number      int    `json:"number"`
		WindowName  string `json:"windowName"`
		ServiceName string `json:"serviceName"`
		PortalURL   string `json:"portalUrl"`
	}
	decode(t, w, &resp)
	assert.Equal(t, 1, resp.Number)
	assert.Equal(t, "Window A", resp.WindowName)
	assert.Equal(t, "Transcript", resp.ServiceName)
	assert.Equal(t, "/tickets/"+resp.TicketID, resp.PortalURL)
}

func TestAdmitEndpointValidation(t *testing.T) {
	f := newAPIFixture(t)

	body := admitBody()
	delete(body, "customer_form")
	w := f.do(http.MethodPost, "/queue", body, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var errResp errorBody
	decode(t, w, &errResp)
	assert.Equal(t, "validation", string(errResp.Code))
	assert.NotEmpty(t, errResp.Details)
}

func TestAdmitEndpointUnknownService(t *testing.T) {
	f := newAPIFixture(t)
	body := admitBody()
	body["service_name"] = "Nope"
	w := f.do(http.MethodPost, "/queue", body, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPublicSnapshotEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.admit(t)

	w := f.do(http.MethodGet, "/queue/registrar", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var snap lookup.PublicSnapshot
	decode(t, w, &snap)
	assert.Equal(t, models.OfficeRegistrar, snap.Office)
	require.Len(t, snap.Waiting, 1)
	assert.Equal(t, "Juan Dela Cruz", snap.Waiting[0].DisplayName)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/queue/cafeteria", nil, "").Code)
}

func TestTicketLookupEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	id := f.admit(t)

	w := f.do(http.MethodGet, "/tickets/"+id, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var detail lookup.TicketDetail
	decode(t, w, &detail)
	assert.Equal(t, "Transcript", detail.ServiceName)
	assert.Equal(t, "Juan Dela Cruz", detail.DisplayName)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/tickets/missing", nil, "").Code)
}

func TestTicketLookupGone(t *testing.T) {
	f := newAPIFixture(t)
	id := f.admit(t)
	f.clock.T = f.clock.T.Add(25 * time.Hour)

	assert.Equal(t, http.StatusGone, f.do(http.MethodGet, "/tickets/"+id, nil, "").Code)
}

func TestRatingEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	id := f.admit(t)

	w := f.do(http.MethodPost, "/tickets/"+id+"/rating", gin.H{"rating": 5, "remarks": "salamat"}, "")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(http.MethodPost, "/tickets/"+id+"/rating", gin.H{"rating": 9}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListServicesHidesSpecialRequests(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(http.MethodGet, "/services/registrar", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data       []models.Service `json:"data"`
		Pagination PaginationInfo   `json:"pagination"`
	}
	decode(t, w, &resp)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Transcript", resp.Data[0].Name)
	assert.Equal(t, 1, resp.Pagination.CurrentPage)
	assert.Equal(t, 1, resp.Pagination.TotalCount)
}

func TestListWindowsPagination(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(http.MethodGet, "/windows/registrar?page=2&limit=1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data       []models.Window `json:"data"`
		Pagination PaginationInfo  `json:"pagination"`
	}
	decode(t, w, &resp)
	assert.Empty(t, resp.Data)
	assert.Equal(t, 2, resp.Pagination.CurrentPage)
	assert.Equal(t, 1, resp.Pagination.TotalCount)
}

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminEndpointsRequireAuth(t *testing.T) {
	f := newAPIFixture(t)
	paths := []string{"/queue/next", "/queue/recall", "/queue/skip", "/queue/transfer", "/queue/stop"}
	for _, path := range paths {
		w := f.do(http.MethodPost, path, gin.H{"windowId": "win-a"}, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/admin/snapshot/win-a", nil, "").Code)
}

func TestNextEndpointFlow(t *testing.T) {
	f := newAPIFixture(t)
	token := adminToken(t)
	f.admit(t)

	w := f.do(http.MethodPost, "/queue/next", gin.H{"windowId": "win-a"}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result dispatcher.NextResult
	decode(t, w, &result)
	require.NotNil(t, result.Called)
	assert.Equal(t, 1, result.Called.Number)
	require.NotNil(t, result.Called.ProcessedBy)
	assert.Equal(t, "admin-1", *result.Called.ProcessedBy)

	// Queue is now empty.
	w = f.do(http.MethodPost, "/queue/next", gin.H{"windowId": "win-a"}, token)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &result)
	assert.True(t, result.NoMore)
}

func TestNextEndpointValidation(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(http.MethodPost, "/queue/next", gin.H{}, adminToken(t))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransferEndpointValidation(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(http.MethodPost, "/queue/transfer", gin.H{"fromWindowId": "win-a"}, adminToken(t))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStopEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	token := adminToken(t)

	w := f.do(http.MethodPost, "/queue/stop", gin.H{"windowId": "win-a", "action": "pause"}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// A paused window refuses next.
	f.admit(t)
	w = f.do(http.MethodPost, "/queue/next", gin.H{"windowId": "win-a"}, token)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAdminSnapshotEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.admit(t)

	w := f.do(http.MethodGet, "/admin/snapshot/win-a", nil, adminToken(t))
	require.Equal(t, http.StatusOK, w.Code)

	var snap lookup.AdminSnapshot
	decode(t, w, &snap)
	assert.Equal(t, "win-a", snap.WindowID)
	assert.Len(t, snap.Waiting, 1)
}

func TestForceLogoutEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	sub := f.hub.Subscribe("sess-1", "user-9")
	defer f.hub.Unsubscribe(sub)

	w := f.do(http.MethodPost, "/auth/force-logout", gin.H{"userId": "user-9"}, adminToken(t))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Sessions int `json:"sessions"`
	}
	decode(t, w, &resp)
	assert.Equal(t, 1, resp.Sessions)

	select {
	case msg := <-sub.C():
		assert.Equal(t, events.TypeForceLogout, msg.Event.Type)
	default:
		t.Fatal("expected force-logout delivery")
	}
}

func TestOfficeStatusAndLocation(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodGet, "/office-status/registrar", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "enabled")

	w = f.do(http.MethodGet, "/location/registrar", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Ground Floor")

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/location/cafeteria", nil, "").Code)
}

func TestWindowCommandsNotThrottledByAuthLimit(t *testing.T) {
	f := newAPIFixture(t, func(cfg *config.Config) {
		cfg.RateLimit.AuthPer15Min = 2
	})
	token := adminToken(t)

	// Many windows share one campus NAT ip; commands must not consume the
	// credential-attempt budget.
	for i := 0; i < 5; i++ {
		w := f.do(http.MethodPost, "/queue/next", gin.H{"windowId": "win-a"}, token)
		assert.NotEqual(t, http.StatusTooManyRequests, w.Code, "command %d", i)
	}

	// The auth budget still applies to credential-bearing endpoints.
	var last int
	for i := 0; i < 3; i++ {
		w := f.do(http.MethodPost, "/auth/force-logout", gin.H{"userId": "user-9"}, token)
		last = w.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
