package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemed-server/internal/accounts"
	"telemed-server/internal/config"
	"telemed-server/internal/middleware"
	"telemed-server/internal/models"
	"telemed-server/internal/scheduling"
	"telemed-server/internal/utils"
	"telemed-server/internal/video"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testCfg = &config.Config{
	JWTSecret:                 "access-secret",
	JWTRefreshSecret:          "refresh-secret",
	JWTExpirationMinutes:      15,
	JWTRefreshExpirationHours: 24,
	Environment:               "development",
}

type envelope struct {
	Status  int                    `json:"status"`
	Message string                 `json:"message"`
	Data    json.RawMessage        `json:"data"`
	Error   string                 `json:"error"`
	Field   string                 `json:"field"`
	Details map[string]interface{} `json:"details"`
}

func bearer(t *testing.T, id string, role models.Role) string {
	t.Helper()
	access, _, err := utils.GenerateTokens(&models.User{BaseModel: models.BaseModel{ID: id}, Role: role}, testCfg)
	require.NoError(t, err)
	return "Bearer " + access
}

func do(t *testing.T, r *gin.Engine, method, path, auth string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

// fakeScheduler embeds the interface so each test only stubs what it calls
type fakeScheduler struct {
	AppointmentService
	create     func(actor models.Actor, in scheduling.CreateAppointmentInput) (*models.Appointment, error)
	transition func(actor models.Actor, id string, target models.AppointmentStatus, reason *string) (*models.Appointment, error)
	cancel     func(actor models.Actor, id string, reason *string) (*models.Appointment, error)
	session    func(actor models.Actor, id string, in scheduling.SessionRecordInput) (*models.SessionRecord, error)
}

func (f *fakeScheduler) CreateAppointment(ctx context.Context, actor models.Actor, in scheduling.CreateAppointmentInput) (*models.Appointment, error) {
	return f.create(actor, in)
}

func (f *fakeScheduler) TransitionAppointment(ctx context.Context, actor models.Actor, id string, target models.AppointmentStatus, reason *string) (*models.Appointment, error) {
	return f.transition(actor, id, target, reason)
}

func (f *fakeScheduler) CancelAppointment(ctx context.Context, actor models.Actor, id string, reason *string) (*models.Appointment, error) {
	return f.cancel(actor, id, reason)
}

func (f *fakeScheduler) CreateSessionRecord(ctx context.Context, actor models.Actor, id string, in scheduling.SessionRecordInput) (*models.SessionRecord, error) {
	return f.session(actor, id, in)
}

func appointmentRouter(svc AppointmentService) *gin.Engine {
	h := NewAppointmentHandler(svc)
	r := gin.New()
	g := r.Group("/appointments", middleware.AuthMiddleware(testCfg))
	g.POST("", h.CreateAppointment)
	g.PATCH("/:id/cancel", h.CancelAppointment)
	g.PATCH("/:id/status", h.UpdateAppointmentStatus)
	g.POST("/:id/session", h.CreateSessionRecord)
	return r
}

const doctorID = "7b0e3c1a-4f7e-4a53-9f3c-2f1d0c6b9a11"

func TestCreateAppointment_Handler(t *testing.T) {
	var got scheduling.CreateAppointmentInput
	var gotActor models.Actor
	svc := &fakeScheduler{create: func(actor models.Actor, in scheduling.CreateAppointmentInput) (*models.Appointment, error) {
		gotActor, got = actor, in
		return &models.Appointment{BaseModel: models.BaseModel{ID: "appt-1"}, DoctorID: in.DoctorID, Status: models.StatusScheduled}, nil
	}}
	r := appointmentRouter(svc)
	when := time.Date(2030, 5, 1, 9, 0, 0, 0, time.UTC)

	w, env := do(t, r, http.MethodPost, "/appointments", bearer(t, "patient-1", models.RolePatient), gin.H{
		"doctorId":      doctorID,
		"scheduledTime": when,
		"reason":        "checkup",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, models.Actor{UserID: "patient-1", Role: models.RolePatient}, gotActor)
	assert.Equal(t, doctorID, got.DoctorID)
	assert.True(t, when.Equal(got.ScheduledTime))
	assert.Zero(t, got.Duration)

	var appt models.Appointment
	require.NoError(t, json.Unmarshal(env.Data, &appt))
	assert.Equal(t, "appt-1", appt.ID)
}

func TestCreateAppointment_HandlerErrors(t *testing.T) {
	svc := &fakeScheduler{create: func(actor models.Actor, in scheduling.CreateAppointmentInput) (*models.Appointment, error) {
		return nil, scheduling.ErrSlotTaken.WithDetails(map[string]interface{}{"conflicting_start": "2030-05-01T09:00:00Z"})
	}}
	r := appointmentRouter(svc)
	auth := bearer(t, "patient-1", models.RolePatient)

	w, _ := do(t, r, http.MethodPost, "/appointments", "", gin.H{})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env := do(t, r, http.MethodPost, "/appointments", auth, gin.H{"scheduledTime": time.Now().Add(time.Hour)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "doctorId", env.Field)

	w, env = do(t, r, http.MethodPost, "/appointments", auth, gin.H{"doctorId": doctorID, "scheduledTime": time.Now().Add(time.Hour)})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "doctor is not available at this time", env.Error)
	assert.Equal(t, "2030-05-01T09:00:00Z", env.Details["conflicting_start"])
}

func TestUpdateAppointmentStatus_RefusedTransition(t *testing.T) {
	svc := &fakeScheduler{transition: func(actor models.Actor, id string, target models.AppointmentStatus, reason *string) (*models.Appointment, error) {
		_, err := scheduling.Transition(models.StatusCompleted, target)
		return nil, err
	}}
	r := appointmentRouter(svc)

	w, env := do(t, r, http.MethodPatch, "/appointments/appt-1/status", bearer(t, "doctor-1", models.RoleDoctor), gin.H{"status": "CANCELLED"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "COMPLETED", env.Details["current_status"])
	assert.Equal(t, []interface{}{}, env.Details["allowed_transitions"])
}

func TestCancelAppointment_OptionalBody(t *testing.T) {
	var reasons []*string
	svc := &fakeScheduler{cancel: func(actor models.Actor, id string, reason *string) (*models.Appointment, error) {
		reasons = append(reasons, reason)
		return &models.Appointment{BaseModel: models.BaseModel{ID: id}, Status: models.StatusCancelled}, nil
	}}
	r := appointmentRouter(svc)
	auth := bearer(t, "patient-1", models.RolePatient)

	w, _ := do(t, r, http.MethodPatch, "/appointments/appt-1/cancel", auth, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = do(t, r, http.MethodPatch, "/appointments/appt-1/cancel", auth, gin.H{"reason": "travel"})
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, reasons, 2)
	assert.Nil(t, reasons[0])
	require.NotNil(t, reasons[1])
	assert.Equal(t, "travel", *reasons[1])
}

func TestCancelAppointment_ChunkedBody(t *testing.T) {
	var got *string
	svc := &fakeScheduler{cancel: func(actor models.Actor, id string, reason *string) (*models.Appointment, error) {
		got = reason
		return &models.Appointment{BaseModel: models.BaseModel{ID: id}, Status: models.StatusCancelled}, nil
	}}
	r := appointmentRouter(svc)

	req := httptest.NewRequest(http.MethodPatch, "/appointments/appt-1/cancel", bytes.NewBufferString(`{"reason":"travel"}`))
	req.ContentLength = -1
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(t, "patient-1", models.RolePatient))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, got)
	assert.Equal(t, "travel", *got)
}

func TestCreateSessionRecord_Handler(t *testing.T) {
	svc := &fakeScheduler{session: func(actor models.Actor, id string, in scheduling.SessionRecordInput) (*models.SessionRecord, error) {
		if actor.UserID != "doctor-1" {
			return nil, scheduling.ErrNotAssignedDoctor
		}
		return &models.SessionRecord{AppointmentID: id, Diagnosis: in.Diagnosis, Treatment: in.Treatment}, nil
	}}
	r := appointmentRouter(svc)
	body := gin.H{"diagnosis": "flu", "treatment": "rest"}

	w, _ := do(t, r, http.MethodPost, "/appointments/appt-1/session", bearer(t, "doctor-1", models.RoleDoctor), body)
	assert.Equal(t, http.StatusCreated, w.Code)

	w, _ = do(t, r, http.MethodPost, "/appointments/appt-1/session", bearer(t, "doctor-2", models.RoleDoctor), body)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

type fakeAccounts struct {
	AccountService
	login func(email, password string) (*accounts.TokenPair, *models.User, error)
}

func (f *fakeAccounts) Login(ctx context.Context, email, password string) (*accounts.TokenPair, *models.User, error) {
	return f.login(email, password)
}

func TestLogin_Handler(t *testing.T) {
	svc := &fakeAccounts{login: func(email, password string) (*accounts.TokenPair, *models.User, error) {
		if password != "password123" {
			return nil, nil, accounts.ErrInvalidCredentials
		}
		return &accounts.TokenPair{AccessToken: "a", RefreshToken: "r"}, &models.User{Email: email}, nil
	}}
	h := NewAuthHandler(svc, testCfg)
	r := gin.New()
	r.POST("/login", h.Login)

	w, _ := do(t, r, http.MethodPost, "/login", "", gin.H{"email": "jane@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "refresh_token=r")

	w, env := do(t, r, http.MethodPost, "/login", "", gin.H{"email": "jane@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, accounts.ErrInvalidCredentials.Error(), env.Error)

	w, env = do(t, r, http.MethodPost, "/login", "", gin.H{"email": "not-an-email", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "email", env.Field)
}

type fakeProfiles struct {
	ProfileService
	list func(filter accounts.DoctorFilter) (*accounts.DoctorPage, error)
}

func (f *fakeProfiles) ListApprovedDoctors(ctx context.Context, filter accounts.DoctorFilter) (*accounts.DoctorPage, error) {
	return f.list(filter)
}

func TestListDoctors_Handler(t *testing.T) {
	var got accounts.DoctorFilter
	svc := &fakeProfiles{list: func(filter accounts.DoctorFilter) (*accounts.DoctorPage, error) {
		got = filter
		return &accounts.DoctorPage{Count: 1, Page: 2, PageSize: 5, Results: []models.DoctorProfile{{
			Specialization: "Cardiology",
			User:           &models.User{FirstName: "Ada", LastName: "Lovelace"},
		}}}, nil
	}}
	h := NewUserHandler(svc)
	r := gin.New()
	r.GET("/doctors", h.ListDoctors)

	w, env := do(t, r, http.MethodGet, "/doctors?page=2&page_size=5&specialization=Cardiology&ordering=-consultation_fee", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, accounts.DoctorFilter{Specialization: "Cardiology", Ordering: "-consultation_fee", Page: 2, PageSize: 5}, got)

	var page DoctorListResponse
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Results, 1)
	assert.Equal(t, "Ada", page.Results[0].FirstName)

	w, env = do(t, r, http.MethodGet, "/doctors?page=zero", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "page", env.Field)
}

type fakeRooms struct {
	created bool
	err     error
}

func (f *fakeRooms) CreateRoom(ctx context.Context, actor models.Actor, appointmentID string) (*models.VideoRoom, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	return &models.VideoRoom{AppointmentID: appointmentID, RoomName: "telemed-" + appointmentID + "-abcdef"}, f.created, nil
}

func (f *fakeRooms) GetRoom(ctx context.Context, actor models.Actor, name string) (*models.VideoRoom, error) {
	return nil, video.ErrRoomNotFound
}

func TestVideoRoomHandler(t *testing.T) {
	tests := []struct {
		name string
		svc  *fakeRooms
		want int
	}{
		{"new room", &fakeRooms{created: true}, http.StatusCreated},
		{"existing room", &fakeRooms{}, http.StatusOK},
		{"provider not configured", &fakeRooms{err: video.ErrVideoDisabled}, http.StatusServiceUnavailable},
		{"provider rejected", &fakeRooms{err: &video.ProviderError{StatusCode: 400}}, http.StatusBadGateway},
		{"not a participant", &fakeRooms{err: video.ErrNotParticipant}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewVideoRoomHandler(tt.svc)
			r := gin.New()
			g := r.Group("/video-rooms", middleware.AuthMiddleware(testCfg))
			g.POST("/appointment/:appointment_id", h.CreateRoom)
			g.GET("/:room_name", h.GetRoom)

			w, _ := do(t, r, http.MethodPost, "/video-rooms/appointment/appt-1", bearer(t, "patient-1", models.RolePatient), nil)
			assert.Equal(t, tt.want, w.Code)

			w, _ = do(t, r, http.MethodGet, "/video-rooms/nope", bearer(t, "patient-1", models.RolePatient), nil)
			assert.Equal(t, http.StatusNotFound, w.Code)
		})
	}
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(ctx context.Context) error { return p.err }

func TestHealthHandler(t *testing.T) {
	r := gin.New()
	up := NewHealthHandler(fakePinger{}, nil, "test")
	down := NewHealthHandler(fakePinger{err: errors.New("connection refused")}, nil, "test")
	r.GET("/live", down.Liveness)
	r.GET("/ready/up", up.Readiness)
	r.GET("/ready/down", down.Readiness)

	w, _ := do(t, r, http.MethodGet, "/live", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, r, http.MethodGet, "/ready/up", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, r, http.MethodGet, "/ready/down", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "down", resp.Dependencies["database"])
}
