package video

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemed-server/internal/apperror"
	"telemed-server/internal/logger"
	"telemed-server/internal/models"
)

type memoryRepository struct {
	mu           sync.Mutex
	appointments map[string]*models.Appointment
	rooms        []*models.VideoRoom
	events       []*models.AppointmentEvent
	// raceRoom is inserted just before the next CreateRoom, simulating a
	// concurrent request winning the unique index
	raceRoom *models.VideoRoom
}

func newMemoryRepository(appts ...*models.Appointment) *memoryRepository {
	r := &memoryRepository{appointments: map[string]*models.Appointment{}}
	for _, a := range appts {
		r.appointments[a.ID] = a
	}
	return r
}

func (r *memoryRepository) WithinTx(ctx context.Context, fn func(tx Repository) error) error {
	return fn(r)
}

func (r *memoryRepository) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memoryRepository) GetRoomByAppointment(ctx context.Context, appointmentID string) (*models.VideoRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, room := range r.rooms {
		if room.AppointmentID == appointmentID {
			return room, nil
		}
	}
	return nil, ErrRoomNotFound
}

func (r *memoryRepository) GetActiveRoom(ctx context.Context, name string) (*models.VideoRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, room := range r.rooms {
		if room.RoomName == name && room.IsActive {
			cp := *room
			appt := *r.appointments[room.AppointmentID]
			cp.Appointment = &appt
			return &cp, nil
		}
	}
	return nil, ErrRoomNotFound
}

func (r *memoryRepository) CreateRoom(ctx context.Context, room *models.VideoRoom) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.raceRoom != nil {
		r.rooms = append(r.rooms, r.raceRoom)
		r.raceRoom = nil
	}
	for _, existing := range r.rooms {
		if existing.AppointmentID == room.AppointmentID {
			return errRoomExists
		}
	}
	room.ID = "room-" + room.AppointmentID
	r.rooms = append(r.rooms, room)
	return nil
}

func (r *memoryRepository) InsertEvent(ctx context.Context, ev *models.AppointmentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

type fakeProvider struct {
	calls    int
	lastName string
	lastExp  time.Time
	err      error
}

func (p *fakeProvider) CreateRoom(ctx context.Context, name string, expiresAt time.Time) (*ProvisionedRoom, error) {
	p.calls++
	p.lastName, p.lastExp = name, expiresAt
	if p.err != nil {
		return nil, p.err
	}
	return &ProvisionedRoom{Name: name, URL: "https://example.daily.co/" + name}, nil
}

var (
	patient = models.Actor{UserID: "patient-1", Role: models.RolePatient}
	doctor  = models.Actor{UserID: "doctor-1", Role: models.RoleDoctor}
	other   = models.Actor{UserID: "patient-2", Role: models.RolePatient}
	admin   = models.Actor{UserID: "admin-1", Role: models.RoleAdmin}
)

func scheduledAppointment(id string, status models.AppointmentStatus) *models.Appointment {
	return &models.Appointment{
		BaseModel:     models.BaseModel{ID: id},
		PatientID:     patient.UserID,
		DoctorID:      doctor.UserID,
		ScheduledTime: time.Date(2030, 1, 2, 10, 0, 0, 0, time.UTC),
		Duration:      30,
		Status:        status,
	}
}

func TestCreateRoom_ProvisionsOnce(t *testing.T) {
	repo := newMemoryRepository(scheduledAppointment("appt-1", models.StatusScheduled))
	provider := &fakeProvider{}
	svc := NewService(repo, provider, logger.Discard(), time.Hour)

	room, created, err := svc.CreateRoom(context.Background(), patient, "appt-1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Regexp(t, regexp.MustCompile(`^telemed-appt-1-[0-9a-f]{6}$`), room.RoomName)
	assert.Equal(t, "https://example.daily.co/"+room.RoomName, room.RoomURL)
	assert.Equal(t, time.Date(2030, 1, 2, 11, 0, 0, 0, time.UTC), room.ExpiresAt)
	assert.Equal(t, room.ExpiresAt, provider.lastExp)
	require.Len(t, repo.events, 1)
	assert.Equal(t, models.EventVideoRoomCreated, repo.events[0].EventType)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(repo.events[0].Payload, &payload))
	assert.Equal(t, room.RoomName, payload["room_name"])

	again, created, err := svc.CreateRoom(context.Background(), doctor, "appt-1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, room.RoomName, again.RoomName)
	assert.Equal(t, 1, provider.calls)
}

func TestInsertEvent_UnencodablePayloadIsLogged(t *testing.T) {
	nullLog, hook := logtest.NewNullLogger()
	repo := newMemoryRepository()
	svc := NewService(repo, &fakeProvider{}, &logger.Logger{Logger: nullLog}, time.Hour)

	err := svc.insertEvent(context.Background(), repo, "appt-1", patient.UserID, models.EventVideoRoomCreated, map[string]any{
		"bad": make(chan int),
	})
	require.NoError(t, err)
	require.Len(t, repo.events, 1)
	assert.Empty(t, repo.events[0].Payload)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "appt-1", entry.Data["appointment_id"])
}

func TestCreateRoom_Rejections(t *testing.T) {
	repo := newMemoryRepository(
		scheduledAppointment("appt-1", models.StatusScheduled),
		scheduledAppointment("appt-done", models.StatusCompleted),
	)
	provider := &fakeProvider{}
	svc := NewService(repo, provider, logger.Discard(), 0)

	tests := []struct {
		name   string
		actor  models.Actor
		apptID string
		kind   apperror.Kind
	}{
		{"missing appointment", patient, "nope", apperror.KindNotFound},
		{"blank appointment", patient, " ", apperror.KindValidation},
		{"outsider", other, "appt-1", apperror.KindAuthorization},
		{"admin is not a participant", admin, "appt-1", apperror.KindAuthorization},
		{"not scheduled", patient, "appt-done", apperror.KindConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.CreateRoom(context.Background(), tt.actor, tt.apptID)
			assert.Equal(t, tt.kind, apperror.KindOf(err))
		})
	}
	assert.Zero(t, provider.calls)
}

func TestCreateRoom_ProviderFailureStoresNothing(t *testing.T) {
	repo := newMemoryRepository(scheduledAppointment("appt-1", models.StatusScheduled))
	svc := NewService(repo, &fakeProvider{err: errors.New("boom")}, logger.Discard(), time.Hour)

	_, _, err := svc.CreateRoom(context.Background(), patient, "appt-1")
	require.Error(t, err)
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))
	assert.Empty(t, repo.rooms)
	assert.Empty(t, repo.events)
}

func TestCreateRoom_Disabled(t *testing.T) {
	repo := newMemoryRepository(scheduledAppointment("appt-1", models.StatusScheduled))
	svc := NewService(repo, nil, logger.Discard(), time.Hour)

	_, _, err := svc.CreateRoom(context.Background(), patient, "appt-1")
	assert.ErrorIs(t, err, ErrVideoDisabled)
}

func TestCreateRoom_LosesRace(t *testing.T) {
	repo := newMemoryRepository(scheduledAppointment("appt-1", models.StatusScheduled))
	winner := &models.VideoRoom{AppointmentID: "appt-1", RoomName: "telemed-appt-1-ffffff", IsActive: true}
	repo.raceRoom = winner
	svc := NewService(repo, &fakeProvider{}, logger.Discard(), time.Hour)

	room, created, err := svc.CreateRoom(context.Background(), patient, "appt-1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, winner.RoomName, room.RoomName)
	assert.Empty(t, repo.events)
}

func TestGetRoom(t *testing.T) {
	repo := newMemoryRepository(scheduledAppointment("appt-1", models.StatusScheduled))
	repo.rooms = append(repo.rooms,
		&models.VideoRoom{AppointmentID: "appt-1", RoomName: "live", IsActive: true},
		&models.VideoRoom{AppointmentID: "appt-1", RoomName: "closed", IsActive: false},
	)
	svc := NewService(repo, nil, logger.Discard(), time.Hour)

	room, err := svc.GetRoom(context.Background(), doctor, "live")
	require.NoError(t, err)
	assert.Equal(t, "live", room.RoomName)

	_, err = svc.GetRoom(context.Background(), other, "live")
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = svc.GetRoom(context.Background(), patient, "closed")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}
