package scheduling

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"telemed-server/internal/models"
)

// memoryRepository is an in-memory Repository. WithinTx holds a single mutex,
// which gives the same serialization the doctor row lock gives in Postgres,
// and restores a snapshot when fn fails.
type memoryRepository struct {
	txMu sync.Mutex

	doctors        map[string]*models.DoctorProfile
	appointments   map[string]models.Appointment
	sessionRecords map[string]models.SessionRecord
	events         []models.AppointmentEvent
	// users without a doctor profile, such as patients
	otherUsers map[string]bool

	// failCreate, when set, is returned by CreateAppointment
	failCreate error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		doctors:        map[string]*models.DoctorProfile{},
		appointments:   map[string]models.Appointment{},
		sessionRecords: map[string]models.SessionRecord{},
		otherUsers:     map[string]bool{},
	}
}

func (m *memoryRepository) addDoctor(userID string, status models.VerificationStatus) {
	m.doctors[userID] = &models.DoctorProfile{
		BaseModel:          models.BaseModel{ID: uuid.NewString()},
		UserID:             userID,
		VerificationStatus: status,
	}
}

func (m *memoryRepository) addAppointment(a models.Appointment) models.Appointment {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.EndTime = a.ComputeEndTime()
	m.appointments[a.ID] = a
	return a
}

func (m *memoryRepository) WithinTx(ctx context.Context, fn func(tx Repository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	apptSnap := make(map[string]models.Appointment, len(m.appointments))
	for k, v := range m.appointments {
		apptSnap[k] = v
	}
	recSnap := make(map[string]models.SessionRecord, len(m.sessionRecords))
	for k, v := range m.sessionRecords {
		recSnap[k] = v
	}
	eventCount := len(m.events)

	if err := fn(m); err != nil {
		m.appointments = apptSnap
		m.sessionRecords = recSnap
		m.events = m.events[:eventCount]
		return err
	}
	return nil
}

func (m *memoryRepository) DoctorProfile(ctx context.Context, doctorID string) (*models.DoctorProfile, error) {
	p, ok := m.doctors[doctorID]
	if !ok {
		if m.otherUsers[doctorID] {
			return nil, ErrNotADoctor
		}
		return nil, ErrDoctorNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memoryRepository) LockDoctorProfile(ctx context.Context, doctorID string) (*models.DoctorProfile, error) {
	return m.DoctorProfile(ctx, doctorID)
}

func (m *memoryRepository) ScheduledAppointmentsForDoctor(ctx context.Context, doctorID string, window Interval) ([]models.Appointment, error) {
	var out []models.Appointment
	for _, a := range m.appointments {
		if a.DoctorID == doctorID && a.Status == models.StatusScheduled && AppointmentInterval(a).Overlaps(window) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryRepository) CreateAppointment(ctx context.Context, appt *models.Appointment) error {
	if m.failCreate != nil {
		return m.failCreate
	}
	appt.ID = uuid.NewString()
	m.appointments[appt.ID] = *appt
	return nil
}

func (m *memoryRepository) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (m *memoryRepository) LockAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	return m.GetAppointment(ctx, id)
}

func (m *memoryRepository) UpdateAppointmentStatus(ctx context.Context, id string, from, to models.AppointmentStatus, reason *string) (*models.Appointment, error) {
	a, ok := m.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrStatusChanged
	}
	a.Status = to
	if reason != nil {
		a.Reason = *reason
	}
	m.appointments[id] = a
	return &a, nil
}

func (m *memoryRepository) ListUpcoming(ctx context.Context, filter UpcomingFilter) ([]models.Appointment, error) {
	out := lo.Filter(lo.Values(m.appointments), func(a models.Appointment, _ int) bool {
		return a.Status == models.StatusScheduled &&
			a.ScheduledTime.After(filter.After) &&
			(filter.PatientID == "" || a.PatientID == filter.PatientID) &&
			(filter.DoctorID == "" || a.DoctorID == filter.DoctorID)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledTime.Before(out[j].ScheduledTime) })
	return out, nil
}

func (m *memoryRepository) HasSessionRecord(ctx context.Context, appointmentID string) (bool, error) {
	_, ok := m.sessionRecords[appointmentID]
	return ok, nil
}

func (m *memoryRepository) CreateSessionRecord(ctx context.Context, rec *models.SessionRecord) error {
	if _, ok := m.sessionRecords[rec.AppointmentID]; ok {
		return ErrSessionRecordExists
	}
	rec.ID = uuid.NewString()
	m.sessionRecords[rec.AppointmentID] = *rec
	return nil
}

func (m *memoryRepository) InsertEvent(ctx context.Context, ev *models.AppointmentEvent) error {
	ev.ID = uint64(len(m.events) + 1)
	m.events = append(m.events, *ev)
	return nil
}

func (m *memoryRepository) scheduledFor(doctorID string) []models.Appointment {
	return lo.Filter(lo.Values(m.appointments), func(a models.Appointment, _ int) bool {
		return a.DoctorID == doctorID && a.Status == models.StatusScheduled
	})
}
