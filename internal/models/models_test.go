package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppointment_BeforeSaveSetsEndTime(t *testing.T) {
	start := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	appt := &Appointment{ScheduledTime: start, Duration: 30}

	require.NoError(t, appt.BeforeSave(nil))
	assert.Equal(t, start.Add(30*time.Minute), appt.EndTime)
}

func TestUser_Password(t *testing.T) {
	u := &User{}
	require.NoError(t, u.SetPassword("s3cret-pass"))
	assert.NotEqual(t, "s3cret-pass", u.Password)
	assert.True(t, u.CheckPassword("s3cret-pass"))
	assert.False(t, u.CheckPassword("wrong"))
}

func TestUser_FullName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", (&User{FirstName: "Ada", LastName: "Lovelace"}).FullName())
	assert.Equal(t, "Ada", (&User{FirstName: "Ada"}).FullName())
}

func TestStatuses(t *testing.T) {
	assert.True(t, StatusNoShow.Valid())
	assert.False(t, AppointmentStatus("ARCHIVED").Valid())
	assert.True(t, VerificationRejected.Valid())
	assert.False(t, VerificationStatus("maybe").Valid())

	var p *DoctorProfile
	assert.False(t, p.IsApproved())
	assert.True(t, (&DoctorProfile{VerificationStatus: VerificationApproved}).IsApproved())
}

func TestRefreshToken_Usable(t *testing.T) {
	now := time.Now()
	assert.True(t, (&RefreshToken{ExpiresAt: now.Add(time.Hour)}).Usable(now))
	assert.False(t, (&RefreshToken{ExpiresAt: now.Add(time.Hour), IsRevoked: true}).Usable(now))
	assert.False(t, (&RefreshToken{ExpiresAt: now.Add(-time.Hour)}).Usable(now))
}
