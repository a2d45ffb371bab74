package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"telemed-server/internal/accounts"
	"telemed-server/internal/config"
	"telemed-server/internal/logger"
	"telemed-server/internal/models"
)

const seedPassword = "password123"

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
}

var bloodTypes = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

func main() {
	doctors := flag.Int("doctors", 20, "number of doctors to create")
	pending := flag.Int("pending", 5, "how many of the doctors stay pending verification")
	patients := flag.Int("patients", 100, "number of patients to create")
	adminEmail := flag.String("admin-email", "admin@telemed.local", "email of the seeded admin")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	db, err := models.InitDB(models.DatabaseConfig{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
	if err != nil {
		log.WithError(err).Fatal("connect to database")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	gofakeit.Seed(time.Now().UnixNano())

	admin, err := seedAdmin(ctx, db, *adminEmail)
	if err != nil {
		log.WithError(err).Fatal("seed admin")
	}

	svc := accounts.NewService(accounts.NewGormRepository(db), nil, cfg, log)
	adminActor := models.Actor{UserID: admin.ID, Role: models.RoleAdmin}

	if err := seedDoctors(ctx, svc, adminActor, *doctors, *pending); err != nil {
		log.WithError(err).Fatal("seed doctors")
	}
	if err := seedPatients(ctx, svc, *patients); err != nil {
		log.WithError(err).Fatal("seed patients")
	}

	log.WithFields(logrus.Fields{
		"admin":    admin.Email,
		"doctors":  *doctors,
		"pending":  *pending,
		"patients": *patients,
		"password": seedPassword,
	}).Info("seed complete")
}

// seedAdmin creates the admin directly; registration only creates patients and doctors
func seedAdmin(ctx context.Context, db *gorm.DB, email string) (*models.User, error) {
	var admin models.User
	err := db.WithContext(ctx).Where("email = ?", email).First(&admin).Error
	if err == nil {
		return &admin, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	admin = models.User{
		Email:     email,
		FirstName: "Site",
		LastName:  "Admin",
		Role:      models.RoleAdmin,
		IsActive:  true,
	}
	if err := admin.SetPassword(seedPassword); err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Create(&admin).Error; err != nil {
		return nil, err
	}
	return &admin, nil
}

func seedDoctors(ctx context.Context, svc *accounts.Service, admin models.Actor, count, pending int) error {
	for i := 0; i < count; i++ {
		user, err := svc.RegisterDoctor(ctx, accounts.RegisterDoctorInput{
			UserInput:       fakeUser("doctor", i),
			LicenseNumber:   fmt.Sprintf("LIC-%s", strings.ToUpper(gofakeit.LetterN(8))),
			Specialization:  gofakeit.RandomString(specialties),
			ConsultationFee: decimal.NewFromFloat(gofakeit.Float64Range(30, 300)).Round(2),
			Availability: []models.AvailabilitySlot{
				{Day: "Monday", Times: []string{"09:00", "10:00", "11:00"}},
				{Day: "Wednesday", Times: []string{"14:00", "15:00"}},
				{Day: "Friday", Times: []string{"09:00", "13:00"}},
			},
			Description: gofakeit.Sentence(12),
		})
		if err != nil {
			return fmt.Errorf("doctor %d: %w", i, err)
		}

		if i < pending {
			continue
		}
		if _, err := svc.SetVerificationStatus(ctx, admin, user.DoctorProfile.ID, models.VerificationApproved); err != nil {
			return fmt.Errorf("approve doctor %d: %w", i, err)
		}
	}
	return nil
}

func seedPatients(ctx context.Context, svc *accounts.Service, count int) error {
	for i := 0; i < count; i++ {
		blood := models.BloodType(gofakeit.RandomString(bloodTypes))
		height := float64(gofakeit.Number(150, 200))
		weight := float64(gofakeit.Number(45, 120))

		_, err := svc.RegisterPatient(ctx, accounts.RegisterPatientInput{
			UserInput: fakeUser("patient", i),
			Profile: accounts.PatientProfileInput{
				BloodType: &blood,
				Height:    &height,
				Weight:    &weight,
			},
		})
		if err != nil {
			return fmt.Errorf("patient %d: %w", i, err)
		}
	}
	return nil
}

func fakeUser(kind string, i int) accounts.UserInput {
	first, last := gofakeit.FirstName(), gofakeit.LastName()
	dob := gofakeit.DateRange(time.Now().AddDate(-80, 0, 0), time.Now().AddDate(-18, 0, 0))

	return accounts.UserInput{
		Email:       strings.ToLower(fmt.Sprintf("%s.%s.%s%d@example.com", kind, first, last, i)),
		Password:    seedPassword,
		Password2:   seedPassword,
		FirstName:   first,
		LastName:    last,
		Phone:       gofakeit.Phone(),
		Gender:      models.Gender(gofakeit.RandomString([]string{"male", "female"})),
		DateOfBirth: &dob,
		Address:     gofakeit.Address().Address,
	}
}
