package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"loancollect/config"
	"loancollect/models"
	"loancollect/utils"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Database is the postgres backed Store
type Database struct {
	DB *gorm.DB
}

var _ Store = (*Database)(nil)

// NewDatabase connects to postgres, configures the pool and applies migrations.
func NewDatabase(cfg *config.Config) (*Database, error) {
	dsn, err := BuildDSN(cfg.DB.URL, cfg.DB.ServiceKey)
	if err != nil {
		return nil, err
	}

	gormLogger := logger.New(
		utils.Log,
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get connection pool: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if cfg.DB.Migrate {
		if err := runMigrations(dsn); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	return &Database{DB: db}, nil
}

// BuildDSN injects the service credential into a postgres URL as its password.
func BuildDSN(rawURL, serviceKey string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("DATABASE_URL must use the postgres scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("DATABASE_URL has no host")
	}

	username := "postgres"
	if u.User != nil && u.User.Username() != "" {
		username = u.User.Username()
	}
	u.User = url.UserPassword(username, serviceKey)

	q := u.Query()
	if q.Get("sslmode") == "" {
		if strings.HasPrefix(u.Hostname(), "localhost") || u.Hostname() == "127.0.0.1" {
			q.Set("sslmode", "disable")
		} else {
			q.Set("sslmode", "require")
		}
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func runMigrations(dsn string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Close closes the connection pool
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (d *Database) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := d.DB.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (d *Database) ListCenters(ctx context.Context, activeOnly bool) ([]models.Center, error) {
	centers := []models.Center{}
	q := d.DB.WithContext(ctx).Order("id ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&centers).Error; err != nil {
		return nil, err
	}
	return centers, nil
}

func (d *Database) GetCenter(ctx context.Context, id uint) (*models.Center, error) {
	var center models.Center
	if err := d.DB.WithContext(ctx).First(&center, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &center, nil
}

func (d *Database) updateCenter(ctx context.Context, id uint, fields map[string]interface{}) error {
	res := d.DB.WithContext(ctx).Model(&models.Center{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *Database) SetCenterActive(ctx context.Context, id uint, active bool) error {
	return d.updateCenter(ctx, id, map[string]interface{}{"is_active": active})
}

func (d *Database) SetCenterDayClosed(ctx context.Context, id uint, closed bool, at *time.Time) error {
	return d.updateCenter(ctx, id, map[string]interface{}{
		"day_closed":      closed,
		"day_closed_date": at,
	})
}

func (d *Database) ReopenCentersClosedBefore(ctx context.Context, before time.Time) (int64, error) {
	res := d.DB.WithContext(ctx).Model(&models.Center{}).
		Where("day_closed = ? AND day_closed_date < ?", true, before).
		Updates(map[string]interface{}{"day_closed": false, "day_closed_date": nil})
	return res.RowsAffected, res.Error
}

func (d *Database) ListMembersWithLoans(ctx context.Context, centerID uint) ([]models.Member, error) {
	members := []models.Member{}
	err := d.DB.WithContext(ctx).
		Preload("Loans", func(db *gorm.DB) *gorm.DB {
			return db.Order("loans.id ASC")
		}).
		Where("center_id = ?", centerID).
		Order("id ASC").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (d *Database) FindMemberLoanID(ctx context.Context, memberID uint) (uint, error) {
	var loan models.Loan
	err := d.DB.WithContext(ctx).
		Select("id").
		Where("member_id = ?", memberID).
		Order("id ASC").
		First(&loan).Error
	if err != nil {
		return 0, notFound(err)
	}
	return loan.ID, nil
}

func (d *Database) NextPendingInstallment(ctx context.Context, loanID uint) (*models.Installment, error) {
	var inst models.Installment
	err := d.DB.WithContext(ctx).
		Where("loan_id = ? AND status = ?", loanID, models.InstallmentStatusPending).
		Order("week_no ASC").
		First(&inst).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &inst, nil
}

// UpsertInstallments inserts new weeks. On an existing (loan_id, week_no)
// only the expected amount and the date change, collection state is kept.
func (d *Database) UpsertInstallments(ctx context.Context, rows []models.Installment) error {
	return d.DB.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "loan_id"}, {Name: "week_no"}},
			DoUpdates: clause.AssignmentColumns([]string{"expected_amount", "collection_date"}),
		}).
		Create(&rows).Error
}

func (d *Database) LockLoanInstallments(ctx context.Context, loanID uint) ([]models.Installment, error) {
	rows := []models.Installment{}
	err := d.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("loan_id = ?", loanID).
		Order("week_no ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (d *Database) SaveInstallment(ctx context.Context, inst *models.Installment) error {
	return d.DB.WithContext(ctx).
		Model(&models.Installment{ID: inst.ID}).
		Select("expected_amount", "paid_amount", "status", "paid_at", "batch_id").
		Updates(inst).Error
}

func (d *Database) ListInstallmentsByDate(ctx context.Context, date models.Date, status models.InstallmentStatus) ([]models.Installment, error) {
	rows := []models.Installment{}
	q := d.DB.WithContext(ctx).
		Preload("Loan.Member.Center").
		Where("collection_date = ?", date.String()).
		Order("id ASC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (d *Database) CreateDenomination(ctx context.Context, den *models.Denomination) error {
	return d.DB.WithContext(ctx).Create(den).Error
}

func (d *Database) CreateScheduleMarker(ctx context.Context, m *models.ScheduleMarker) error {
	return d.DB.WithContext(ctx).Create(m).Error
}

func (d *Database) Transaction(ctx context.Context, fn func(Store) error) error {
	return d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Database{DB: tx})
	})
}
