package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Account is the users table row.
type Account struct {
	gorm.Model
	Name         string `gorm:"uniqueIndex;size:16;not null"`
	PasswordHash string `gorm:"not null;default:''"`
	Banned       bool   `gorm:"not null;default:false;index"`
}

// GormStore keeps users in PostgreSQL.
type GormStore struct {
	db *gorm.DB
}

// OpenPostgres connects to dsn, retrying a few times while the database comes up, and
// migrates the users table.
func OpenPostgres(dsn string, logger *zap.Logger) (*GormStore, error) {
	const maxRetries = 3
	const retryInterval = 2 * time.Second

	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i <= maxRetries; i++ {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
		if err == nil {
			break
		}
		logger.Warn("database connect retry", zap.Int("retry", i), zap.Error(err))
		time.Sleep(retryInterval)
	}
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewGormStore(db)
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Account{}); err != nil {
		return nil, fmt.Errorf("migrate users: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Get(ctx context.Context, name string) (User, error) {
	var a Account
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return User{Name: a.Name, PasswordHash: a.PasswordHash, Banned: a.Banned}, nil
}

func (s *GormStore) Create(ctx context.Context, u User) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a Account
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("name = ?", u.Name).First(&a).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			err = tx.Create(&Account{Name: u.Name, PasswordHash: u.PasswordHash, Banned: u.Banned}).Error
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrUserExists
			}
			return err
		case err != nil:
			return err
		case a.PasswordHash != "":
			return ErrUserExists
		}
		// Claim a password-less record left behind by a ban.
		return tx.Model(&a).Update("password_hash", u.PasswordHash).Error
	})
}

func (s *GormStore) SetPassword(ctx context.Context, name, hash string) error {
	res := s.db.WithContext(ctx).Model(&Account{}).Where("name = ?", name).Update("password_hash", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetBanned upserts the flag. Unbanning drops records that only existed to hold a ban.
func (s *GormStore) SetBanned(ctx context.Context, name string, banned bool) error {
	db := s.db.WithContext(ctx)
	if !banned {
		if err := db.Unscoped().Where("name = ? AND password_hash = ?", name, "").Delete(&Account{}).Error; err != nil {
			return err
		}
		return db.Model(&Account{}).Where("name = ?", name).Update("banned", false).Error
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"banned", "updated_at"}),
	}).Create(&Account{Name: name, Banned: banned}).Error
}

func (s *GormStore) Banned(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).Model(&Account{}).Where("banned = ?", true).Order("name").Pluck("name", &names).Error
	return names, err
}
