package wiki

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// UserRepository defines persistence operations for credential records.
type UserRepository interface {
	FindByName(ctx context.Context, name string) (*User, error)
	Create(ctx context.Context, user *User) error
}

// GormUserRepository persists users using a Gorm database connection.
type GormUserRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewUserRepository constructs a Gorm-backed user repository.
func NewUserRepository(db *gorm.DB, logger *logrus.Logger) (*GormUserRepository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &GormUserRepository{db: db, logger: logger}, nil
}

var _ UserRepository = (*GormUserRepository)(nil)

// FindByName returns the user with the given name or nil when not found.
func (r *GormUserRepository) FindByName(ctx context.Context, name string) (*User, error) {
	if name == "" {
		return nil, eris.New("user name is required")
	}

	var user User
	err := r.db.WithContext(ctx).First(&user, "name = ?", name).Error
	if err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logError(logrus.Fields{"name": name}, err, "fetching user by name")
		return nil, eris.Wrapf(err, "fetching user by name: %s", name)
	}

	return &user, nil
}

// Create inserts a new user row. The unique index on name is the
// authoritative duplicate check; a name that races past the store's
// pre-check still comes back as ErrUsernameTaken.
func (r *GormUserRepository) Create(ctx context.Context, user *User) error {
	if user == nil {
		return eris.New("user is nil")
	}

	if user.Name == "" {
		return eris.New("user name is required")
	}

	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if eris.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUsernameTaken
		}
		r.logError(logrus.Fields{"name": user.Name}, err, "creating user")
		return eris.Wrapf(err, "creating user: %s", user.Name)
	}

	return nil
}

func (r *GormUserRepository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
