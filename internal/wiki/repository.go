package wiki

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PageRepository defines persistence operations for wiki pages.
type PageRepository interface {
	ListAll(ctx context.Context) ([]Page, error)
	GetByName(ctx context.Context, name string) (*Page, error)
	GetByID(ctx context.Context, id uint) (*Page, error)
	Save(ctx context.Context, page *Page) error
	Delete(ctx context.Context, id uint) (bool, error)
	RemoveAttachment(ctx context.Context, attachmentID uint) (bool, error)
}

// GormPageRepository persists pages using a Gorm database connection.
type GormPageRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewPageRepository constructs a Gorm-backed page repository.
func NewPageRepository(db *gorm.DB, logger *logrus.Logger) (*GormPageRepository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &GormPageRepository{db: db, logger: logger}, nil
}

var _ PageRepository = (*GormPageRepository)(nil)

// ListAll returns every page record with its attachments. Ordering for
// display is the caller's responsibility.
func (r *GormPageRepository) ListAll(ctx context.Context) ([]Page, error) {
	var pages []Page

	if err := r.db.WithContext(ctx).Preload("Attachments").Find(&pages).Error; err != nil {
		r.logError(nil, err, "listing pages")
		return nil, eris.Wrap(err, "listing pages")
	}

	return pages, nil
}

// GetByName returns the page stored under the normalized form of name, or
// nil when not found. Names are persisted lower-cased, so the unique index
// on name serves the case-insensitive contract.
func (r *GormPageRepository) GetByName(ctx context.Context, name string) (*Page, error) {
	normalized := NormalizeName(name)
	if normalized == "" {
		return nil, eris.New("page name is required")
	}

	var page Page
	err := r.db.WithContext(ctx).Preload("Attachments").First(&page, "name = ?", normalized).Error
	if err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logError(logrus.Fields{"name": normalized}, err, "fetching page by name")
		return nil, eris.Wrapf(err, "fetching page by name: %s", normalized)
	}

	return &page, nil
}

// GetByID returns the page for the provided id or nil when not found.
func (r *GormPageRepository) GetByID(ctx context.Context, id uint) (*Page, error) {
	var page Page
	err := r.db.WithContext(ctx).Preload("Attachments").First(&page, "id = ?", id).Error
	if err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logError(logrus.Fields{"page_id": id}, err, "fetching page by id")
		return nil, eris.Wrapf(err, "fetching page by id: %d", id)
	}

	return &page, nil
}

// Save stores the page, inserting or updating the row as needed. New
// attachments in the association are inserted alongside.
func (r *GormPageRepository) Save(ctx context.Context, page *Page) error {
	if page == nil {
		return eris.New("page is nil")
	}

	if page.Name == "" {
		return eris.New("page name is required")
	}

	if err := r.db.WithContext(ctx).Save(page).Error; err != nil {
		r.logError(logrus.Fields{"name": page.Name}, err, "saving page")
		return eris.Wrapf(err, "saving page: %s", page.Name)
	}

	return nil
}

// Delete removes the page row and its attachment rows. It reports false
// when no row was deleted.
func (r *GormPageRepository) Delete(ctx context.Context, id uint) (bool, error) {
	if err := r.db.WithContext(ctx).Where("page_id = ?", id).Delete(&Attachment{}).Error; err != nil {
		r.logError(logrus.Fields{"page_id": id}, err, "deleting page attachments")
		return false, eris.Wrapf(err, "deleting attachments of page: %d", id)
	}

	result := r.db.WithContext(ctx).Delete(&Page{}, id)
	if result.Error != nil {
		r.logError(logrus.Fields{"page_id": id}, result.Error, "deleting page")
		return false, eris.Wrapf(result.Error, "deleting page: %d", id)
	}

	return result.RowsAffected > 0, nil
}

// RemoveAttachment deletes a single attachment row by its primary key and
// reports whether a row was removed.
func (r *GormPageRepository) RemoveAttachment(ctx context.Context, attachmentID uint) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&Attachment{}, attachmentID)
	if result.Error != nil {
		r.logError(logrus.Fields{"attachment_id": attachmentID}, result.Error, "removing attachment")
		return false, eris.Wrapf(result.Error, "removing attachment: %d", attachmentID)
	}

	return result.RowsAffected > 0, nil
}

func (r *GormPageRepository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
