package wiki

import (
	"context"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// BlobStore persists opaque binary payloads keyed by externally generated
// file ids.
type BlobStore interface {
	Upload(ctx context.Context, fileID, fileName, mimeType string, content io.Reader) error
	Download(ctx context.Context, fileID string) ([]byte, error)
	Delete(ctx context.Context, fileID string) (bool, error)
	FindMeta(ctx context.Context, fileID string) (*BlobMeta, error)
}

// GormBlobStore keeps blobs in the file_blobs table of the same SQLite
// database that holds the page and user collections.
type GormBlobStore struct {
	db     *gorm.DB
	logger *logrus.Logger
	now    func() time.Time
}

// NewBlobStore constructs a Gorm-backed blob store.
func NewBlobStore(db *gorm.DB, logger *logrus.Logger) (*GormBlobStore, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &GormBlobStore{db: db, logger: logger, now: func() time.Time { return time.Now().UTC() }}, nil
}

var _ BlobStore = (*GormBlobStore)(nil)

// Upload stores the full content under fileID. Callers always generate a
// fresh key per attachment; overwriting an existing key is not guarded
// against.
func (s *GormBlobStore) Upload(ctx context.Context, fileID, fileName, mimeType string, content io.Reader) error {
	if fileID == "" {
		return eris.New("file id is required")
	}
	if content == nil {
		return eris.New("content reader is required")
	}

	data, err := io.ReadAll(content)
	if err != nil {
		s.logError(logrus.Fields{"file_id": fileID}, err, "reading blob content")
		return eris.Wrapf(err, "reading blob content: %s", fileID)
	}

	blob := FileBlob{
		FileID:          fileID,
		FileName:        fileName,
		MimeType:        mimeType,
		Data:            data,
		LastModifiedUtc: s.now(),
	}

	if err := s.db.WithContext(ctx).Create(&blob).Error; err != nil {
		s.logError(logrus.Fields{"file_id": fileID}, err, "storing blob")
		return eris.Wrapf(err, "storing blob: %s", fileID)
	}

	return nil
}

// Download returns the blob payload or nil when the key is unknown.
func (s *GormBlobStore) Download(ctx context.Context, fileID string) ([]byte, error) {
	var blob FileBlob
	err := s.db.WithContext(ctx).First(&blob, "file_id = ?", fileID).Error
	if err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		s.logError(logrus.Fields{"file_id": fileID}, err, "downloading blob")
		return nil, eris.Wrapf(err, "downloading blob: %s", fileID)
	}

	return blob.Data, nil
}

// Delete removes the blob row. It reports false when no row was deleted,
// so a repeated delete of the same key fails rather than masking the miss.
func (s *GormBlobStore) Delete(ctx context.Context, fileID string) (bool, error) {
	result := s.db.WithContext(ctx).Delete(&FileBlob{}, "file_id = ?", fileID)
	if result.Error != nil {
		s.logError(logrus.Fields{"file_id": fileID}, result.Error, "deleting blob")
		return false, eris.Wrapf(result.Error, "deleting blob: %s", fileID)
	}

	return result.RowsAffected > 0, nil
}

// FindMeta resolves blob metadata without loading the payload, so download
// responses can set a content type before streaming.
func (s *GormBlobStore) FindMeta(ctx context.Context, fileID string) (*BlobMeta, error) {
	var blob FileBlob
	err := s.db.WithContext(ctx).
		Select("file_id", "file_name", "mime_type").
		First(&blob, "file_id = ?", fileID).Error
	if err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		s.logError(logrus.Fields{"file_id": fileID}, err, "fetching blob metadata")
		return nil, eris.Wrapf(err, "fetching blob metadata: %s", fileID)
	}

	return &BlobMeta{FileID: blob.FileID, FileName: blob.FileName, MimeType: blob.MimeType}, nil
}

func (s *GormBlobStore) logError(fields logrus.Fields, err error, message string) {
	if s.logger == nil {
		return
	}

	entry := s.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
