package wiki

import (
	"io"
	"time"
)

// Page is a wiki entry persisted in the database. Content holds raw
// markdown exactly as the author submitted it; sanitization happens at
// render time, never at rest.
type Page struct {
	ID              uint   `gorm:"primaryKey"`
	Name            string `gorm:"size:255;uniqueIndex:idx_pages_name;not null"`
	Content         string `gorm:"type:text;not null"`
	LastModifiedUtc time.Time
	Attachments     []Attachment `gorm:"foreignKey:PageID;constraint:OnDelete:CASCADE"`
}

// TableName defines the table name for the Page model.
func (Page) TableName() string {
	return "pages"
}

// Attachment records a file uploaded to a page. The blob payload itself
// lives in the blob store under FileID.
type Attachment struct {
	ID              uint   `gorm:"primaryKey"`
	PageID          uint   `gorm:"index;not null"`
	FileID          string `gorm:"size:64;uniqueIndex:idx_attachments_file_id;not null"`
	FileName        string `gorm:"size:255;not null"`
	MimeType        string `gorm:"size:255"`
	LastModifiedUtc time.Time
}

// TableName defines the table name for the Attachment model.
func (Attachment) TableName() string {
	return "attachments"
}

// User is a login credential record. Password holds a bcrypt hash.
type User struct {
	ID       uint   `gorm:"primaryKey"`
	Name     string `gorm:"size:255;uniqueIndex:idx_users_name;not null"`
	Password string `gorm:"size:255;not null"`
}

// TableName defines the table name for the User model.
func (User) TableName() string {
	return "users"
}

// FileBlob is the durable payload of an attachment, keyed by the
// externally generated file id.
type FileBlob struct {
	FileID          string `gorm:"primaryKey;size:64"`
	FileName        string `gorm:"size:255;not null"`
	MimeType        string `gorm:"size:255"`
	Data            []byte `gorm:"not null"`
	LastModifiedUtc time.Time
}

// TableName defines the table name for the FileBlob model.
func (FileBlob) TableName() string {
	return "file_blobs"
}

// BlobMeta describes a stored blob without materializing its payload.
type BlobMeta struct {
	FileID   string
	FileName string
	MimeType string
}

// PageInput carries the fields of a page save request. A nil ID means
// insert; a present ID means update in place.
type PageInput struct {
	ID         *uint
	Name       string
	Content    string
	Attachment *AttachmentUpload
}

// AttachmentUpload is an optional file payload accompanying a page save.
type AttachmentUpload struct {
	FileName    string
	ContentType string
	Reader      io.Reader
}
