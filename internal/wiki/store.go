package wiki

import (
	"context"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// Sentinel errors surfaced by the credential operations.
var (
	ErrNoSuchUser    = eris.New("no user exists with this name")
	ErrWrongPassword = eris.New("wrong password")
	ErrUsernameTaken = eris.New("username is taken")
)

// Store composes the page repository, user repository, blob store and
// listing cache behind the operations the web layer calls. It holds no
// mutable state of its own beyond the injected cache.
type Store struct {
	pages     PageRepository
	users     UserRepository
	blobs     BlobStore
	cache     *ListingCache
	logger    *logrus.Logger
	sentryHub *sentry.Hub
	now       func() time.Time
	newFileID func() string
}

// StoreOptions wires the content store with its collaborators.
type StoreOptions struct {
	Pages     PageRepository
	Users     UserRepository
	Blobs     BlobStore
	Cache     *ListingCache
	Logger    *logrus.Logger
	SentryHub *sentry.Hub
}

// NewStore validates the collaborators and constructs the content store.
func NewStore(opts StoreOptions) (*Store, error) {
	if opts.Pages == nil {
		return nil, eris.New("page repository is required")
	}
	if opts.Users == nil {
		return nil, eris.New("user repository is required")
	}
	if opts.Blobs == nil {
		return nil, eris.New("blob store is required")
	}
	if opts.Cache == nil {
		return nil, eris.New("listing cache is required")
	}

	return &Store{
		pages:     opts.Pages,
		users:     opts.Users,
		blobs:     opts.Blobs,
		cache:     opts.Cache,
		logger:    opts.Logger,
		sentryHub: opts.SentryHub,
		now:       func() time.Time { return time.Now().UTC() },
		newFileID: uuid.NewString,
	}, nil
}

// ListAllPages returns every page, served from the listing cache when the
// entry is still live and repopulated from the repository otherwise.
func (s *Store) ListAllPages(ctx context.Context) ([]Page, error) {
	if pages, ok := s.cache.Get(); ok {
		return pages, nil
	}

	pages, err := s.pages.ListAll(ctx)
	if err != nil {
		s.recordError(nil, err, "listing pages from repository")
		return nil, eris.Wrap(err, "listing pages")
	}

	s.cache.Set(pages)
	return pages, nil
}

// GetPage returns the page stored under the given name, matched
// case-insensitively, or nil when no such page exists.
func (s *Store) GetPage(ctx context.Context, name string) (*Page, error) {
	page, err := s.pages.GetByName(ctx, name)
	if err != nil {
		s.recordError(logrus.Fields{"name": name}, err, "retrieving page from repository")
		return nil, eris.Wrapf(err, "retrieving page: %s", name)
	}

	return page, nil
}

// SavePage inserts or updates a page from the given input. The name is
// normalized before storage; content is stored exactly as provided. An
// accompanying attachment payload is written to the blob store under a
// freshly generated file id and appended to the page's attachment list.
// The listing cache is invalidated before the result is returned.
func (s *Store) SavePage(ctx context.Context, input PageInput) (*Page, error) {
	name := NormalizeName(input.Name)
	if name == "" {
		return nil, eris.New("page name is required")
	}

	var existing *Page
	if input.ID != nil {
		loaded, err := s.pages.GetByID(ctx, *input.ID)
		if err != nil {
			s.recordError(logrus.Fields{"page_id": *input.ID}, err, "loading page for update")
			return nil, eris.Wrapf(err, "loading page for update: %d", *input.ID)
		}
		existing = loaded
	}

	var attachment *Attachment
	if input.Attachment != nil && strings.TrimSpace(input.Attachment.FileName) != "" {
		fileID := s.newFileID()
		if err := s.blobs.Upload(ctx, fileID, input.Attachment.FileName, input.Attachment.ContentType, input.Attachment.Reader); err != nil {
			s.recordError(logrus.Fields{"name": name, "file_id": fileID}, err, "uploading attachment blob")
			return nil, eris.Wrapf(err, "uploading attachment for page: %s", name)
		}

		attachment = &Attachment{
			FileID:          fileID,
			FileName:        input.Attachment.FileName,
			MimeType:        input.Attachment.ContentType,
			LastModifiedUtc: s.now(),
		}
	}

	var page Page
	if existing == nil {
		page = Page{
			Name:            name,
			Content:         input.Content,
			LastModifiedUtc: s.now(),
		}
	} else {
		// Copy-on-update keeps the normalization and protection checks
		// centralized at this boundary.
		page = *existing
		page.Name = name
		page.Content = input.Content
		page.LastModifiedUtc = s.now()
	}

	if attachment != nil {
		attachment.PageID = page.ID
		page.Attachments = append(page.Attachments, *attachment)
	}

	if err := s.pages.Save(ctx, &page); err != nil {
		s.recordError(logrus.Fields{"name": name}, err, "persisting page")
		return nil, eris.Wrapf(err, "saving page: %s", name)
	}

	s.cache.Invalidate()
	return &page, nil
}

// DeletePage removes the page with the given id along with its attachment
// blobs. A missing page, or a page named like protectedName, reports
// ok=false without an error; the home page is undeletable.
func (s *Store) DeletePage(ctx context.Context, id uint, protectedName string) (bool, error) {
	page, err := s.pages.GetByID(ctx, id)
	if err != nil {
		s.recordError(logrus.Fields{"page_id": id}, err, "loading page for delete")
		return false, eris.Wrapf(err, "loading page for delete: %d", id)
	}

	if page == nil {
		s.logWarn(logrus.Fields{"page_id": id}, "delete skipped: page not found")
		return false, nil
	}

	if strings.EqualFold(page.Name, NormalizeName(protectedName)) {
		s.logWarn(logrus.Fields{"page_id": id, "name": page.Name}, "delete refused: page is the protected home page")
		return false, nil
	}

	// Blob deletes are best effort; the record removal stays authoritative.
	for _, attachment := range page.Attachments {
		if deleted, blobErr := s.blobs.Delete(ctx, attachment.FileID); blobErr != nil || !deleted {
			fields := logrus.Fields{"page_id": id, "file_id": attachment.FileID}
			if blobErr != nil {
				fields["error"] = blobErr.Error()
			}
			s.logWarn(fields, "failed to delete attachment blob during page delete")
		}
	}

	deleted, err := s.pages.Delete(ctx, id)
	if err != nil {
		s.recordError(logrus.Fields{"page_id": id}, err, "deleting page record")
		return false, eris.Wrapf(err, "deleting page: %d", id)
	}

	if !deleted {
		s.logWarn(logrus.Fields{"page_id": id}, "page record was not deleted")
		return false, nil
	}

	s.cache.Invalidate()
	return true, nil
}

// DeleteAttachment removes the blob with the given file id and then the
// matching attachment entry from the page. When the blob delete fails the
// page is still returned so the caller can redirect contextually. A crash
// between the two steps leaves the blob gone but the entry listed; that
// inconsistency window is documented, not masked.
func (s *Store) DeleteAttachment(ctx context.Context, pageID uint, fileID string) (bool, *Page, error) {
	page, err := s.pages.GetByID(ctx, pageID)
	if err != nil {
		s.recordError(logrus.Fields{"page_id": pageID}, err, "loading page for attachment delete")
		return false, nil, eris.Wrapf(err, "loading page for attachment delete: %d", pageID)
	}

	if page == nil {
		s.logWarn(logrus.Fields{"page_id": pageID, "file_id": fileID}, "attachment delete skipped: page not found")
		return false, nil, nil
	}

	deleted, err := s.blobs.Delete(ctx, fileID)
	if err != nil {
		s.recordError(logrus.Fields{"page_id": pageID, "file_id": fileID}, err, "deleting attachment blob")
		return false, page, eris.Wrapf(err, "deleting attachment blob: %s", fileID)
	}

	if !deleted {
		s.logWarn(logrus.Fields{"page_id": pageID, "file_id": fileID}, "attachment blob could not be deleted")
		return false, page, nil
	}

	remaining := make([]Attachment, 0, len(page.Attachments))
	var removed *Attachment
	for _, attachment := range page.Attachments {
		if removed == nil && strings.EqualFold(attachment.FileID, fileID) {
			match := attachment
			removed = &match
			continue
		}
		remaining = append(remaining, attachment)
	}

	if removed == nil {
		s.logWarn(logrus.Fields{"page_id": pageID, "file_id": fileID}, "blob deleted but page lists no matching attachment")
		return false, page, nil
	}

	ok, err := s.pages.RemoveAttachment(ctx, removed.ID)
	if err != nil {
		s.recordError(logrus.Fields{"page_id": pageID, "file_id": fileID}, err, "removing attachment record")
		return false, page, eris.Wrapf(err, "removing attachment record: %s", fileID)
	}

	if !ok {
		s.logWarn(logrus.Fields{"page_id": pageID, "file_id": fileID}, "blob deleted but attachment record update removed no rows")
		return false, page, nil
	}

	page.Attachments = remaining
	s.cache.Invalidate()
	return true, page, nil
}

// GetFile resolves an attachment download: metadata first so the caller
// can set a content type, then the payload. Both are nil when the file id
// is unknown.
func (s *Store) GetFile(ctx context.Context, fileID string) (*BlobMeta, []byte, error) {
	meta, err := s.blobs.FindMeta(ctx, fileID)
	if err != nil {
		s.recordError(logrus.Fields{"file_id": fileID}, err, "resolving attachment metadata")
		return nil, nil, eris.Wrapf(err, "resolving attachment metadata: %s", fileID)
	}

	if meta == nil {
		return nil, nil, nil
	}

	data, err := s.blobs.Download(ctx, fileID)
	if err != nil {
		s.recordError(logrus.Fields{"file_id": fileID}, err, "downloading attachment")
		return nil, nil, eris.Wrapf(err, "downloading attachment: %s", fileID)
	}

	return meta, data, nil
}

// CanLogin verifies the supplied credentials against the stored bcrypt
// hash. A missing user and a mismatched password are distinct failures.
func (s *Store) CanLogin(ctx context.Context, name, password string) (bool, *User, error) {
	user, err := s.users.FindByName(ctx, name)
	if err != nil {
		s.recordError(logrus.Fields{"name": name}, err, "looking up user for login")
		return false, nil, eris.Wrapf(err, "looking up user: %s", name)
	}

	if user == nil {
		return false, nil, ErrNoSuchUser
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return false, nil, ErrWrongPassword
	}

	return true, user, nil
}

// Register creates a new user with a bcrypt-hashed password. An existing
// name fails with ErrUsernameTaken.
func (s *Store) Register(ctx context.Context, name, password string) (bool, error) {
	existing, err := s.users.FindByName(ctx, name)
	if err != nil {
		s.recordError(logrus.Fields{"name": name}, err, "checking username availability")
		return false, eris.Wrapf(err, "checking username availability: %s", name)
	}

	if existing != nil {
		return false, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.recordError(logrus.Fields{"name": name}, err, "hashing password")
		return false, eris.Wrap(err, "hashing password")
	}

	if err := s.users.Create(ctx, &User{Name: name, Password: string(hash)}); err != nil {
		s.recordError(logrus.Fields{"name": name}, err, "creating user")
		return false, eris.Wrapf(err, "registering user: %s", name)
	}

	return true, nil
}

func (s *Store) recordError(fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		entry.Error(message)
	}

	if s.sentryHub != nil {
		s.sentryHub.CaptureException(err)
	}
}

func (s *Store) logWarn(fields logrus.Fields, message string) {
	if s.logger == nil {
		return
	}

	entry := s.logger.WithFields(fields)
	entry.Warn(message)
}
