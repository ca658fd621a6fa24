package http

import (
	stdhttp "net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"
	"github.com/sirupsen/logrus"

	"tinywiki/app/internal/wiki"
)

const (
	displayDateFormat    = "January 02, 2006"
	minPasswordLength    = 8
	maxUploadBytes       = 32 << 20
	errorFallbackMessage = "We couldn't process your request right now."
	accessDeniedMessage  = "Access Denied. Please Login to use this feature."
)

func (s *Server) homeHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	page, err := s.store.GetPage(r.Context(), s.homePageName)
	if err != nil {
		s.recordError(r.Context(), err, "loading home page", nil)
		s.renderError(w, r, stdhttp.StatusInternalServerError, errorFallbackMessage)
		return
	}

	if page == nil {
		stdhttp.Redirect(w, r, "/"+s.homePageName, stdhttp.StatusFound)
		return
	}

	s.renderPageView(w, r, page)
}

func (s *Server) pageHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	pageName := chi.URLParam(r, "pageName")

	page, err := s.store.GetPage(r.Context(), pageName)
	if err != nil {
		s.recordError(r.Context(), err, "loading page", logrus.Fields{"name": pageName})
		s.renderError(w, r, stdhttp.StatusInternalServerError, errorFallbackMessage)
		return
	}

	if page != nil {
		s.renderPageView(w, r, page)
		return
	}

	// Unknown pages open the editor for authors and the login form for
	// everyone else.
	if isLoggedIn(r.Context()) {
		s.renderEditor(w, r, editorData{
			Title:    kebabToTitle(wiki.NormalizeName(pageName)),
			PageName: wiki.NormalizeName(pageName),
		})
		return
	}

	stdhttp.Redirect(w, r, "/auth/login", stdhttp.StatusFound)
}

func (s *Server) editHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if !isLoggedIn(r.Context()) {
		s.renderError(w, r, stdhttp.StatusBadRequest, accessDeniedMessage)
		return
	}

	pageName := r.URL.Query().Get("pageName")

	page, err := s.store.GetPage(r.Context(), pageName)
	if err != nil {
		s.recordError(r.Context(), err, "loading page for edit", logrus.Fields{"name": pageName})
		s.renderError(w, r, stdhttp.StatusInternalServerError, errorFallbackMessage)
		return
	}

	if page == nil {
		s.renderError(w, r, stdhttp.StatusNotFound, "This page does not exist.")
		return
	}

	s.renderEditor(w, r, editorData{
		Title:     kebabToTitle(page.Name),
		PageName:  page.Name,
		PageID:    &page.ID,
		Content:   page.Content,
		Page:      page,
		CanDelete: !s.isHomePage(page.Name),
	})
}

func (s *Server) newPageHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if !isLoggedIn(r.Context()) {
		s.renderError(w, r, stdhttp.StatusBadRequest, accessDeniedMessage)
		return
	}

	pageName := r.URL.Query().Get("pageName")
	if strings.TrimSpace(pageName) == "" {
		stdhttp.Redirect(w, r, "/", stdhttp.StatusFound)
		return
	}

	stdhttp.Redirect(w, r, "/"+wiki.NormalizeName(pageName), stdhttp.StatusFound)
}

func (s *Server) attachmentHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	fileID := r.URL.Query().Get("fileId")
	if fileID == "" {
		s.renderError(w, r, stdhttp.StatusBadRequest, "A file id is required.")
		return
	}

	meta, data, err := s.store.GetFile(r.Context(), fileID)
	if err != nil {
		s.recordError(r.Context(), err, "loading attachment", logrus.Fields{"file_id": fileID})
		s.renderError(w, r, stdhttp.StatusInternalServerError, errorFallbackMessage)
		return
	}

	if meta == nil {
		stdhttp.NotFound(w, r)
		return
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"file_id":   meta.FileID,
			"file_name": meta.FileName,
		}).Info("serving attachment")
	}

	contentType := meta.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(data)
}

func (s *Server) savePageHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	routeName := chi.URLParam(r, "pageName")

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.recordError(r.Context(), err, "parsing page form", logrus.Fields{"name": routeName})
		s.renderError(w, r, stdhttp.StatusBadRequest, "The submitted form could not be read.")
		return
	}

	input := wiki.PageInput{
		Name:    r.FormValue("Name"),
		Content: r.FormValue("Content"),
	}

	if rawID := r.FormValue("Id"); rawID != "" {
		parsed, err := strconv.ParseUint(rawID, 10, 32)
		if err != nil {
			s.renderError(w, r, stdhttp.StatusBadRequest, "The page id is not valid.")
			return
		}
		id := uint(parsed)
		input.ID = &id
	}

	if file, header, err := r.FormFile("Attachment"); err == nil {
		defer file.Close()
		input.Attachment = &wiki.AttachmentUpload{
			FileName:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Reader:      file,
		}
	}

	if errs := validatePageInput(routeName, s.homePageName, input); len(errs) > 0 {
		s.renderEditor(w, r, editorData{
			Title:    kebabToTitle(wiki.NormalizeName(routeName)),
			PageName: wiki.NormalizeName(routeName),
			PageID:   input.ID,
			Content:  input.Content,
			Errors:   errs,
		})
		return
	}

	page, err := s.store.SavePage(r.Context(), input)
	if err != nil {
		s.recordError(r.Context(), err, "saving page", logrus.Fields{"name": input.Name})
		s.renderError(w, r, stdhttp.StatusInternalServerError, "Problem in saving page.")
		return
	}

	stdhttp.Redirect(w, r, "/"+page.Name, stdhttp.StatusFound)
}

func (s *Server) deletePageHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	rawID := r.FormValue("Id")
	if rawID == "" {
		if s.logger != nil {
			s.logger.Warn("unable to delete page because form Id is missing")
		}
		stdhttp.Redirect(w, r, "/", stdhttp.StatusFound)
		return
	}

	parsed, err := strconv.ParseUint(rawID, 10, 32)
	if err != nil {
		s.renderError(w, r, stdhttp.StatusBadRequest, "The page id is not valid.")
		return
	}

	ok, err := s.store.DeletePage(r.Context(), uint(parsed), s.homePageName)
	if err != nil {
		s.recordError(r.Context(), err, "deleting page", logrus.Fields{"page_id": parsed})
	} else if !ok && s.logger != nil {
		s.logger.WithField("page_id", parsed).Warn("unable to delete page")
	}

	stdhttp.Redirect(w, r, "/", stdhttp.StatusFound)
}

func (s *Server) deleteAttachmentHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	fileID := r.FormValue("Id")
	rawPageID := r.FormValue("PageId")
	if fileID == "" || rawPageID == "" {
		if s.logger != nil {
			s.logger.Warn("unable to delete attachment because the form is incomplete")
		}
		stdhttp.Redirect(w, r, "/", stdhttp.StatusFound)
		return
	}

	parsed, err := strconv.ParseUint(rawPageID, 10, 32)
	if err != nil {
		s.renderError(w, r, stdhttp.StatusBadRequest, "The page id is not valid.")
		return
	}

	ok, page, err := s.store.DeleteAttachment(r.Context(), uint(parsed), fileID)
	if err != nil {
		s.recordError(r.Context(), err, "deleting attachment", logrus.Fields{"page_id": parsed, "file_id": fileID})
	} else if !ok && s.logger != nil {
		s.logger.WithFields(logrus.Fields{"page_id": parsed, "file_id": fileID}).Warn("unable to delete attachment")
	}

	if page != nil {
		stdhttp.Redirect(w, r, "/"+page.Name, stdhttp.StatusFound)
		return
	}

	stdhttp.Redirect(w, r, "/", stdhttp.StatusFound)
}

func (s *Server) renderPageView(w stdhttp.ResponseWriter, r *stdhttp.Request, page *wiki.Page) {
	content, err := s.renderer.RenderMarkdown(page.Content)
	if err != nil {
		s.recordError(r.Context(), err, "rendering page markdown", logrus.Fields{"name": page.Name})
		s.renderError(w, r, stdhttp.StatusInternalServerError, errorFallbackMessage)
		return
	}

	data := pageViewData{
		Title:        kebabToTitle(page.Name),
		LoggedIn:     isLoggedIn(r.Context()),
		Page:         page,
		Content:      content,
		LastModified: page.LastModifiedUtc.Format(displayDateFormat),
		AllPages:     s.allPagesSorted(r),
		CSRFField:    csrf.TemplateField(r),
	}

	if err := s.renderer.Render(w, "view", data); err != nil {
		s.recordError(r.Context(), err, "rendering page view", logrus.Fields{"name": page.Name})
	}
}

func (s *Server) renderEditor(w stdhttp.ResponseWriter, r *stdhttp.Request, data editorData) {
	data.LoggedIn = isLoggedIn(r.Context())
	data.AllPages = s.allPagesSorted(r)
	data.CSRFField = csrf.TemplateField(r)

	if err := s.renderer.Render(w, "editor", data); err != nil {
		s.recordError(r.Context(), err, "rendering editor", logrus.Fields{"name": data.PageName})
	}
}

func (s *Server) renderError(w stdhttp.ResponseWriter, r *stdhttp.Request, status int, message string) {
	w.WriteHeader(status)

	data := errorData{
		Title:     "Something went wrong",
		LoggedIn:  isLoggedIn(r.Context()),
		Message:   message,
		CSRFField: csrf.TemplateField(r),
	}
	if status == stdhttp.StatusNotFound {
		data.Title = "Not found"
	}

	if err := s.renderer.Render(w, "error", data); err != nil {
		s.recordError(r.Context(), err, "rendering error page", nil)
	}
}

// allPagesSorted returns the cached listing ordered by name for the
// sidebar. Listing failures degrade to an empty sidebar rather than
// failing the whole page.
func (s *Server) allPagesSorted(r *stdhttp.Request) []wiki.Page {
	pages, err := s.store.ListAllPages(r.Context())
	if err != nil {
		s.recordError(r.Context(), err, "listing pages for sidebar", nil)
		return nil
	}

	sorted := make([]wiki.Page, len(pages))
	copy(sorted, pages)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	return sorted
}

func validatePageInput(routeName, homePageName string, input wiki.PageInput) []string {
	var errs []string

	name := wiki.NormalizeName(input.Name)
	if name == "" {
		errs = append(errs, "Name is required")
	}

	if strings.EqualFold(wiki.NormalizeName(routeName), homePageName) && name != homePageName {
		errs = append(errs, "You cannot modify the home page name. Please keep it "+homePageName)
	}

	if strings.TrimSpace(input.Content) == "" {
		errs = append(errs, "Content is required")
	}

	return errs
}

// kebabToTitle turns a stored page name back into a display title.
func kebabToTitle(name string) string {
	words := strings.Split(name, "-")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
