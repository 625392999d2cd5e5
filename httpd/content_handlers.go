package httpd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/MrEthical07/adminhub/mailer"
	"github.com/MrEthical07/adminhub/middleware"
	"github.com/MrEthical07/adminhub/postgres"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

func (s *Server) handleCreateBlog(w http.ResponseWriter, r *http.Request) {
	account, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}

	blog := postgres.Blog{
		Title:    strings.TrimSpace(r.FormValue("title")),
		Slug:     strings.TrimSpace(r.FormValue("slug")),
		Body:     r.FormValue("body"),
		AuthorID: account.ID,
	}
	if blog.Title == "" || blog.Body == "" || !slugPattern.MatchString(blog.Slug) {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}

	imageURL, mediaKey, err := s.uploadImage(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid image")
		return
	}
	blog.ImageURL = imageURL
	blog.MediaKey = mediaKey

	created, err := s.content.CreateBlog(r.Context(), blog)
	if err != nil {
		// The row never landed; don't leak the uploaded object.
		if mediaKey != "" && s.media != nil {
			if delErr := s.media.Delete(r.Context(), mediaKey); delErr != nil {
				s.logger.Warn("orphaned media cleanup failed", slog.String("key", mediaKey))
			}
		}
		s.writeError(w, err)
		return
	}

	writeData(w, http.StatusCreated, created)
}

// uploadImage reads the optional "image" part and stores it on the media
// host. No file part means no image, not an error.
func (s *Server) uploadImage(r *http.Request) (url, key string, err error) {
	file, header, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", "", nil
		}
		return "", "", err
	}
	defer file.Close()

	if s.media == nil {
		return "", "", errors.New("media uploads disabled")
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return "", "", err
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return "", "", errors.New("image too large")
	}

	contentType := header.Header.Get("Content-Type")
	if !allowedImageTypes[contentType] {
		return "", "", errors.New("unsupported image type")
	}

	return s.media.Upload(r.Context(), data, contentType, header.Filename)
}

func (s *Server) handleListBlogs(w http.ResponseWriter, r *http.Request) {
	blogs, err := s.content.ListBlogs(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, blogs)
}

func (s *Server) handleGetBlog(w http.ResponseWriter, r *http.Request) {
	blog, err := s.content.GetBlogBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, blog)
}

func (s *Server) handleUpdateBlog(w http.ResponseWriter, r *http.Request) {
	existing, err := s.content.GetBlogByID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}

	if title := strings.TrimSpace(r.FormValue("title")); title != "" {
		existing.Title = title
	}
	if slug := strings.TrimSpace(r.FormValue("slug")); slug != "" {
		if !slugPattern.MatchString(slug) {
			writeMessage(w, http.StatusBadRequest, "invalid request")
			return
		}
		existing.Slug = slug
	}
	if body := r.FormValue("body"); body != "" {
		existing.Body = body
	}

	oldMediaKey := existing.MediaKey
	imageURL, mediaKey, err := s.uploadImage(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid image")
		return
	}
	if mediaKey != "" {
		existing.ImageURL = imageURL
		existing.MediaKey = mediaKey
	}

	updated, err := s.content.UpdateBlog(r.Context(), existing)
	if err != nil {
		s.writeError(w, err)
		return
	}

	// The replaced image is unreferenced once the row commits.
	if mediaKey != "" && oldMediaKey != "" && s.media != nil {
		if err := s.media.Delete(r.Context(), oldMediaKey); err != nil {
			s.logger.Warn("stale media cleanup failed", slog.String("key", oldMediaKey))
		}
	}

	writeData(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteBlog(w http.ResponseWriter, r *http.Request) {
	blog, err := s.content.GetBlogByID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.content.DeleteBlog(r.Context(), blog.ID); err != nil {
		s.writeError(w, err)
		return
	}

	if blog.MediaKey != "" && s.media != nil {
		if err := s.media.Delete(r.Context(), blog.MediaKey); err != nil {
			s.logger.Warn("media cleanup failed", slog.String("key", blog.MediaKey))
		}
	}

	writeData(w, http.StatusOK, map[string]any{"deleted": true})
}

func (s *Server) handleCreateContactForm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Message = strings.TrimSpace(req.Message)
	if req.Name == "" || req.Message == "" || !strings.Contains(req.Email, "@") {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}

	form, err := s.content.CreateContactForm(r.Context(), postgres.ContactForm{
		Name:    req.Name,
		Email:   req.Email,
		Message: req.Message,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	// Notification is fire-and-forget: the submission is already durable,
	// a broker hiccup must not fail the request.
	if s.mail != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err := s.mail.Publish(ctx, mailer.Notification{
				Kind:    "contact_form",
				To:      form.Email,
				Subject: "New contact form submission",
				Body:    form.Message,
			})
			if err != nil {
				s.logger.Warn("contact notification publish failed", slog.String("form_id", form.ID))
			}
		}()
	}

	writeData(w, http.StatusCreated, form)
}

func (s *Server) handleListContactForms(w http.ResponseWriter, r *http.Request) {
	forms, err := s.content.ListContactForms(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, forms)
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !strings.Contains(email, "@") {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}

	sub, err := s.content.CreateSubscription(r.Context(), email)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, sub)
}

func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.content.ListSubscriptions(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, subs)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := map[string]string{}

	if _, err := s.engine.LedgerPing(r.Context()); err != nil {
		checks["redis"] = "down"
		status = http.StatusServiceUnavailable
	} else {
		checks["redis"] = "ok"
	}

	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			checks["postgres"] = "down"
			status = http.StatusServiceUnavailable
		} else {
			checks["postgres"] = "ok"
		}
	}

	if status == http.StatusOK {
		writeData(w, status, checks)
		return
	}
	writeMessage(w, status, "unhealthy")
}
