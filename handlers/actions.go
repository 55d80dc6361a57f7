// forgeboard/handlers/actions.go

package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"forgeboard/media"
	"forgeboard/models"
	"forgeboard/store"
	"forgeboard/utils"

	"github.com/go-chi/chi/v5"
)

// uploadError is an attachment the user has to fix, as opposed to a storage failure.
type uploadError struct{ err error }

func (e *uploadError) Error() string { return e.err.Error() }
func (e *uploadError) Unwrap() error { return e.err }

// HandleSubmit handles the submission form. The optional image is processed and stored
// before the idea is added so the idea carries its URLs from the start.
func HandleSubmit(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleSubmit")
	st := sessionStore(r, app)

	if err := parseForm(r); err != nil {
		logger.Warn("Form parsing error", "error", err)
		renderError(w, r, app, st, http.StatusBadRequest, "error.internal")
		return
	}

	form := submitForm{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Category:    models.Category(r.FormValue("category")),
		Author:      r.FormValue("author"),
	}
	if c, err := models.ParseCategory(string(form.Category)); err == nil {
		form.Category = c
	}
	// A logged-in user always submits under their own name.
	if u, ok := st.User(); ok {
		form.Author = u.Username
	}

	input := models.IdeaInput{
		Title:       form.Title,
		Description: form.Description,
		Category:    form.Category,
		Author:      form.Author,
	}
	if err := input.Normalize().Validate(); err != nil {
		rejectSubmission(w, r, app, st, form, localize(r, app, "error.invalid_idea", map[string]string{"Reason": err.Error()}))
		return
	}

	up, err := uploadAttachment(r, app, logger)
	if err != nil {
		var uerr *uploadError
		if errors.As(err, &uerr) {
			rejectSubmission(w, r, app, st, form, localize(r, app, "error.upload", map[string]string{"Reason": uerr.Error()}))
			return
		}
		reportError(r, logger, "Failed to store attachment", err)
		renderError(w, r, app, st, http.StatusInternalServerError, "error.internal")
		return
	}
	if up != nil {
		input.ImageURL = up.imageURL
		input.ThumbnailURL = up.thumbURL
	}

	idea, err := st.AddIdea(input)
	if err != nil {
		discardUpload(r, app, st, up)
		rejectSubmission(w, r, app, st, form, localize(r, app, "error.invalid_idea", map[string]string{"Reason": invalidReason(err)}))
		return
	}
	app.Metrics().IdeasSubmitted.WithLabelValues(string(idea.Category)).Inc()
	logger.Info("Idea created", "idea_id", idea.ID, "has_image", idea.ImageURL != "")

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func rejectSubmission(w http.ResponseWriter, r *http.Request, app App, st *store.Store, form submitForm, msg string) {
	data := pageData(r, app, st, "Submit an Idea")
	data["Categories"] = models.Categories()
	data["Form"] = form
	data["Error"] = msg
	renderStatus(w, r, app, http.StatusBadRequest, "layout.html", "submit.html", data)
}

type upload struct {
	processed *media.Processed
	imageURL  string
	thumbURL  string
}

// uploadAttachment processes the "image" field if present. No file, or a form that is not
// multipart, returns a nil upload.
func uploadAttachment(r *http.Request, app App, logger *slog.Logger) (*upload, error) {
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, &uploadError{fmt.Errorf("could not read upload: %w", err)}
	}
	defer file.Close()

	data, err := media.ReadUpload(file)
	if err != nil {
		return nil, &uploadError{err}
	}
	processed, err := media.Process(data)
	if err != nil {
		logger.Info("Rejected upload", "filename", header.Filename, "error", err)
		return nil, &uploadError{err}
	}
	imageURL, thumbURL, err := app.Attachments().Save(r.Context(), clientID(r), processed)
	if err != nil {
		return nil, err
	}
	return &upload{processed: processed, imageURL: imageURL, thumbURL: thumbURL}, nil
}

// discardUpload removes the files of an upload whose idea was not created. Files shared
// with an existing idea of the session (same image uploaded twice) are kept.
func discardUpload(r *http.Request, app App, st *store.Store, up *upload) {
	if up == nil {
		return
	}
	for _, idea := range st.Ideas() {
		if idea.ImageURL == up.imageURL {
			return
		}
	}
	app.Attachments().Discard(context.WithoutCancel(r.Context()), clientID(r), up.processed)
}

// HandleVote toggles the session's vote and returns to the page the form came from.
func HandleVote(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleVote")
	st := sessionStore(r, app)
	id := chi.URLParam(r, "id")

	_, cast, err := st.VoteIdea(id)
	switch {
	case errors.Is(err, store.ErrUnauthorized):
		// The store already posted the login prompt.
	case errors.Is(err, store.ErrNotFound):
		st.Notify(models.NotifyError, "error.not_found", nil)
	case err != nil:
		reportError(r, logger, "Vote failed", err)
		st.Notify(models.NotifyError, "error.internal", nil)
	default:
		app.Metrics().Votes.WithLabelValues(voteAction(cast)).Inc()
	}
	http.Redirect(w, r, returnPath(r), http.StatusSeeOther)
}

func voteAction(cast bool) string {
	if cast {
		return "cast"
	}
	return "retract"
}

// HandleStatus applies an admin status change from the detail modal.
func HandleStatus(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleStatus")
	st := sessionStore(r, app)

	if !st.IsAdmin() {
		logger.Info("Status change without admin mode", "client", utils.HashIP(clientID(r)))
		renderError(w, r, app, st, http.StatusForbidden, "admin.required")
		return
	}

	status, err := models.ParseStatus(r.FormValue("status"))
	if err != nil {
		data := pageData(r, app, st, http.StatusText(http.StatusBadRequest))
		data["Status"] = http.StatusBadRequest
		data["Message"] = localize(r, app, "error.invalid_status", map[string]string{"Status": r.FormValue("status")})
		renderStatus(w, r, app, http.StatusBadRequest, "layout.html", "error.html", data)
		return
	}

	idea, err := st.UpdateStatus(chi.URLParam(r, "id"), status, devNoteField(r))
	if errors.Is(err, store.ErrNotFound) {
		renderError(w, r, app, st, http.StatusNotFound, "error.not_found")
		return
	}
	if err != nil {
		reportError(r, logger, "Status update failed", err)
		renderError(w, r, app, st, http.StatusInternalServerError, "error.internal")
		return
	}
	app.Metrics().StatusChanges.WithLabelValues(string(idea.Status)).Inc()
	http.Redirect(w, r, returnPath(r), http.StatusSeeOther)
}

// devNoteField returns nil when the form has no dev_note field, leaving the note untouched.
// A present but blank field clears it.
func devNoteField(r *http.Request) *string {
	if _, ok := r.PostForm["dev_note"]; !ok {
		return nil
	}
	note := strings.TrimSpace(r.PostFormValue("dev_note"))
	return &note
}

// HandleDevToggle flips admin mode for the session.
func HandleDevToggle(w http.ResponseWriter, r *http.Request, app App) {
	st := sessionStore(r, app)
	if st.ToggleAdmin() {
		st.Notify(models.NotifyInfo, "admin.enabled", nil)
	} else {
		st.Notify(models.NotifyInfo, "admin.disabled", nil)
	}
	app.Logger().Info("Admin mode toggled", "handler", "HandleDevToggle", "enabled", st.IsAdmin())
	http.Redirect(w, r, returnPath(r), http.StatusSeeOther)
}

// HandleDismiss closes the current notification early.
func HandleDismiss(w http.ResponseWriter, r *http.Request, app App) {
	sessionStore(r, app).DismissNotification()
	http.Redirect(w, r, returnPath(r), http.StatusSeeOther)
}

// HandleDatabaseBackup snapshots the storage database. LAN only.
func HandleDatabaseBackup(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleDatabaseBackup")
	backupPath, err := app.DB().BackupDatabase()
	if err != nil {
		reportError(r, logger, "Failed to create database backup", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create database backup."}, app)
		return
	}
	logger.Info("Database backup created successfully", "path", backupPath, "ip_hash", utils.HashIP(utils.GetIPAddress(r)))
	respondJSON(w, http.StatusOK, map[string]string{"backup": backupPath}, app)
}
