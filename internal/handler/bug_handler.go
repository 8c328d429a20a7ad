package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/prn-tf/bugtracker/internal/auth"
	"github.com/prn-tf/bugtracker/internal/domain"
	"github.com/prn-tf/bugtracker/internal/policy"
	"github.com/prn-tf/bugtracker/internal/service"
	"github.com/prn-tf/bugtracker/internal/storage"
)

// Flash texts of the bug pages.
const (
	MsgDashboardFailed    = "Failed to load dashboard"
	MsgBugReported        = "Bug reported successfully"
	MsgReportFailed       = "Failed to report bug"
	MsgBugNotFound        = "Bug not found"
	MsgBugLoadFailed      = "Failed to load bug details"
	MsgStatusUpdated      = "Bug status updated to "
	MsgPermissionDenied   = "You do not have permission to perform this action"
	MsgStatusUpdateFailed = "Failed to update bug status"
	MsgStaleBug           = "This bug was changed by someone else. Please review it and try again."
)

// multipartMemory is how much of a multipart body is buffered in memory
// before spilling to temporary files.
const multipartMemory = 1 << 20

func (h *WebHandler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	bugs, err := h.bugService.List(r.Context(), auth.PrincipalFrom(r.Context()))
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load dashboard")
		h.fail(w, r, MsgDashboardFailed, "/")
		return
	}

	h.pages.render(w, http.StatusOK, "dashboard.html", DashboardPageData{
		PageData: h.page(w, r, "Dashboard"),
		Bugs:     bugs,
		Statuses: domain.AllStatuses,
	})
}

func (h *WebHandler) handleNewBugPage(w http.ResponseWriter, r *http.Request) {
	h.pages.render(w, http.StatusOK, "new_bug.html", NewBugPageData{
		PageData:    h.page(w, r, "Report Bug"),
		MaxUploadMB: h.maxUpload / (1 << 20),
	})
}

func (h *WebHandler) handleCreateBug(w http.ResponseWriter, r *http.Request) {
	// Hard cap on the request body. Anything between maxUpload and the cap
	// reaches the storage backend and is rejected there with its own message.
	r.Body = http.MaxBytesReader(w, r.Body, 2*h.maxUpload+multipartMemory)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, r, storage.MsgTooLarge, "/bugs/new")
			return
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			h.logger.Debug().Err(err).Msg("malformed bug report form")
			h.fail(w, r, MsgReportFailed, "/bugs/new")
			return
		}
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	input := service.CreateBugInput{
		Page:        r.FormValue("page"),
		Description: r.FormValue("description"),
	}

	file, header, err := r.FormFile("image")
	switch {
	case err == nil:
		defer file.Close()
		input.Image = &storage.Attachment{
			Filename: header.Filename,
			Size:     header.Size,
			Body:     file,
		}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		h.logger.Debug().Err(err).Msg("failed to read attachment")
		h.fail(w, r, MsgReportFailed, "/bugs/new")
		return
	}

	_, err = h.bugService.Create(r.Context(), auth.PrincipalFrom(r.Context()), input)
	if err != nil {
		var uerr *domain.UploadError
		var verr *domain.ValidationError
		switch {
		case errors.As(err, &uerr):
			h.fail(w, r, uerr.Reason, "/bugs/new")
		case errors.As(err, &verr):
			h.fail(w, r, strings.Join(verr.Messages, ". "), "/bugs/new")
		default:
			h.logger.Error().Err(err).Msg("failed to report bug")
			h.fail(w, r, MsgReportFailed, "/bugs/new")
		}
		return
	}

	h.success(w, r, MsgBugReported, "/dashboard")
}

func (h *WebHandler) handleBugDetail(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFrom(r.Context())

	bug, err := h.bugService.Get(r.Context(), principal, urlID(r))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.fail(w, r, MsgBugNotFound, "/dashboard")
			return
		}
		h.logger.Error().Err(err).Msg("failed to load bug")
		h.fail(w, r, MsgBugLoadFailed, "/dashboard")
		return
	}

	h.pages.render(w, http.StatusOK, "bug_detail.html", BugDetailPageData{
		PageData:  h.page(w, r, bug.Page),
		Bug:       bug,
		Statuses:  domain.AllStatuses,
		CanTriage: principal.IsAdmin,
		CanCancel: bug.Status != domain.StatusCancelled && policy.CanPerform(principal, policy.ActionSetBugStatus, policy.Resource{
			Bug:    bug,
			Status: domain.StatusCancelled,
		}),
	})
}

func (h *WebHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := urlID(r)
	if err := r.ParseForm(); err != nil {
		h.fail(w, r, MsgStatusUpdateFailed, "/dashboard")
		return
	}

	status := domain.BugStatus(strings.TrimSpace(r.PostFormValue("status")))
	version, _ := strconv.ParseInt(r.PostFormValue("version"), 10, 64)

	bug, err := h.bugService.UpdateStatus(r.Context(), auth.PrincipalFrom(r.Context()), service.UpdateStatusInput{
		BugID:           id,
		Status:          status,
		ExpectedVersion: version,
	})

	back := "/bugs/" + id.String()
	switch {
	case err == nil:
		h.success(w, r, MsgStatusUpdated+bug.Status.String(), back)
	case errors.Is(err, domain.ErrNotFound):
		h.fail(w, r, MsgBugNotFound, "/dashboard")
	case errors.Is(err, domain.ErrPermissionDenied):
		h.fail(w, r, MsgPermissionDenied, back)
	case errors.Is(err, domain.ErrStaleBug):
		h.fail(w, r, MsgStaleBug, back)
	default:
		h.logger.Error().Err(err).Str("bug_id", id.String()).Msg("failed to update bug status")
		h.fail(w, r, MsgStatusUpdateFailed, "/dashboard")
	}
}
