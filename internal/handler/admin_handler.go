package handler

import (
	"net/http"

	"github.com/prn-tf/bugtracker/internal/auth"
)

// Flash texts of the admin pages.
const (
	MsgAdminLoadFailed = "Failed to load admin dashboard"
	MsgOwnRole         = "You cannot change your own role"
	MsgRoleUpdated     = "User role updated"
	MsgRoleFailed      = "Failed to update user role"
)

func (h *WebHandler) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := auth.PrincipalFrom(ctx)

	bugs, err := h.bugService.List(ctx, principal)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load admin bugs")
		h.fail(w, r, MsgAdminLoadFailed, "/dashboard")
		return
	}
	users, err := h.userService.List(ctx, principal)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load admin users")
		h.fail(w, r, MsgAdminLoadFailed, "/dashboard")
		return
	}

	rows := make([]AdminUserRow, 0, len(users))
	for _, u := range users {
		rows = append(rows, AdminUserRow{User: u, IsSelf: u.ID == principal.ID})
	}

	h.pages.render(w, http.StatusOK, "admin_dashboard.html", AdminPageData{
		PageData: h.page(w, r, "Admin Dashboard"),
		Bugs:     bugs,
		Users:    rows,
	})
}

func (h *WebHandler) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFrom(r.Context())
	target := urlID(r)

	if target == principal.ID {
		h.fail(w, r, MsgOwnRole, "/admin")
		return
	}
	if err := r.ParseForm(); err != nil {
		h.fail(w, r, MsgRoleFailed, "/admin")
		return
	}

	// Only the exact string "true" grants admin.
	isAdmin := r.PostFormValue("isAdmin") == "true"

	if err := h.userService.SetAdmin(r.Context(), principal, target, isAdmin); err != nil {
		h.logger.Warn().Err(err).Str("user_id", target.String()).Msg("role update failed")
		h.fail(w, r, MsgRoleFailed, "/admin")
		return
	}

	h.success(w, r, MsgRoleUpdated, "/admin")
}
