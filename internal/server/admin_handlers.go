package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/pkoukos/stockfolio/internal/modules/auth"
	"github.com/pkoukos/stockfolio/internal/reliability"
	"github.com/pkoukos/stockfolio/internal/scheduler"
)

// AdminHandlers handles admin-only management endpoints
type AdminHandlers struct {
	log       zerolog.Logger
	users     *auth.UserRepository
	scheduler *scheduler.Scheduler
	priceSync scheduler.Job
	backups   *reliability.BackupService // nil when backups are not configured
}

// NewAdminHandlers creates a new admin handlers instance
func NewAdminHandlers(
	users *auth.UserRepository,
	sched *scheduler.Scheduler,
	priceSync scheduler.Job,
	backups *reliability.BackupService,
	log zerolog.Logger,
) *AdminHandlers {
	return &AdminHandlers{
		log:       log.With().Str("component", "admin_handlers").Logger(),
		users:     users,
		scheduler: sched,
		priceSync: priceSync,
		backups:   backups,
	}
}

// RegisterRoutes registers admin routes. The caller mounts these behind the
// admin middleware.
func (h *AdminHandlers) RegisterRoutes(r chi.Router) {
	r.Get("/users", h.HandleListUsers)
	r.Delete("/users/{id}", h.HandleDeleteUser)
	r.Get("/jobs", h.HandleListJobs)
	r.Post("/sync", h.HandleTriggerSync)
	r.Post("/backup", h.HandleTriggerBackup)
	r.Get("/backups", h.HandleListBackups)
}

// HandleListUsers returns all registered users
// GET /api/admin/users
func (h *AdminHandlers) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list users")
		writeError(w, http.StatusInternalServerError, "Failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, users)
}

// HandleDeleteUser removes a user and their data
// DELETE /api/admin/users/{id}
func (h *AdminHandlers) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	admin, _ := auth.UserFromContext(r.Context())
	if admin != nil && admin.ID == id {
		writeError(w, http.StatusBadRequest, "Cannot delete your own account here")
		return
	}

	if err := h.users.Delete(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted"})
}

// HandleListJobs returns all scheduled jobs with their last outcome
// GET /api/admin/jobs
func (h *AdminHandlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.scheduler.Jobs())
}

// HandleTriggerSync runs the price sync job in the background
// POST /api/admin/sync
func (h *AdminHandlers) HandleTriggerSync(w http.ResponseWriter, r *http.Request) {
	go func() {
		if err := h.scheduler.RunNow(h.priceSync); err != nil {
			h.log.Error().Err(err).Msg("Manual price sync failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Price sync started"})
}

// HandleTriggerBackup creates and uploads a backup immediately
// POST /api/admin/backup
func (h *AdminHandlers) HandleTriggerBackup(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		writeError(w, http.StatusServiceUnavailable, "Backups are not configured")
		return
	}

	key, err := h.backups.Backup(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Manual backup failed")
		writeError(w, http.StatusInternalServerError, "Backup failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Backup uploaded", "key": key})
}

// HandleListBackups lists stored backups
// GET /api/admin/backups
func (h *AdminHandlers) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		writeError(w, http.StatusServiceUnavailable, "Backups are not configured")
		return
	}

	backups, err := h.backups.ListBackups(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list backups")
		writeError(w, http.StatusInternalServerError, "Failed to list backups")
		return
	}

	writeJSON(w, http.StatusOK, backups)
}
