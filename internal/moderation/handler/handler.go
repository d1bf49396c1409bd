package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"openmediamap/internal/identity"
	"openmediamap/internal/moderation/service"
	"openmediamap/internal/submission/models"
	dErrors "openmediamap/pkg/domain-errors"
	audit "openmediamap/pkg/platform/audit"
	"openmediamap/pkg/platform/httputil"
	"openmediamap/pkg/requestcontext"
)

const (
	photoField        = "photo"
	multipartMemLimit = 1 << 20
	maxJSONBody       = 16 << 10
)

// Service defines the moderation operations served over HTTP.
type Service interface {
	Submit(ctx context.Context, who identity.Identity, req service.SubmitRequest) (*models.Submission, error)
	Approve(ctx context.Context, who identity.Identity, id int64) error
	Reject(ctx context.Context, who identity.Identity, id int64) error
	SoftDelete(ctx context.Context, who identity.Identity, id int64, reason string) error
	ListApproved(ctx context.Context) ([]*models.Submission, error)
	ListPending(ctx context.Context, who identity.Identity) ([]*models.Submission, error)
	RecentActions(ctx context.Context, who identity.Identity, limit int) ([]*audit.AdminAction, error)
	UserStats(ctx context.Context, username string) (*service.UserStats, error)
}

// Handler serves the submission, moderation and profile stats endpoints.
type Handler struct {
	service        Service
	logger         *slog.Logger
	maxUploadBytes int64
}

func New(svc Service, logger *slog.Logger, maxUploadBytes int64) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: svc, logger: logger, maxUploadBytes: maxUploadBytes}
}

// Register mounts the routes. requireAuth must attach a verified identity;
// requireAdmin must reject non-admin identities.
func (h *Handler) Register(r chi.Router, requireAuth, requireAdmin func(http.Handler) http.Handler) {
	r.Route("/api/submissions", func(r chi.Router) {
		r.Get("/approved", h.handleListApproved)
		r.With(requireAuth).Post("/submit", h.handleSubmit)

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth, requireAdmin)
			r.Get("/pending", h.handleListPending)
			r.Post("/{id}/approve", h.handleApprove)
			r.Delete("/{id}/reject", h.handleReject)
			r.Post("/{id}/soft-delete", h.handleSoftDelete)
		})
	})
	r.With(requireAuth, requireAdmin).Get("/api/admin/actions", h.handleRecentActions)
	r.Get("/api/users/{username}/stats", h.handleUserStats)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	who, _ := identity.FromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartMemLimit)
	if err := r.ParseMultipartForm(multipartMemLimit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(ctx, w, dErrors.New(dErrors.CodeValidation, "Photo exceeds the maximum upload size"))
			return
		}
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "invalid multipart form"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	photo, err := h.readPhoto(r)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	sub, err := h.service.Submit(ctx, who, service.SubmitRequest{
		Draft: draftFromForm(r),
		Photo: photo,
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, SubmitResponse{
		Message: "Submission received",
		Data:    toAdminSubmissionResponse(sub),
	})
}

func (h *Handler) readPhoto(r *http.Request) ([]byte, error) {
	file, header, err := r.FormFile(photoField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid photo upload")
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		return nil, dErrors.New(dErrors.CodeValidation, "Photo exceeds the maximum upload size")
	}
	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid photo upload")
	}
	if int64(len(data)) > h.maxUploadBytes {
		return nil, dErrors.New(dErrors.CodeValidation, "Photo exceeds the maximum upload size")
	}
	return data, nil
}

func (h *Handler) handleListApproved(w http.ResponseWriter, r *http.Request) {
	subs, err := h.service.ListApproved(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSubmissionList(subs))
}

func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	who, _ := identity.FromContext(ctx)
	subs, err := h.service.ListPending(ctx, who)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAdminSubmissionList(subs))
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "Submission approved", func(ctx context.Context, who identity.Identity, id int64) error {
		return h.service.Approve(ctx, who, id)
	})
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "Submission rejected", func(ctx context.Context, who identity.Identity, id int64) error {
		return h.service.Reject(ctx, who, id)
	})
}

func (h *Handler) handleSoftDelete(w http.ResponseWriter, r *http.Request) {
	var req SoftDeleteRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			h.writeError(r.Context(), w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
	}
	h.decide(w, r, "Submission deleted", func(ctx context.Context, who identity.Identity, id int64) error {
		return h.service.SoftDelete(ctx, who, id, req.Reason)
	})
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, message string, fn func(context.Context, identity.Identity, int64) error) {
	ctx := r.Context()
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	who, _ := identity.FromContext(ctx)
	if err := fn(ctx, who, id); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, MessageResponse{Message: message})
}

func (h *Handler) handleRecentActions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	who, _ := identity.FromContext(ctx)

	limit := audit.MaxRecent
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeError(ctx, w, dErrors.New(dErrors.CodeValidation, "limit must be a positive integer"))
			return
		}
		limit = n
	}

	actions, err := h.service.RecentActions(ctx, who, limit)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toActionList(actions))
}

func (h *Handler) handleUserStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.service.UserStats(ctx, chi.URLParam(r, "username"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toUserStatsResponse(stats))
}

// parseID accepts only positive base-10 integers.
func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "Invalid id")
	}
	return id, nil
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	level := slog.LevelWarn
	if de, ok := dErrors.As(err); !ok || httputil.StatusFor(de.Code) >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, "request failed",
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteError(w, err)
}
