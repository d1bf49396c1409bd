package handler

import (
	"time"

	"openmediamap/internal/moderation/service"
	"openmediamap/internal/submission/models"
	audit "openmediamap/pkg/platform/audit"
)

// SubmissionResponse is the public view of a submission. Lat/Lng are present
// only for records with a valid location.
type SubmissionResponse struct {
	ID           int64     `json:"id"`
	Caption      string    `json:"caption"`
	Source       string    `json:"source"`
	Photographer *string   `json:"photographer"`
	Year         *int      `json:"year"`
	Month        *int      `json:"month"`
	Day          *int      `json:"day"`
	Estimated    bool      `json:"estimated"`
	DateDisplay  string    `json:"date_display"`
	PhotoURL     *string   `json:"photo_url"`
	Lat          *float64  `json:"lat,omitempty"`
	Lng          *float64  `json:"lng,omitempty"`
	HasLocation  bool      `json:"location"`
	Notes        *string   `json:"notes"`
	UserID       string    `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// AdminSubmissionResponse adds moderation state for the review queue.
type AdminSubmissionResponse struct {
	SubmissionResponse
	Status string `json:"status"`
}

type SubmitResponse struct {
	Message string                  `json:"message"`
	Data    AdminSubmissionResponse `json:"data"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type SoftDeleteRequest struct {
	Reason string `json:"reason"`
}

type UserStatsResponse struct {
	Username            string    `json:"username"`
	Bio                 *string   `json:"bio"`
	JoinedAt            time.Time `json:"joined_at"`
	ApprovedSubmissions int       `json:"approved_submissions"`
}

func toSubmissionResponse(s *models.Submission) SubmissionResponse {
	resp := SubmissionResponse{
		ID:           s.ID,
		Caption:      s.Caption,
		Source:       s.Source,
		Photographer: s.Photographer,
		Year:         s.Date.Year,
		Month:        s.Date.Month,
		Day:          s.Date.Day,
		Estimated:    s.Date.Estimated,
		DateDisplay:  s.Date.Format(),
		PhotoURL:     s.PhotoURL,
		Notes:        s.Notes,
		UserID:       s.OwnerID,
		CreatedAt:    s.CreatedAt,
	}
	if s.HasLocation && s.Location != nil {
		lat, lng := s.Location.Lat, s.Location.Lng
		resp.Lat = &lat
		resp.Lng = &lng
		resp.HasLocation = true
	}
	return resp
}

func toAdminSubmissionResponse(s *models.Submission) AdminSubmissionResponse {
	return AdminSubmissionResponse{
		SubmissionResponse: toSubmissionResponse(s),
		Status:             s.Status.String(),
	}
}

func toSubmissionList(subs []*models.Submission) []SubmissionResponse {
	out := make([]SubmissionResponse, 0, len(subs))
	for _, s := range subs {
		out = append(out, toSubmissionResponse(s))
	}
	return out
}

func toAdminSubmissionList(subs []*models.Submission) []AdminSubmissionResponse {
	out := make([]AdminSubmissionResponse, 0, len(subs))
	for _, s := range subs {
		out = append(out, toAdminSubmissionResponse(s))
	}
	return out
}

func toActionList(actions []*audit.AdminAction) []*audit.AdminAction {
	if actions == nil {
		return []*audit.AdminAction{}
	}
	return actions
}

func toUserStatsResponse(s *service.UserStats) UserStatsResponse {
	return UserStatsResponse{
		Username:            s.Username,
		Bio:                 s.Bio,
		JoinedAt:            s.JoinedAt,
		ApprovedSubmissions: s.ApprovedSubmissions,
	}
}
