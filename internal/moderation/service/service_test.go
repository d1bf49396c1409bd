package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks SubmissionStore,AuditRecorder,ObjectStore,ProfileDirectory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"openmediamap/internal/identity"
	"openmediamap/internal/moderation/service/mocks"
	"openmediamap/internal/objectstore"
	"openmediamap/internal/platform/metrics"
	"openmediamap/internal/submission/models"
	dErrors "openmediamap/pkg/domain-errors"
	audit "openmediamap/pkg/platform/audit"
	"openmediamap/pkg/platform/sentinel"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type ServiceSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	submissions *mocks.MockSubmissionStore
	auditLog    *mocks.MockAuditRecorder
	objects     *mocks.MockObjectStore
	profiles    *mocks.MockProfileDirectory
	metrics     *metrics.Metrics
	service     *Service

	admin       identity.Identity
	contributor identity.Identity
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.submissions = mocks.NewMockSubmissionStore(s.ctrl)
	s.auditLog = mocks.NewMockAuditRecorder(s.ctrl)
	s.objects = mocks.NewMockObjectStore(s.ctrl)
	s.profiles = mocks.NewMockProfileDirectory(s.ctrl)
	reg := prometheus.NewRegistry()
	s.metrics = metrics.NewWithRegistry(reg, reg)

	var err error
	s.service, err = New(s.submissions, s.auditLog,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithObjectStore(s.objects),
		WithProfiles(s.profiles),
	)
	s.Require().NoError(err)

	s.admin = identity.Trusted("uid-admin", "moderator", true)
	s.contributor = identity.Trusted("uid-alice", "alice", false)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) TestNew() {
	s.Run("nil submission store returns error", func() {
		_, err := New(nil, s.auditLog)
		s.ErrorContains(err, "submission store is required")
	})

	s.Run("nil audit recorder returns error", func() {
		_, err := New(s.submissions, nil)
		s.ErrorContains(err, "audit recorder is required")
	})
}

func (s *ServiceSuite) TestSubmit() {
	ctx := context.Background()

	s.Run("stores a pending record owned by the caller", func() {
		lat, lng := 39.5, -76.7
		s.submissions.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, sub *models.Submission) (*models.Submission, error) {
				s.Equal("alice", sub.OwnerID)
				s.Equal(models.StatusPending, sub.Status)
				s.True(sub.HasLocation)
				s.Nil(sub.PhotoURL)
				out := *sub
				out.ID = 7
				return &out, nil
			})

		got, err := s.service.Submit(ctx, s.contributor, SubmitRequest{Draft: models.Draft{
			Caption: " Harbor at dusk ", Source: "Port archive", Lat: &lat, Lng: &lng,
		}})
		s.Require().NoError(err)
		s.Equal(int64(7), got.ID)
		s.Equal("Harbor at dusk", got.Caption)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.SubmissionsCreated))
	})

	s.Run("owner falls back to subject without a username", func() {
		s.submissions.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, sub *models.Submission) (*models.Submission, error) {
				s.Equal("uid-nameless", sub.OwnerID)
				return sub, nil
			})

		_, err := s.service.Submit(ctx, identity.Trusted("uid-nameless", "", false),
			SubmitRequest{Draft: models.Draft{Caption: "c", Source: "s"}})
		s.Require().NoError(err)
	})

	s.Run("missing caption is a validation error and nothing is stored", func() {
		_, err := s.service.Submit(ctx, s.contributor, SubmitRequest{Draft: models.Draft{Caption: "  ", Source: "s"}})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("invalid date is a validation error", func() {
		month := 13
		year := 1900
		_, err := s.service.Submit(ctx, s.contributor, SubmitRequest{Draft: models.Draft{
			Caption: "c", Source: "s", Year: &year, Month: &month,
		}})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.ErrorContains(err, "Invalid month")
	})

	s.Run("anonymous caller is unauthorized", func() {
		_, err := s.service.Submit(ctx, identity.Identity{}, SubmitRequest{Draft: models.Draft{Caption: "c", Source: "s"}})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("photo is uploaded before insert", func() {
		gomock.InOrder(
			s.objects.EXPECT().Put(gomock.Any(), pngBytes, objectstore.ImageType{MIME: "image/png", Ext: "png"}).
				Return("https://cdn.example.com/submissions/pending/x.png", nil),
			s.submissions.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, sub *models.Submission) (*models.Submission, error) {
					s.Require().NotNil(sub.PhotoURL)
					s.Equal("https://cdn.example.com/submissions/pending/x.png", *sub.PhotoURL)
					return sub, nil
				}),
		)

		_, err := s.service.Submit(ctx, s.contributor, SubmitRequest{
			Draft: models.Draft{Caption: "c", Source: "s"},
			Photo: pngBytes,
		})
		s.Require().NoError(err)
	})

	s.Run("upload failure stores nothing", func() {
		s.objects.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any()).
			Return("", dErrors.Wrap(errors.New("503"), dErrors.CodeUpstream, "Failed to upload photo"))

		_, err := s.service.Submit(ctx, s.contributor, SubmitRequest{
			Draft: models.Draft{Caption: "c", Source: "s"},
			Photo: pngBytes,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeUpstream))
	})

	s.Run("non-image content is refused before upload", func() {
		_, err := s.service.Submit(ctx, s.contributor, SubmitRequest{
			Draft: models.Draft{Caption: "c", Source: "s"},
			Photo: []byte("<script>alert(1)</script>"),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("request cancelled during upload stores nothing", func() {
		cctx, cancel := context.WithCancel(ctx)
		s.objects.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(context.Context, []byte, objectstore.ImageType) (string, error) {
				cancel()
				return "https://cdn.example.com/late.png", nil
			})

		_, err := s.service.Submit(cctx, s.contributor, SubmitRequest{
			Draft: models.Draft{Caption: "c", Source: "s"},
			Photo: pngBytes,
		})
		s.ErrorIs(err, context.Canceled)
	})

	s.Run("store failure is internal", func() {
		s.submissions.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection reset"))

		_, err := s.service.Submit(ctx, s.contributor, SubmitRequest{Draft: models.Draft{Caption: "c", Source: "s"}})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestSubmitWithoutObjectStore() {
	svc, err := New(s.submissions, s.auditLog)
	s.Require().NoError(err)

	_, err = svc.Submit(context.Background(), s.contributor, SubmitRequest{
		Draft: models.Draft{Caption: "c", Source: "s"},
		Photo: pngBytes,
	})
	s.True(dErrors.HasCode(err, dErrors.CodeUpstream))
}

func (s *ServiceSuite) TestApproveAndReject() {
	ctx := context.Background()

	s.Run("approve records one audit entry", func() {
		s.submissions.EXPECT().TransitionStatus(gomock.Any(), int64(7), models.StatusPending, models.StatusApproved).Return(nil)
		s.auditLog.EXPECT().Record(gomock.Any(), "moderator", audit.ActionApprove, int64(7)).
			Return(&audit.AdminAction{ID: 1})

		s.Require().NoError(s.service.Approve(ctx, s.admin, 7))
		s.Equal(1.0, testutil.ToFloat64(s.metrics.ModerationActions.WithLabelValues("approve", "success")))
	})

	s.Run("reject records one audit entry", func() {
		s.submissions.EXPECT().TransitionStatus(gomock.Any(), int64(8), models.StatusPending, models.StatusRejected).Return(nil)
		s.auditLog.EXPECT().Record(gomock.Any(), "moderator", audit.ActionReject, int64(8)).Return(nil)

		s.Require().NoError(s.service.Reject(ctx, s.admin, 8))
	})

	s.Run("lost race is a conflict without audit", func() {
		s.submissions.EXPECT().TransitionStatus(gomock.Any(), int64(9), models.StatusPending, models.StatusApproved).
			Return(sentinel.ErrConflict)

		err := s.service.Approve(ctx, s.admin, 9)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.ErrorContains(err, "Record not found or not pending")
		s.Equal(1.0, testutil.ToFloat64(s.metrics.ModerationActions.WithLabelValues("approve", "conflict")))
	})

	s.Run("audit failure does not fail the decision", func() {
		s.submissions.EXPECT().TransitionStatus(gomock.Any(), int64(10), models.StatusPending, models.StatusApproved).Return(nil)
		s.auditLog.EXPECT().Record(gomock.Any(), "moderator", audit.ActionApprove, int64(10)).Return(nil)

		s.NoError(s.service.Approve(ctx, s.admin, 10))
	})

	s.Run("store failure is internal", func() {
		s.submissions.EXPECT().TransitionStatus(gomock.Any(), int64(11), models.StatusPending, models.StatusRejected).
			Return(errors.New("timeout"))

		err := s.service.Reject(ctx, s.admin, 11)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("non-admin is forbidden before any store call", func() {
		err := s.service.Approve(ctx, s.contributor, 7)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("anonymous is unauthorized", func() {
		err := s.service.Reject(ctx, identity.Identity{}, 7)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("non-positive id is a validation error", func() {
		for _, id := range []int64{0, -3} {
			err := s.service.Approve(ctx, s.admin, id)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		}
	})
}

func (s *ServiceSuite) TestSoftDelete() {
	ctx := context.Background()

	s.Run("normalises reason and records delete", func() {
		s.submissions.EXPECT().SoftDelete(gomock.Any(), int64(3), models.DefaultDeleteReason).Return(nil)
		s.auditLog.EXPECT().Record(gomock.Any(), "moderator", audit.ActionDelete, int64(3)).Return(&audit.AdminAction{})

		s.Require().NoError(s.service.SoftDelete(ctx, s.admin, 3, "   "))
	})

	s.Run("already deleted is a conflict", func() {
		s.submissions.EXPECT().SoftDelete(gomock.Any(), int64(4), "dup").Return(sentinel.ErrConflict)

		err := s.service.SoftDelete(ctx, s.admin, 4, "dup")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("non-admin is forbidden", func() {
		err := s.service.SoftDelete(ctx, s.contributor, 4, "")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *ServiceSuite) TestListings() {
	ctx := context.Background()

	s.Run("approved is public", func() {
		s.submissions.EXPECT().ListApproved(gomock.Any()).Return([]*models.Submission{{ID: 1}}, nil)
		got, err := s.service.ListApproved(ctx)
		s.Require().NoError(err)
		s.Len(got, 1)
	})

	s.Run("approved store failure is internal", func() {
		s.submissions.EXPECT().ListApproved(gomock.Any()).Return(nil, errors.New("down"))
		_, err := s.service.ListApproved(ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("pending requires admin", func() {
		_, err := s.service.ListPending(ctx, s.contributor)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

		s.submissions.EXPECT().ListPending(gomock.Any()).Return([]*models.Submission{}, nil)
		got, err := s.service.ListPending(ctx, s.admin)
		s.Require().NoError(err)
		s.Empty(got)
	})
}

func (s *ServiceSuite) TestRecentActions() {
	ctx := context.Background()

	s.Run("limit is clamped", func() {
		s.auditLog.EXPECT().Recent(gomock.Any(), audit.MaxRecent).Return([]*audit.AdminAction{}, nil)
		_, err := s.service.RecentActions(ctx, s.admin, 10_000)
		s.Require().NoError(err)

		s.auditLog.EXPECT().Recent(gomock.Any(), audit.MaxRecent).Return([]*audit.AdminAction{}, nil)
		_, err = s.service.RecentActions(ctx, s.admin, 0)
		s.Require().NoError(err)
	})

	s.Run("requires admin", func() {
		_, err := s.service.RecentActions(ctx, s.contributor, 10)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *ServiceSuite) TestUserStats() {
	ctx := context.Background()
	joined := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	bio := "Local historian"

	s.Run("returns profile and approved count", func() {
		s.profiles.EXPECT().ByUsername(gomock.Any(), "alice").
			Return(&identity.Profile{UID: "uid-alice", Username: "alice", Bio: &bio, CreatedAt: joined}, nil)
		s.submissions.EXPECT().CountApprovedByOwner(gomock.Any(), "alice").Return(4, nil)

		got, err := s.service.UserStats(ctx, "alice")
		s.Require().NoError(err)
		s.Equal(4, got.ApprovedSubmissions)
		s.Equal(joined, got.JoinedAt)
		s.Equal(&bio, got.Bio)
	})

	s.Run("count failure degrades to zero", func() {
		s.profiles.EXPECT().ByUsername(gomock.Any(), "bob_1").Return(&identity.Profile{Username: "bob_1"}, nil)
		s.submissions.EXPECT().CountApprovedByOwner(gomock.Any(), "bob_1").Return(0, errors.New("down"))

		got, err := s.service.UserStats(ctx, "bob_1")
		s.Require().NoError(err)
		s.Zero(got.ApprovedSubmissions)
	})

	s.Run("unknown user is not found", func() {
		s.profiles.EXPECT().ByUsername(gomock.Any(), "ghost").Return(nil, sentinel.ErrNotFound)
		_, err := s.service.UserStats(ctx, "ghost")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("malformed usernames are rejected without lookup", func() {
		for _, name := range []string{"ab", "with space", "semi;colon", "a123456789012345678901234567890"} {
			_, err := s.service.UserStats(ctx, name)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation), name)
		}
	})
}
