//go:build integration

package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	audit "openmediamap/pkg/platform/audit"
	"openmediamap/pkg/platform/audit/store/postgres"
	"openmediamap/pkg/testutil/containers"
)

type AuditStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestAuditStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(AuditStoreSuite))
}

func (s *AuditStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
}

func (s *AuditStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "admin_actions"))
}

func (s *AuditStoreSuite) TestAppendAndRecent() {
	ctx := context.Background()
	first, err := s.store.Append(ctx, "moderator", audit.ActionApprove, 11)
	s.Require().NoError(err)
	s.Positive(first.ID)
	s.False(first.CreatedAt.IsZero())

	_, err = s.store.Append(ctx, "moderator", audit.ActionDelete, 11)
	s.Require().NoError(err)
	_, err = s.store.Append(ctx, "other", audit.ActionReject, 12)
	s.Require().NoError(err)

	got, err := s.store.Recent(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(got, 3)
	s.Equal(audit.ActionReject, got[0].ActionType)
	s.Equal("other", got[0].AdminUsername)
	s.Equal(first.ID, got[2].ID)
}

func (s *AuditStoreSuite) TestRecentClampsLimit() {
	ctx := context.Background()
	for id := int64(1); id <= 3; id++ {
		_, err := s.store.Append(ctx, "moderator", audit.ActionApprove, id)
		s.Require().NoError(err)
	}

	got, err := s.store.Recent(ctx, 2)
	s.Require().NoError(err)
	s.Len(got, 2)

	got, err = s.store.Recent(ctx, -1)
	s.Require().NoError(err)
	s.Len(got, 3)
}

func (s *AuditStoreSuite) TestRejectsUnknownActionType() {
	_, err := s.store.Append(context.Background(), "moderator", audit.ActionType("escalate"), 1)
	s.Error(err)
}
