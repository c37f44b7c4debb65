package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"memebot/internal/consent/models"
	"memebot/internal/consent/store"
	"memebot/pkg/testutil"
)

type stubPolicy struct {
	version string
}

func (p *stubPolicy) Version() string {
	return p.version
}

type ServiceTestSuite struct {
	suite.Suite
	ctx    context.Context
	store  *store.FileStore
	policy *stubPolicy
	svc    *Service
}

func (s *ServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewFileStore(filepath.Join(s.T().TempDir(), "user_consents.json"))
	s.policy = &stubPolicy{version: "2026-08-01|sha256:abc123def456"}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	s.svc = NewService(s.store, s.policy, logger)
}

func TestServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

// seed writes a record directly, bypassing Grant, so tests can shape the
// stored timestamp and policy version.
func (s *ServiceTestSuite) seed(record *models.Record) {
	doc, _ := s.store.Load()
	doc.Users[record.UserID] = record
	s.Require().NoError(s.store.Save(doc))
}

func (s *ServiceTestSuite) TestCheckWithoutRecordReportsNoConsent() {
	result := s.svc.Check(s.ctx, "123456789")

	s.False(result.OK)
	s.Equal(models.ReasonNoConsent, result.Reason)
	s.Nil(result.Record)
	s.Equal(s.policy.version, result.PolicyVersion)
}

func (s *ServiceTestSuite) TestGrantThenCheckPasses() {
	reqCtx := &models.RequestContext{
		ServerID:  "42",
		ChannelID: "77",
		MessageID: "900",
		Source:    "meme_command",
	}
	record, err := s.svc.Grant(s.ctx, "123456789", reqCtx)
	s.Require().NoError(err)
	s.Equal("123456789", record.UserID)
	s.Equal(s.policy.version, record.PolicyVersion)
	s.False(record.Revoked)
	s.Require().NotNil(record.LastRequest)
	s.Equal("meme_command", record.LastRequest.Source)
	s.NotEmpty(record.LastRequest.RequestedAt)

	result := s.svc.Check(s.ctx, "123456789")
	s.True(result.OK)
	s.Empty(result.Reason)
}

func (s *ServiceTestSuite) TestGrantAppendsAuditEntry() {
	_, err := s.svc.Grant(s.ctx, "123456789", &models.RequestContext{ServerID: "42"})
	s.Require().NoError(err)

	entries := s.svc.AuditLog(s.ctx, "123456789", 10)
	s.Require().Len(entries, 1)
	s.Equal(models.AuditActionConsentGranted, entries[0].Action)
	s.Equal("123456789", entries[0].ActorID)
	s.Equal("123456789", entries[0].TargetID)
	s.Equal("42", entries[0].ServerID)
	s.NotEmpty(entries[0].EntryID)
	s.Equal(s.policy.version, entries[0].Extra["tos_version"])
}

func (s *ServiceTestSuite) TestGrantRejectsEmptyUserID() {
	_, err := s.svc.Grant(s.ctx, "", nil)
	s.Error(err)
}

func (s *ServiceTestSuite) TestGrantOverwritesRevokedRecord() {
	_, err := s.svc.Grant(s.ctx, "123456789", nil)
	s.Require().NoError(err)
	found, err := s.svc.Revoke(s.ctx, "123456789")
	s.Require().NoError(err)
	s.True(found)

	_, err = s.svc.Grant(s.ctx, "123456789", nil)
	s.Require().NoError(err)

	result := s.svc.Check(s.ctx, "123456789")
	s.True(result.OK)
	s.False(result.Record.Revoked)
	s.Nil(result.Record.RevokedAt)
}

func (s *ServiceTestSuite) TestRevokeTwiceSucceedsBothTimes() {
	_, err := s.svc.Grant(s.ctx, "123456789", nil)
	s.Require().NoError(err)

	found, err := s.svc.Revoke(s.ctx, "123456789")
	s.Require().NoError(err)
	s.True(found)

	found, err = s.svc.Revoke(s.ctx, "123456789")
	s.Require().NoError(err)
	s.True(found)

	result := s.svc.Check(s.ctx, "123456789")
	s.False(result.OK)
	s.Equal(models.ReasonRevoked, result.Reason)
	s.Require().NotNil(result.Record.RevokedAt)
}

func (s *ServiceTestSuite) TestRevokeUnknownUserReportsNotFound() {
	found, err := s.svc.Revoke(s.ctx, "999")
	s.Require().NoError(err)
	s.False(found)
}

func (s *ServiceTestSuite) TestPolicyChangeInvalidatesConsent() {
	_, err := s.svc.Grant(s.ctx, "123456789", nil)
	s.Require().NoError(err)

	s.policy.version = "2026-09-01|sha256:fedcba987654"

	result := s.svc.Check(s.ctx, "123456789")
	s.False(result.OK)
	s.Equal(models.ReasonPolicyChanged, result.Reason)
	s.Equal("2026-09-01|sha256:fedcba987654", result.PolicyVersion)
}

func (s *ServiceTestSuite) TestUnreadableTimestampInvalidatesConsent() {
	s.seed(&models.Record{
		UserID:        "123456789",
		ConsentedAt:   "not-a-timestamp",
		PolicyVersion: s.policy.version,
	})

	result := s.svc.Check(s.ctx, "123456789")
	s.False(result.OK)
	s.Equal(models.ReasonTimestampUnreadable, result.Reason)
}

func (s *ServiceTestSuite) TestConsentOlderThanRenewWindowExpires() {
	consentedAt := time.Now().UTC().Add(-15 * 24 * time.Hour).Format(models.TimeLayout)
	s.seed(&models.Record{
		UserID:        "123456789",
		ConsentedAt:   consentedAt,
		PolicyVersion: s.policy.version,
	})

	result := s.svc.Check(s.ctx, "123456789")
	s.False(result.OK)
	s.Equal(models.ReasonExpired, result.Reason)
}

func (s *ServiceTestSuite) TestRevocationTakesPrecedenceOverExpiry() {
	revokedAt := time.Now().UTC().Format(models.TimeLayout)
	s.seed(&models.Record{
		UserID:        "123456789",
		ConsentedAt:   time.Now().UTC().Add(-30 * 24 * time.Hour).Format(models.TimeLayout),
		PolicyVersion: "stale-version",
		Revoked:       true,
		RevokedAt:     &revokedAt,
	})

	result := s.svc.Check(s.ctx, "123456789")
	s.Equal(models.ReasonRevoked, result.Reason)
}

func (s *ServiceTestSuite) TestDeleteRemovesRecord() {
	_, err := s.svc.Grant(s.ctx, "123456789", nil)
	s.Require().NoError(err)

	found, err := s.svc.Delete(s.ctx, "123456789", "admin-1", false)
	s.Require().NoError(err)
	s.True(found)

	s.Nil(s.svc.Record(s.ctx, "123456789"))
	result := s.svc.Check(s.ctx, "123456789")
	s.Equal(models.ReasonNoConsent, result.Reason)
}

func (s *ServiceTestSuite) TestDeleteUnknownUserReportsNotFound() {
	found, err := s.svc.Delete(s.ctx, "999", "admin-1", true)
	s.Require().NoError(err)
	s.False(found)
}

func (s *ServiceTestSuite) TestDeleteWithPurgeRemovesTargetAuditEntries() {
	_, err := s.svc.Grant(s.ctx, "111", nil)
	s.Require().NoError(err)
	_, err = s.svc.Grant(s.ctx, "222", nil)
	s.Require().NoError(err)
	found, err := s.svc.Revoke(s.ctx, "111")
	s.Require().NoError(err)
	s.True(found)

	found, err = s.svc.Delete(s.ctx, "111", "admin-1", true)
	s.Require().NoError(err)
	s.True(found)

	// Prior entries for the target are purged; only the deletion event
	// itself remains, attributed to the acting admin.
	entries := s.svc.AuditLog(s.ctx, "111", 50)
	s.Require().Len(entries, 1)
	s.Equal(models.AuditActionConsentDeleted, entries[0].Action)
	s.Equal("admin-1", entries[0].ActorID)
	s.Equal(true, entries[0].Extra["purge_audit"])

	// Entries for other users are untouched.
	s.Len(s.svc.AuditLog(s.ctx, "222", 50), 1)
}

func (s *ServiceTestSuite) TestListUserIDsNumericOrder() {
	for _, userID := range []string{"100", "9", "10", "no-digits"} {
		s.seed(&models.Record{
			UserID:        userID,
			ConsentedAt:   time.Now().UTC().Format(models.TimeLayout),
			PolicyVersion: s.policy.version,
		})
	}

	s.Equal([]string{"9", "10", "100"}, s.svc.ListUserIDs(s.ctx))
}

func (s *ServiceTestSuite) TestSearchUserIDs() {
	for _, userID := range []string{"1001", "2001", "3005"} {
		s.seed(&models.Record{
			UserID:        userID,
			ConsentedAt:   time.Now().UTC().Format(models.TimeLayout),
			PolicyVersion: s.policy.version,
		})
	}

	s.Equal([]string{"1001", "2001"}, s.svc.SearchUserIDs(s.ctx, "001", 10))
	s.Equal([]string{"1001"}, s.svc.SearchUserIDs(s.ctx, "001", 1))
	s.Empty(s.svc.SearchUserIDs(s.ctx, "   ", 10))
	s.Empty(s.svc.SearchUserIDs(s.ctx, "777", 10))
}

func (s *ServiceTestSuite) TestAuditLogFilterAndLimit() {
	for i := 0; i < 5; i++ {
		_, err := s.svc.LogEvent(s.ctx, models.AuditActionConsentRequested, "111", "111", nil, map[string]any{"seq": i})
		s.Require().NoError(err)
	}
	_, err := s.svc.LogEvent(s.ctx, models.AuditActionConsentRequested, "222", "222", nil, nil)
	s.Require().NoError(err)

	all := s.svc.AuditLog(s.ctx, "", 50)
	s.Len(all, 6)

	filtered := s.svc.AuditLog(s.ctx, "111", 50)
	s.Len(filtered, 5)

	// The limit keeps the most recent entries, oldest first.
	limited := s.svc.AuditLog(s.ctx, "111", 2)
	s.Require().Len(limited, 2)
	s.Equal(float64(3), limited[0].Extra["seq"])
	s.Equal(float64(4), limited[1].Extra["seq"])
}

func (s *ServiceTestSuite) TestLogEventPersistsEntry() {
	entry, err := s.svc.LogEvent(s.ctx, models.AuditActionConsentRequestDenied, "111", "111",
		&models.RequestContext{ServerID: "42", ChannelID: "77", MessageID: "900"}, nil)
	s.Require().NoError(err)
	s.NotEmpty(entry.EntryID)
	s.NotEmpty(entry.Timestamp)
	s.Equal("42", entry.ServerID)

	entries := s.svc.AuditLog(s.ctx, "111", 10)
	s.Require().Len(entries, 1)
	s.Equal(entry.EntryID, entries[0].EntryID)
}

func (s *ServiceTestSuite) TestAllRecordsReturnsCopies() {
	_, err := s.svc.Grant(s.ctx, "111", nil)
	s.Require().NoError(err)

	records := s.svc.AllRecords(s.ctx)
	s.Require().Len(records, 1)
	records["111"].Revoked = true

	result := s.svc.Check(s.ctx, "111")
	s.True(result.OK)
}

func (s *ServiceTestSuite) TestConcurrentGrantsAreAllPersisted() {
	const goroutines = 20

	successes, errs := testutil.RunConcurrent(goroutines, func(idx int) error {
		_, err := s.svc.Grant(s.ctx, fmt.Sprintf("%d", 1000+idx), nil)
		return err
	})
	s.Equal(int32(goroutines), successes)
	s.Empty(errs)

	s.Len(s.svc.ListUserIDs(s.ctx), goroutines)
	s.Len(s.svc.AuditLog(s.ctx, "", 100), goroutines)
}
