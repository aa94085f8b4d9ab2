package pg

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"affiliateprograms.wiki/internal/editorial"
	"affiliateprograms.wiki/internal/entity"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db), mock
}

var proposalRowColumns = []string{
	"id", "entity_type", "entity_id", "changes", "previous_values", "sources",
	"reasoning", "model_used", "status",
	"researcher_key_id", "reviewer_key_id", "review_notes",
	"validation", "seo_editor_key_id", "seo_metadata",
	"supersedes_id", "history_id", "published_at",
	"created_at", "updated_at",
}

func proposalRow(t *testing.T, id string, status editorial.Status) *sqlmock.Rows {
	t.Helper()
	changes, _ := json.Marshal(map[string]any{"commission_rate": "40%"})
	now := time.Now().UTC()
	return sqlmock.NewRows(proposalRowColumns).AddRow(
		id, "program", int64(42), changes, []byte(`{}`), []byte(`[]`),
		"", "", string(status),
		"ak_researcher", "", "",
		nil, "", nil,
		"", "", nil,
		now, now,
	)
}

func TestTransitionCommitsRowAndLogTogether(t *testing.T) {
	store, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery("select(.|\n)*from proposals where id=\\$1 for update").
		WithArgs("p1").
		WillReturnRows(proposalRow(t, "p1", editorial.StatusPendingReview))
	mock.ExpectExec("update proposals set").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into approval_log").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	entry := editorial.ApprovalLogEntry{
		ID: "al1", ProposalID: "p1", Action: editorial.ActionApprove,
		AgentKey: "ak_reviewer", CreatedAt: time.Now().UTC(),
	}
	p, err := store.Editorial().Transition(ctx, "p1", editorial.StatusPendingReview, func(row *editorial.Proposal) {
		row.Status = editorial.StatusApproved
		row.ReviewerKey = "ak_reviewer"
	}, entry)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if p.Status != editorial.StatusApproved {
		t.Fatalf("expected approved, got %s", p.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTransitionConflictRollsBack(t *testing.T) {
	store, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery("select(.|\n)*from proposals where id=\\$1 for update").
		WithArgs("p1").
		WillReturnRows(proposalRow(t, "p1", editorial.StatusRejected))
	mock.ExpectRollback()

	_, err := store.Editorial().Transition(ctx, "p1", editorial.StatusPendingReview, func(*editorial.Proposal) {},
		editorial.ApprovalLogEntry{ID: "al1", ProposalID: "p1", CreatedAt: time.Now().UTC()})
	if !errors.Is(err, editorial.ErrConcurrentModification) {
		t.Fatalf("expected ErrConcurrentModification, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPublishRollsBackWhenEntityMissing(t *testing.T) {
	store, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery("select(.|\n)*from proposals where id=\\$1 for update").
		WithArgs("p1").
		WillReturnRows(proposalRow(t, "p1", editorial.StatusApproved))
	mock.ExpectExec("update entities set extracted").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	hist := editorial.HistoryEntry{
		ID: "h1", EntityKind: entity.KindProgram, EntityID: 42, CreatedAt: time.Now().UTC(),
	}
	entry := editorial.ApprovalLogEntry{
		ID: "al1", ProposalID: "p1", Action: editorial.ActionPublish, CreatedAt: time.Now().UTC(),
	}
	_, err := store.Editorial().Publish(ctx, "p1", editorial.StatusApproved,
		map[string]any{"commission_rate": "40%"}, hist, entry)
	if !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("expected entity.ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPublishCommitsAllWrites(t *testing.T) {
	store, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery("select(.|\n)*from proposals where id=\\$1 for update").
		WithArgs("p1").
		WillReturnRows(proposalRow(t, "p1", editorial.StatusApproved))
	mock.ExpectExec("update entities set extracted").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into research_history").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("update proposals set").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into approval_log").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	hist := editorial.HistoryEntry{
		ID: "h1", EntityKind: entity.KindProgram, EntityID: 42,
		PreviousExtracted: map[string]any{"commission_rate": "30%"},
		NewExtracted:      map[string]any{"commission_rate": "40%"},
		CreatedAt:         time.Now().UTC(),
	}
	entry := editorial.ApprovalLogEntry{
		ID: "al1", ProposalID: "p1", Action: editorial.ActionPublish,
		AgentKey: "ak_reviewer", CreatedAt: time.Now().UTC(),
	}
	p, err := store.Editorial().Publish(ctx, "p1", editorial.StatusApproved,
		map[string]any{"commission_rate": "40%"}, hist, entry)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if p.Status != editorial.StatusPublished || p.HistoryID != "h1" || p.PublishedAt == nil {
		t.Fatalf("publish bookkeeping wrong: %+v", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListProposalsFilters(t *testing.T) {
	store, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM proposals WHERE \\(status = \\$1 AND entity_type = \\$2\\)").
		WithArgs("pending_review", "program").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT(.|\n)*FROM proposals WHERE \\(status = \\$1 AND entity_type = \\$2\\) ORDER BY created_at desc, id asc LIMIT 10").
		WithArgs("pending_review", "program").
		WillReturnRows(proposalRow(t, "p1", editorial.StatusPendingReview))

	out, total, err := store.Editorial().ListProposals(ctx, editorial.ListFilter{
		Status:     editorial.StatusPendingReview,
		EntityKind: entity.KindProgram,
		Limit:      10,
	})
	if err != nil {
		t.Fatalf("ListProposals: %v", err)
	}
	if total != 1 || len(out) != 1 || out[0].ID != "p1" {
		t.Fatalf("unexpected result: total=%d out=%+v", total, out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
