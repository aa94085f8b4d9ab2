package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"affiliateprograms.wiki/internal/agent"
)

func TestAgentFindRoundTrip(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "name", "role", "scopes", "rate_limit_per_minute", "rate_limit_per_day",
		"is_enabled", "created_at", "expires_at", "last_used_at", "total_requests",
	}).AddRow("ak_1", "patrol", "researcher", []byte(`["propose:*"]`), 60, 5000,
		true, now, nil, nil, int64(7))

	mock.ExpectQuery("select(.|\n)*from agent_keys where id=\\$1").
		WithArgs("ak_1").WillReturnRows(rows)

	key, err := store.Agents().Find(context.Background(), "ak_1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if key.Role != agent.RoleResearcher || len(key.Scopes) != 1 || key.TotalRequests != 7 {
		t.Fatalf("unexpected key: %+v", key)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAgentFindNotFound(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery("select(.|\n)*from agent_keys where id=\\$1").
		WithArgs("ak_missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Agents().Find(context.Background(), "ak_missing")
	if !errors.Is(err, agent.ErrNotFound) {
		t.Fatalf("expected agent.ErrNotFound, got %v", err)
	}
}

func TestAgentSetEnabledNotFound(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectExec("update agent_keys set is_enabled").
		WithArgs("ak_missing", false).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Agents().SetEnabled(context.Background(), "ak_missing", false)
	if !errors.Is(err, agent.ErrNotFound) {
		t.Fatalf("expected agent.ErrNotFound, got %v", err)
	}
}
