package verify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"affiliateprograms.wiki/internal/entity"
)

func TestVerifyBatchRecordsEveryRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	store := NewInMemoryStore()
	rec := NewRecorder(NewChecker(5*time.Second), store)

	runs, sum, err := rec.VerifyBatch(context.Background(), []Request{
		{EntityID: 1, URL: srv.URL + "/ok", URLType: URLSignup},
		{EntityID: 2, URL: srv.URL + "/gone"},
		{EntityID: 3, URL: ""},
	})
	if err != nil {
		t.Fatalf("VerifyBatch: %v", err)
	}
	if len(runs) != 3 || sum.Verified != 3 {
		t.Fatalf("expected 3 runs, got %d (summary %+v)", len(runs), sum)
	}
	if sum.Success != 1 || sum.Broken != 2 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	// Defaults applied when the request omits kind and url type.
	if runs[1].EntityKind != entity.KindProgram || runs[1].URLType != URLSignup {
		t.Fatalf("defaults not applied: %+v", runs[1])
	}

	n, err := store.CountBroken(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("expected 2 broken recorded, got %d (%v)", n, err)
	}
}

func TestListBrokenRespectsAgeAndLatestRun(t *testing.T) {
	store := NewInMemoryStore()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }
	ctx := context.Background()

	old := base.Add(-48 * time.Hour)
	recent := base.Add(-time.Hour)

	// Entity 1: broken two days ago, then recovered — must not be listed.
	record := func(r Run) {
		if err := store.RecordRun(ctx, &r); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	record(Run{EntityKind: entity.KindProgram, EntityID: 1, URL: "https://a.example/s", Status: StatusBroken, CheckedAt: old})
	record(Run{EntityKind: entity.KindProgram, EntityID: 1, URL: "https://a.example/s", Status: StatusSuccess, CheckedAt: recent})
	// Entity 2: broken two days ago, still the latest — listed.
	record(Run{EntityKind: entity.KindProgram, EntityID: 2, URL: "https://b.example/s", Status: StatusTimeout, CheckedAt: old})
	// Entity 3: broken but too recent for the min-age filter.
	record(Run{EntityKind: entity.KindProgram, EntityID: 3, URL: "https://c.example/s", Status: StatusBroken, CheckedAt: recent})

	out, err := store.ListBroken(ctx, 24*time.Hour, 100)
	if err != nil {
		t.Fatalf("ListBroken: %v", err)
	}
	if len(out) != 1 || out[0].EntityID != 2 {
		t.Fatalf("expected only entity 2, got %+v", out)
	}
}
