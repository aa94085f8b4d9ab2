package verify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"affiliateprograms.wiki/internal/entity"
)

func TestCheckSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewChecker(5 * time.Second)
	run := c.Check(context.Background(), entity.KindProgram, 42, srv.URL+"/signup", URLSignup)

	if run.Status != StatusSuccess {
		t.Fatalf("expected success, got %s (code %d)", run.Status, run.HTTPCode)
	}
	if run.HTTPCode != http.StatusOK || run.EntityID != 42 || run.URLType != URLSignup {
		t.Fatalf("run fields wrong: %+v", run)
	}
	if !run.NextCheckAt.After(run.CheckedAt.Add(6 * 24 * time.Hour)) {
		t.Fatalf("healthy URL should be rechecked in about a week, got %v", run.NextCheckAt)
	}
}

func TestCheckRedirectChain(t *testing.T) {
	var target *httptest.Server
	target = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/old":
			http.Redirect(w, r, target.URL+"/new", http.StatusMovedPermanently)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer target.Close()

	c := NewChecker(5 * time.Second)
	run := c.Check(context.Background(), entity.KindProgram, 1, target.URL+"/old", URLAffiliatePage)

	if run.Status != StatusRedirect {
		t.Fatalf("expected redirect, got %s", run.Status)
	}
	if len(run.RedirectChain) != 1 || run.RedirectChain[0].Code != http.StatusMovedPermanently {
		t.Fatalf("redirect chain wrong: %+v", run.RedirectChain)
	}
	if run.FinalURL != target.URL+"/new" {
		t.Fatalf("final URL wrong: %s", run.FinalURL)
	}
}

func TestCheckBrokenAndBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gone":
			w.WriteHeader(http.StatusNotFound)
		case "/walled":
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	defer srv.Close()

	c := NewChecker(5 * time.Second)
	if run := c.Check(context.Background(), entity.KindProgram, 1, srv.URL+"/gone", URLSignup); run.Status != StatusBroken {
		t.Fatalf("404 should be broken, got %s", run.Status)
	}
	run := c.Check(context.Background(), entity.KindProgram, 1, srv.URL+"/walled", URLSignup)
	if run.Status != StatusBlocked {
		t.Fatalf("403 should be blocked, got %s", run.Status)
	}
	if !run.NextCheckAt.Before(run.CheckedAt.Add(25 * time.Hour)) {
		t.Fatalf("suspect URL should be rechecked the next day, got %v", run.NextCheckAt)
	}
}

func TestCheckUnreachable(t *testing.T) {
	c := NewChecker(time.Second)
	run := c.Check(context.Background(), entity.KindProgram, 1, "http://127.0.0.1:1/nothing", URLSignup)
	if run.Status != StatusBroken && run.Status != StatusTimeout {
		t.Fatalf("unreachable URL should be broken or timeout, got %s", run.Status)
	}
}

func TestCheckEmptyURL(t *testing.T) {
	c := NewChecker(time.Second)
	if run := c.Check(context.Background(), entity.KindProgram, 1, "", URLSignup); run.Status != StatusBroken {
		t.Fatalf("empty URL should be broken, got %s", run.Status)
	}
}
