package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"affiliateprograms.wiki/internal/agent"
	"affiliateprograms.wiki/internal/editorial"
	"affiliateprograms.wiki/internal/entity"
	"affiliateprograms.wiki/internal/linkrules"
)

// smoke-pipeline pushes one proposal through the whole state machine on
// in-memory stores: submit -> approve -> seo -> publish, then checks the
// entity, the history feed, and a link rewrite.
func main() {
	log.SetFlags(0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	keys := agent.NewInMemory()
	registry := agent.NewRegistry(keys)
	seedKey(ctx, keys, "ak_researcher", agent.RoleResearcher, "propose:*")
	seedKey(ctx, keys, "ak_reviewer", agent.RoleReviewer, "review:all", "publish:all")
	seedKey(ctx, keys, "ak_seo", agent.RoleSEOEditor, "seo:all")

	entities := entity.NewInMemory()
	entities.Put(entity.Record{
		Kind: entity.KindProgram,
		ID:   1,
		Name: "Smoke Partners",
		Extracted: map[string]any{
			"commission_rate": "20%",
		},
	})

	svc := editorial.NewService(editorial.NewInMemoryStore(entities), entities, registry,
		editorial.WithSEORequired(entity.KindProgram))

	p, err := svc.Submit(ctx, "ak_researcher", entity.KindProgram, 1,
		map[string]any{"commission_rate": "25%"},
		[]editorial.Source{{URL: "https://smoke.example/terms"}},
		"smoke run", "smoke-model")
	if err != nil {
		log.Fatalf("submit: %v", err)
	}

	p, err = svc.Review(ctx, "ak_reviewer", p.ID, editorial.ActionApprove, "looks right")
	if err != nil {
		log.Fatalf("approve: %v", err)
	}
	if p.Status != editorial.StatusPendingSEO {
		log.Fatalf("expected pending_seo after approve, got %s", p.Status)
	}

	p, err = svc.CompleteSEO(ctx, "ak_seo", p.ID, editorial.SEOMetadata{
		Title:       "Smoke Partners Affiliate Program",
		Description: "25% commission on every referred sale.",
	})
	if err != nil {
		log.Fatalf("seo: %v", err)
	}

	p, hist, err := svc.Publish(ctx, "ak_reviewer", p.ID)
	if err != nil {
		log.Fatalf("publish: %v", err)
	}
	if p.Status != editorial.StatusPublished || hist.ID == "" {
		log.Fatalf("publish left proposal in %s", p.Status)
	}

	rec, err := entities.Get(ctx, entity.KindProgram, 1)
	if err != nil {
		log.Fatalf("get entity: %v", err)
	}
	if rec.Extracted["commission_rate"] != "25%" {
		log.Fatalf("entity not updated: %v", rec.Extracted)
	}

	feed, err := svc.EntityHistory(ctx, entity.KindProgram, 1)
	if err != nil || len(feed) != 1 {
		log.Fatalf("history feed: %v (%d entries)", err, len(feed))
	}

	rw := linkrules.NewRewriter([]linkrules.Rule{{
		ID:          1,
		MatchDomain: "smoke.example",
		Template:    "https://go.example/?u={url}&tag={tag}",
		DefaultTag:  "smoke-20",
		Enabled:     true,
	}})
	if out := rw.Rewrite("https://smoke.example/signup"); out == "https://smoke.example/signup" {
		log.Fatalf("rewrite did not apply: %s", out)
	}

	fmt.Printf("✅ editorial pipeline smoke test passed: proposal=%s history=%s\n", p.ID, hist.ID)
}

func seedKey(ctx context.Context, store *agent.InMemory, id string, role agent.Role, scopes ...string) {
	err := store.Create(ctx, &agent.Key{
		ID:                 id,
		Name:               id,
		Role:               role,
		Scopes:             scopes,
		RateLimitPerMinute: 600,
		RateLimitPerDay:    100000,
		Enabled:            true,
		CreatedAt:          time.Now().UTC(),
	})
	if err != nil {
		log.Fatalf("seed %s: %v", id, err)
	}
}
