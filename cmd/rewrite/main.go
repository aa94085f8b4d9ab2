package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"affiliateprograms.wiki/internal/linkrules"
	"affiliateprograms.wiki/internal/store/pg"
)

// rewrite resolves URLs through the link rule engine from the command line:
//
//	rewrite https://amazon.com/dp/B00EXAMPLE
//	rewrite -list
//	rewrite -add '{"match_domain":"amazon.*","affiliate_template":"...","priority":100}'
func main() {
	log.SetFlags(0)
	var (
		dsn      = flag.String("dsn", os.Getenv("WIKI_PG_DSN"), "PostgreSQL DSN")
		listOnly = flag.Bool("list", false, "List all rules and exit")
		addJSON  = flag.String("add", "", "Add a rule from a JSON document and exit")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or WIKI_PG_DSN")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	store, err := pg.Open(*dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()
	rules := store.LinkRules()

	switch {
	case *listOnly:
		listRules(ctx, rules)
	case *addJSON != "":
		addRule(ctx, rules, *addJSON)
	default:
		if flag.NArg() == 0 {
			log.Fatal("usage: rewrite [-list] [-add json] url...")
		}
		rewriteURLs(ctx, rules, flag.Args())
	}
}

func listRules(ctx context.Context, rules *pg.LinkRuleStore) {
	all, err := rules.ListRules(ctx)
	if err != nil {
		log.Fatalf("list rules: %v", err)
	}
	for _, r := range all {
		state := "enabled"
		if !r.Enabled {
			state = "disabled"
		}
		fmt.Printf("%4d  p=%-4d %-9s %-30s %s\n", r.ID, r.Priority, state, r.MatchDomain, r.Template)
	}
}

func addRule(ctx context.Context, rules *pg.LinkRuleStore, doc string) {
	var rule linkrules.Rule
	if err := json.Unmarshal([]byte(doc), &rule); err != nil {
		log.Fatalf("parse rule: %v", err)
	}
	if err := rules.CreateRule(ctx, &rule); err != nil {
		log.Fatalf("create rule: %v", err)
	}
	fmt.Printf("created rule %d for %s\n", rule.ID, rule.MatchDomain)
}

func rewriteURLs(ctx context.Context, rules *pg.LinkRuleStore, urls []string) {
	loaded, err := rules.LoadRules(ctx)
	if err != nil {
		log.Fatalf("load rules: %v", err)
	}
	rw := linkrules.NewRewriter(loaded)
	for _, u := range urls {
		out := rw.Rewrite(u)
		marker := " "
		if out != u {
			marker = "*"
		}
		fmt.Printf("%s %s\n  -> %s\n", marker, u, out)
	}
}
