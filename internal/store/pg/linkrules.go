package pg

import (
	"context"

	"affiliateprograms.wiki/internal/linkrules"
)

// LinkRuleStore implements linkrules.Store on the shared handle.
type LinkRuleStore struct {
	s *Store
}

var _ linkrules.Store = (*LinkRuleStore)(nil)

func (s *Store) LinkRules() *LinkRuleStore { return &LinkRuleStore{s: s} }

const ruleColumns = `
	id, match_domain, coalesce(match_path_pattern,''), affiliate_template,
	coalesce(network,''), coalesce(default_tag,''),
	coalesce(utm_source,''), coalesce(utm_medium,''), coalesce(utm_campaign,''),
	exception_paths, priority, is_enabled, created_at`

func scanRule(row rowScanner) (linkrules.Rule, error) {
	var (
		r          linkrules.Rule
		exceptions []byte
	)
	err := row.Scan(&r.ID, &r.MatchDomain, &r.MatchPath, &r.Template,
		&r.Network, &r.DefaultTag,
		&r.UTMSource, &r.UTMMedium, &r.UTMCampaign,
		&exceptions, &r.Priority, &r.Enabled, &r.CreatedAt)
	if err != nil {
		return linkrules.Rule{}, err
	}
	if err := fromJSON(exceptions, &r.ExceptionPaths); err != nil {
		return linkrules.Rule{}, err
	}
	return r, nil
}

func (l *LinkRuleStore) CreateRule(ctx context.Context, r *linkrules.Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	exceptions, err := toJSON(r.ExceptionPaths)
	if err != nil {
		return err
	}
	return l.s.db.QueryRowContext(ctx, `
		insert into link_rules(
			match_domain, match_path_pattern, affiliate_template, network,
			default_tag, utm_source, utm_medium, utm_campaign,
			exception_paths, priority, is_enabled
		) values ($1,nullif($2,''),$3,nullif($4,''),nullif($5,''),nullif($6,''),nullif($7,''),nullif($8,''),$9,$10,$11)
		returning id, created_at
	`, r.MatchDomain, r.MatchPath, r.Template, r.Network,
		r.DefaultTag, r.UTMSource, r.UTMMedium, r.UTMCampaign,
		exceptions, r.Priority, r.Enabled).Scan(&r.ID, &r.CreatedAt)
}

func (l *LinkRuleStore) LoadRules(ctx context.Context) ([]linkrules.Rule, error) {
	return l.list(ctx, `select `+ruleColumns+` from link_rules where is_enabled order by priority desc, id asc`)
}

func (l *LinkRuleStore) ListRules(ctx context.Context) ([]linkrules.Rule, error) {
	return l.list(ctx, `select `+ruleColumns+` from link_rules order by priority desc, id asc`)
}

func (l *LinkRuleStore) list(ctx context.Context, query string) ([]linkrules.Rule, error) {
	rows, err := l.s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []linkrules.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (l *LinkRuleStore) CountActive(ctx context.Context) (int, error) {
	var n int
	err := l.s.db.QueryRowContext(ctx, `select count(*) from link_rules where is_enabled`).Scan(&n)
	return n, err
}
