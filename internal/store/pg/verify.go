package pg

import (
	"context"
	"time"

	"affiliateprograms.wiki/internal/entity"
	"affiliateprograms.wiki/internal/verify"
)

// VerifyStore implements verify.Store on the shared handle.
type VerifyStore struct {
	s *Store
}

var _ verify.Store = (*VerifyStore)(nil)

func (s *Store) Verifications() *VerifyStore { return &VerifyStore{s: s} }

func (v *VerifyStore) RecordRun(ctx context.Context, run *verify.Run) error {
	chain, err := toJSON(run.RedirectChain)
	if err != nil {
		return err
	}
	_, err = v.s.db.ExecContext(ctx, `
		insert into verification_runs(
			id, entity_type, entity_id, url, url_type, status, http_code,
			redirect_chain, final_url, response_time_ms, verified_at, next_check_at
		) values ($1,$2,$3,$4,$5,$6,$7,$8,nullif($9,''),$10,$11,$12)
	`, run.ID, string(run.EntityKind), run.EntityID, run.URL, string(run.URLType),
		string(run.Status), run.HTTPCode, chain, run.FinalURL, run.LatencyMS,
		run.CheckedAt, run.NextCheckAt)
	return err
}

func (v *VerifyStore) ListBroken(ctx context.Context, minAge time.Duration, limit int) ([]verify.Run, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	// Latest run per (entity_type, url) first; a URL whose most recent run
	// succeeded must not resurface because of an older failure.
	rows, err := v.s.db.QueryContext(ctx, `
		select id, entity_type, entity_id, url, url_type, status, http_code,
		       redirect_chain, final_url, response_time_ms, verified_at, next_check_at
		from (
			select distinct on (entity_type, url)
				id, entity_type, entity_id, url, url_type, status, http_code,
				redirect_chain, coalesce(final_url,'') as final_url, response_time_ms,
				verified_at, next_check_at
			from verification_runs
			order by entity_type, url, verified_at desc
		) latest
		where status in ('broken','timeout') and verified_at < now() - make_interval(secs => $1)
		order by verified_at desc
		limit $2
	`, minAge.Seconds(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []verify.Run
	for rows.Next() {
		var (
			run     verify.Run
			kind    string
			urlType string
			status  string
			chain   []byte
		)
		if err := rows.Scan(&run.ID, &kind, &run.EntityID, &run.URL, &urlType, &status,
			&run.HTTPCode, &chain, &run.FinalURL, &run.LatencyMS,
			&run.CheckedAt, &run.NextCheckAt); err != nil {
			return nil, err
		}
		run.EntityKind = entity.Kind(kind)
		run.URLType = verify.URLType(urlType)
		run.Status = verify.Status(status)
		if err := fromJSON(chain, &run.RedirectChain); err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (v *VerifyStore) CountBroken(ctx context.Context) (int, error) {
	var n int
	err := v.s.db.QueryRowContext(ctx, `select count(*) from verification_runs where status='broken'`).Scan(&n)
	return n, err
}
