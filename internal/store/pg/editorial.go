package pg

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"

	"affiliateprograms.wiki/internal/editorial"
	"affiliateprograms.wiki/internal/entity"
)

// EditorialStore implements editorial.Store. Transition and Publish run as
// single transactions with a row lock on the proposal, so a losing
// concurrent writer observes ErrConcurrentModification instead of silently
// overwriting.
type EditorialStore struct {
	s *Store
}

var _ editorial.Store = (*EditorialStore)(nil)

func (s *Store) Editorial() *EditorialStore { return &EditorialStore{s: s} }

const proposalColumns = `
	id, entity_type, entity_id, changes, previous_values, sources,
	coalesce(reasoning,''), coalesce(model_used,''), status,
	researcher_key_id, coalesce(reviewer_key_id,''), coalesce(review_notes,''),
	validation, coalesce(seo_editor_key_id,''), seo_metadata,
	coalesce(supersedes_id,''), coalesce(history_id,''), published_at,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProposal(row rowScanner) (*editorial.Proposal, error) {
	var (
		p          editorial.Proposal
		kind       string
		changes    []byte
		previous   []byte
		sources    []byte
		status     string
		validation []byte
		seo        []byte
	)
	err := row.Scan(&p.ID, &kind, &p.EntityID, &changes, &previous, &sources,
		&p.Reasoning, &p.ModelUsed, &status,
		&p.ResearcherKey, &p.ReviewerKey, &p.ReviewNotes,
		&validation, &p.SEOEditorKey, &seo,
		&p.SupersedesID, &p.HistoryID, &p.PublishedAt,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, editorial.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.EntityKind = entity.Kind(kind)
	p.Status = editorial.Status(status)
	if err := fromJSON(changes, &p.Changes); err != nil {
		return nil, err
	}
	if err := fromJSON(previous, &p.PreviousValues); err != nil {
		return nil, err
	}
	if err := fromJSON(sources, &p.Sources); err != nil {
		return nil, err
	}
	if err := fromJSON(validation, &p.Validation); err != nil {
		return nil, err
	}
	if err := fromJSON(seo, &p.SEO); err != nil {
		return nil, err
	}
	return &p, nil
}

func (e *EditorialStore) CreateProposal(ctx context.Context, p *editorial.Proposal) error {
	changes, err := toJSON(p.Changes)
	if err != nil {
		return err
	}
	previous, err := toJSON(p.PreviousValues)
	if err != nil {
		return err
	}
	sources, err := toJSON(p.Sources)
	if err != nil {
		return err
	}
	validation, err := toJSON(p.Validation)
	if err != nil {
		return err
	}
	_, err = e.s.db.ExecContext(ctx, `
		insert into proposals(
			id, entity_type, entity_id, changes, previous_values, sources,
			reasoning, model_used, status, researcher_key_id, validation,
			supersedes_id, created_at, updated_at
		) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,nullif($12,''),$13,$14)
	`, p.ID, string(p.EntityKind), p.EntityID, changes, previous, sources,
		p.Reasoning, p.ModelUsed, string(p.Status), p.ResearcherKey, validation,
		p.SupersedesID, p.CreatedAt, p.UpdatedAt)
	return err
}

func (e *EditorialStore) GetProposal(ctx context.Context, id string) (*editorial.Proposal, error) {
	row := e.s.db.QueryRowContext(ctx, `select `+proposalColumns+` from proposals where id=$1`, id)
	return scanProposal(row)
}

func (e *EditorialStore) ListProposals(ctx context.Context, f editorial.ListFilter) ([]*editorial.Proposal, int, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	conds := sq.And{}
	if f.Status != "" {
		conds = append(conds, sq.Eq{"status": string(f.Status)})
	}
	if f.EntityKind != "" {
		conds = append(conds, sq.Eq{"entity_type": string(f.EntityKind)})
	}

	countQ := psql.Select("count(*)").From("proposals")
	listQ := psql.Select(proposalColumns).From("proposals").OrderBy("created_at desc, id asc")
	if len(conds) > 0 {
		countQ = countQ.Where(conds)
		listQ = listQ.Where(conds)
	}
	if f.Limit > 0 {
		listQ = listQ.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		listQ = listQ.Offset(uint64(f.Offset))
	}

	query, args, err := countQ.ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := e.s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args, err = listQ.ToSql()
	if err != nil {
		return nil, 0, err
	}
	rows, err := e.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*editorial.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (e *EditorialStore) ApprovalLog(ctx context.Context, proposalID string) ([]editorial.ApprovalLogEntry, error) {
	rows, err := e.s.db.QueryContext(ctx, `
		select id, proposal_id, action, agent_key_id, validation, coalesce(notes,''), created_at
		from approval_log where proposal_id=$1 order by created_at asc, id asc
	`, proposalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []editorial.ApprovalLogEntry
	for rows.Next() {
		var (
			entry      editorial.ApprovalLogEntry
			action     string
			validation []byte
		)
		if err := rows.Scan(&entry.ID, &entry.ProposalID, &action, &entry.AgentKey,
			&validation, &entry.Notes, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Action = editorial.Action(action)
		if err := fromJSON(validation, &entry.Validation); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (e *EditorialStore) Transition(ctx context.Context, id string, expect editorial.Status, mutate func(*editorial.Proposal), entry editorial.ApprovalLogEntry) (*editorial.Proposal, error) {
	tx, err := e.s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	p, err := lockProposal(ctx, tx, id, expect)
	if err != nil {
		return nil, err
	}
	mutate(p)
	p.UpdatedAt = entry.CreatedAt

	if err := updateProposal(ctx, tx, p); err != nil {
		return nil, err
	}
	if err := insertLogEntry(ctx, tx, entry); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

func (e *EditorialStore) Publish(ctx context.Context, id string, expect editorial.Status, newExtracted map[string]any, hist editorial.HistoryEntry, entry editorial.ApprovalLogEntry) (*editorial.Proposal, error) {
	tx, err := e.s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	p, err := lockProposal(ctx, tx, id, expect)
	if err != nil {
		return nil, err
	}

	extracted, err := toJSON(newExtracted)
	if err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx, `
		update entities set extracted=$3, updated_at=now()
		where kind=$1 and id=$2
	`, string(hist.EntityKind), hist.EntityID, extracted)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, entity.ErrNotFound
	}

	if err := insertHistory(ctx, tx, hist); err != nil {
		return nil, err
	}

	p.Status = editorial.StatusPublished
	p.HistoryID = hist.ID
	publishedAt := entry.CreatedAt
	p.PublishedAt = &publishedAt
	p.UpdatedAt = entry.CreatedAt
	if err := updateProposal(ctx, tx, p); err != nil {
		return nil, err
	}
	if err := insertLogEntry(ctx, tx, entry); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

func (e *EditorialStore) EntityHistory(ctx context.Context, kind entity.Kind, entityID int64) ([]editorial.HistoryEntry, error) {
	rows, err := e.s.db.QueryContext(ctx, `
		select id, entity_type, entity_id, previous_extracted, new_extracted, diff,
		       agent_key_id, coalesce(model_used,''), sources, coalesce(reasoning,''), created_at
		from research_history
		where entity_type=$1 and entity_id=$2
		order by created_at asc, id asc
	`, string(kind), entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []editorial.HistoryEntry
	for rows.Next() {
		var (
			h        editorial.HistoryEntry
			hk       string
			previous []byte
			next     []byte
			diff     []byte
			sources  []byte
		)
		if err := rows.Scan(&h.ID, &hk, &h.EntityID, &previous, &next, &diff,
			&h.AgentKey, &h.ModelUsed, &sources, &h.Reasoning, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.EntityKind = entity.Kind(hk)
		if err := fromJSON(previous, &h.PreviousExtracted); err != nil {
			return nil, err
		}
		if err := fromJSON(next, &h.NewExtracted); err != nil {
			return nil, err
		}
		if err := fromJSON(diff, &h.Diff); err != nil {
			return nil, err
		}
		if err := fromJSON(sources, &h.Sources); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (e *EditorialStore) CountByStatus(ctx context.Context) (map[editorial.Status]int, error) {
	rows, err := e.s.db.QueryContext(ctx, `select status, count(*) from proposals group by status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[editorial.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[editorial.Status(status)] = n
	}
	return out, rows.Err()
}

func (e *EditorialStore) CountHistory(ctx context.Context) (int, error) {
	var n int
	err := e.s.db.QueryRowContext(ctx, `select count(*) from research_history`).Scan(&n)
	return n, err
}

// --- transaction helpers ---

func lockProposal(ctx context.Context, tx *sql.Tx, id string, expect editorial.Status) (*editorial.Proposal, error) {
	row := tx.QueryRowContext(ctx, `select `+proposalColumns+` from proposals where id=$1 for update`, id)
	p, err := scanProposal(row)
	if err != nil {
		return nil, err
	}
	if p.Status != expect {
		return nil, editorial.ErrConcurrentModification
	}
	return p, nil
}

func updateProposal(ctx context.Context, tx *sql.Tx, p *editorial.Proposal) error {
	validation, err := toJSON(p.Validation)
	if err != nil {
		return err
	}
	seo, err := toJSON(p.SEO)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		update proposals set
			status=$2, reviewer_key_id=nullif($3,''), review_notes=nullif($4,''),
			validation=$5, seo_editor_key_id=nullif($6,''), seo_metadata=$7,
			history_id=nullif($8,''), published_at=$9, updated_at=$10
		where id=$1
	`, p.ID, string(p.Status), p.ReviewerKey, p.ReviewNotes,
		validation, p.SEOEditorKey, seo,
		p.HistoryID, p.PublishedAt, p.UpdatedAt)
	return err
}

func insertLogEntry(ctx context.Context, tx *sql.Tx, entry editorial.ApprovalLogEntry) error {
	validation, err := toJSON(entry.Validation)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		insert into approval_log(id, proposal_id, action, agent_key_id, validation, notes, created_at)
		values ($1,$2,$3,$4,$5,nullif($6,''),$7)
	`, entry.ID, entry.ProposalID, string(entry.Action), entry.AgentKey, validation, entry.Notes, entry.CreatedAt)
	return err
}

func insertHistory(ctx context.Context, tx *sql.Tx, h editorial.HistoryEntry) error {
	previous, err := toJSON(h.PreviousExtracted)
	if err != nil {
		return err
	}
	next, err := toJSON(h.NewExtracted)
	if err != nil {
		return err
	}
	diff, err := toJSON(h.Diff)
	if err != nil {
		return err
	}
	sources, err := toJSON(h.Sources)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		insert into research_history(
			id, entity_type, entity_id, previous_extracted, new_extracted, diff,
			agent_key_id, model_used, sources, reasoning, created_at
		) values ($1,$2,$3,$4,$5,$6,$7,nullif($8,''),$9,nullif($10,''),$11)
	`, h.ID, string(h.EntityKind), h.EntityID, previous, next, diff,
		h.AgentKey, h.ModelUsed, sources, h.Reasoning, h.CreatedAt)
	return err
}
