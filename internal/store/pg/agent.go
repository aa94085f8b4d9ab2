package pg

import (
	"context"
	"database/sql"
	"errors"

	"affiliateprograms.wiki/internal/agent"
)

// AgentStore implements agent.Store on the shared handle.
type AgentStore struct {
	s *Store
}

var _ agent.Store = (*AgentStore)(nil)

func (s *Store) Agents() *AgentStore { return &AgentStore{s: s} }

func (a *AgentStore) Create(ctx context.Context, key *agent.Key) error {
	scopes, err := toJSON(key.Scopes)
	if err != nil {
		return err
	}
	_, err = a.s.db.ExecContext(ctx, `
		insert into agent_keys(
			id, name, role, scopes, rate_limit_per_minute, rate_limit_per_day,
			is_enabled, created_at, expires_at
		) values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, key.ID, key.Name, string(key.Role), scopes,
		key.RateLimitPerMinute, key.RateLimitPerDay,
		key.Enabled, key.CreatedAt, key.ExpiresAt)
	return err
}

func (a *AgentStore) Find(ctx context.Context, id string) (*agent.Key, error) {
	var (
		key    agent.Key
		role   string
		scopes []byte
	)
	err := a.s.db.QueryRowContext(ctx, `
		select id, name, role, scopes, rate_limit_per_minute, rate_limit_per_day,
		       is_enabled, created_at, expires_at, last_used_at, total_requests
		from agent_keys where id=$1
	`, id).Scan(&key.ID, &key.Name, &role, &scopes,
		&key.RateLimitPerMinute, &key.RateLimitPerDay,
		&key.Enabled, &key.CreatedAt, &key.ExpiresAt, &key.LastUsedAt, &key.TotalRequests)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, agent.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	key.Role = agent.Role(role)
	if err := fromJSON(scopes, &key.Scopes); err != nil {
		return nil, err
	}
	return &key, nil
}

func (a *AgentStore) List(ctx context.Context) ([]*agent.Key, error) {
	rows, err := a.s.db.QueryContext(ctx, `
		select id, name, role, scopes, rate_limit_per_minute, rate_limit_per_day,
		       is_enabled, created_at, expires_at, last_used_at, total_requests
		from agent_keys order by created_at desc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*agent.Key
	for rows.Next() {
		var (
			key    agent.Key
			role   string
			scopes []byte
		)
		if err := rows.Scan(&key.ID, &key.Name, &role, &scopes,
			&key.RateLimitPerMinute, &key.RateLimitPerDay,
			&key.Enabled, &key.CreatedAt, &key.ExpiresAt, &key.LastUsedAt, &key.TotalRequests); err != nil {
			return nil, err
		}
		key.Role = agent.Role(role)
		if err := fromJSON(scopes, &key.Scopes); err != nil {
			return nil, err
		}
		out = append(out, &key)
	}
	return out, rows.Err()
}

func (a *AgentStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := a.s.db.ExecContext(ctx, `update agent_keys set is_enabled=$2 where id=$1`, id, enabled)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return agent.ErrNotFound
	}
	return nil
}

func (a *AgentStore) RecordUse(ctx context.Context, id string) error {
	_, err := a.s.db.ExecContext(ctx, `
		update agent_keys
		set total_requests = total_requests + 1, last_used_at = now()
		where id=$1
	`, id)
	return err
}
