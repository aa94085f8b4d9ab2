package entity

import (
	"context"
	"errors"
	"time"
)

// Kind enumerates the directory entity kinds subject to editorial change.
type Kind string

const (
	KindProgram  Kind = "program"
	KindCategory Kind = "category"
	KindNetwork  Kind = "network"
	KindAsset    Kind = "asset"
)

var ErrNotFound = errors.New("entity: not found")

// Kinds lists all known kinds in a stable order.
func Kinds() []Kind {
	return []Kind{KindProgram, KindCategory, KindNetwork, KindAsset}
}

// Valid reports whether k is a known entity kind.
func (k Kind) Valid() bool {
	switch k {
	case KindProgram, KindCategory, KindNetwork, KindAsset:
		return true
	}
	return false
}

// Record is the researched state of one directory entity. Extracted holds the
// field->value mapping the editorial pipeline mutates; the entity's own row
// (name, domain, slugs) belongs to the out-of-scope importers.
type Record struct {
	Kind      Kind           `json:"kind"`
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	Extracted map[string]any `json:"extracted"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Store reads and writes researched entity state. UpdateExtracted replaces the
// whole extracted document; callers merge before writing.
type Store interface {
	Get(ctx context.Context, kind Kind, id int64) (Record, error)
	UpdateExtracted(ctx context.Context, kind Kind, id int64, extracted map[string]any) error
}
