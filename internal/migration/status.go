package migration

import (
	"context"
	"time"

	"github.com/loykin/sqlrun/internal/script"
)

// Info is one row of the status listing.
type Info struct {
	Key         string
	Filename    string
	Description string
	CreatedAt   time.Time
	// AppliedAt is nil for pending migrations.
	AppliedAt *time.Time
}

// Status returns "applied" or "pending".
func (i Info) Status() string {
	if i.AppliedAt != nil {
		return "applied"
	}
	return "pending"
}

// Current returns the newest applied sequence key, or "" when nothing is
// applied.
func (t *Tool) Current(ctx context.Context) (string, error) {
	applied, err := t.store.LoadApplied(ctx)
	if err != nil {
		return "", err
	}
	if len(applied) == 0 {
		return "", nil
	}
	return applied[len(applied)-1], nil
}

// Pending returns the file names an upgrade would apply, in order.
func (t *Tool) Pending(ctx context.Context) ([]string, error) {
	p, err := t.PlanUpgrade(ctx, "")
	if err != nil {
		return nil, err
	}
	return p.Filenames(), nil
}

// List returns the newest limit applied migrations (all when limit <= 0),
// followed by every pending one.
func (t *Tool) List(ctx context.Context, limit int) ([]Info, error) {
	records, err := t.repo.ListAll()
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]script.Record, len(records))
	for _, r := range records {
		byKey[r.Key] = r
	}
	entries, err := t.store.Entries(ctx, limit)
	if err != nil {
		return nil, err
	}

	out := make([]Info, 0, len(entries)+len(records))
	for _, e := range entries {
		at := e.AppliedAt
		info := Info{Key: e.Key, Filename: e.Key, Description: e.Description, AppliedAt: &at}
		if r, ok := byKey[e.Key]; ok {
			info.Filename, info.Description = r.Filename, r.Description
		}
		info.CreatedAt, _ = script.KeyTime(e.Key)
		out = append(out, info)
	}

	pending, err := t.PlanUpgrade(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, s := range pending.Steps {
		created, _ := script.KeyTime(s.Record.Key)
		out = append(out, Info{
			Key:         s.Record.Key,
			Filename:    s.Record.Filename,
			Description: s.Record.Description,
			CreatedAt:   created,
		})
	}
	return out, nil
}
