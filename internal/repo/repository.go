package repo

import (
	"context"

	"github.com/hamed0406/fedihealth/internal/domain"
)

// RunStore keeps the history of monitor passes.
type RunStore interface {
	Append(ctx context.Context, rec *domain.RunRecord) error
	// Latest returns the newest record of every instance, ordered by host.
	Latest(ctx context.Context) ([]domain.RunRecord, error)
	// LatestFor returns nil, nil if inst has no record yet.
	LatestFor(ctx context.Context, inst domain.Instance) (*domain.RunRecord, error)
	// History returns up to limit records of inst, newest first. A limit
	// below 1 returns everything kept.
	History(ctx context.Context, inst domain.Instance, limit int) ([]domain.RunRecord, error)
}
