package health

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/fedihealth/internal/domain"
)

// Ranking is one successfully checked instance in a comparison.
type Ranking struct {
	Instance domain.Instance
	Score    int
	Report   *domain.Report
}

// Compare runs every instance through runner, drops runs that failed the
// gate and orders the rest by score, best first. Equal scores keep their
// input order. At most workers runs are in flight; values below 1 mean 1.
func Compare(ctx context.Context, runner Runner, instances []domain.Instance, workers int) []Ranking {
	if workers < 1 {
		workers = 1
	}

	reports := make([]*domain.Report, len(instances))
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, inst := range instances {
		i, inst := i, inst
		g.Go(func() error {
			reports[i] = runner.Run(ctx, inst)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Ranking, 0, len(reports))
	for i, rep := range reports {
		if rep == nil || rep.Failed {
			continue
		}
		out = append(out, Ranking{Instance: instances[i], Score: Score(rep), Report: rep})
	}
	Rank(out)
	return out
}

// Rank sorts rankings by score descending, keeping input order on ties.
func Rank(r []Ranking) {
	sort.SliceStable(r, func(i, j int) bool { return r[i].Score > r[j].Score })
}
