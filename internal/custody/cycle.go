package custody

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ligun0805/wallet-rotator/internal/wallet"
)

// ErrDrainIncomplete stops a cycle before rotation when some leg failed.
var ErrDrainIncomplete = errors.New("drain incomplete")

// CyclePaths locate the two generations and the archive directory.
type CyclePaths struct {
	New    string
	Old    string
	Backup string
}

// CycleReport is what one rotation cycle did.
type CycleReport struct {
	Drained  []TransferOutcome
	Fresh    []wallet.Record
	Rotation wallet.RotationResult
	Rotated  bool
}

// Cycle drains the retiring generation, then generates and rotates in a new one.
type Cycle struct {
	transfers *Transfers
	paths     CyclePaths
	log       zerolog.Logger
}

func NewCycle(t *Transfers, paths CyclePaths, log zerolog.Logger) *Cycle {
	return &Cycle{transfers: t, paths: paths, log: log.With().Str("component", "cycle").Logger()}
}

// Run drains old into new when both files exist, then generates count fresh
// wallets and rotates them in. A drain with failed legs aborts the cycle
// unless force is set, so funds are never left behind an archived file.
func (c *Cycle) Run(ctx context.Context, count int, force bool) (CycleReport, error) {
	var rep CycleReport
	if count < 1 {
		return rep, fmt.Errorf("%w: count must be >= 1, got %d", ErrInvalidArgument, count)
	}

	if wallet.Exists(c.paths.Old) && wallet.Exists(c.paths.New) {
		if c.transfers == nil {
			return rep, fmt.Errorf("%w: both generations exist but no chain access to drain them", ErrInvalidArgument)
		}
		retiring, err := wallet.Load(c.paths.Old)
		if err != nil {
			return rep, err
		}
		current, err := wallet.Load(c.paths.New)
		if err != nil {
			return rep, err
		}
		if count != len(current) {
			c.log.Warn().Int("count", count).Int("current", len(current)).Msg("generation size changes with this rotation")
		}
		rep.Drained, err = c.transfers.DrainAll(ctx, retiring, current)
		if err != nil {
			return rep, err
		}
		sum := SummarizeTransfers(rep.Drained)
		c.log.Info().Int("confirmed", sum.Confirmed).Int("skipped", sum.Skipped).Int("failed", sum.Failed).Msg("drain finished")
		if sum.Failed > 0 && !force {
			return rep, fmt.Errorf("%w: %d failed leg(s)", ErrDrainIncomplete, sum.Failed)
		}
	} else {
		c.log.Info().Str("old", c.paths.Old).Str("new", c.paths.New).Msg("no full pair of generations, skip drain")
	}

	fresh, err := wallet.Generate(count)
	if err != nil {
		return rep, err
	}
	rep.Fresh = fresh
	rep.Rotation, err = wallet.Rotate(c.paths.New, c.paths.Old, c.paths.Backup, fresh)
	if err != nil {
		return rep, err
	}
	rep.Rotated = true
	c.log.Info().Int("count", count).Str("archived", rep.Rotation.ArchivedTo).Msg("rotation complete")
	return rep, nil
}
