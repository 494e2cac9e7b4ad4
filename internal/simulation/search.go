package simulation

import (
	"context"
	"fmt"

	"github.com/ukfire/firecalc/internal/domain"
)

// FindOptimalAge binary-searches integer retirement ages in
// [currentAge+1, MaxRetirementAge] for the earliest age whose success rate
// meets the plan's target, probing each midpoint with a reduced simulation
// count. Returns ErrNotAchievable when no age in range meets the target.
//
// The search assumes the success rate is monotonically non-decreasing in the
// retirement age. Sequence-of-returns risk can violate that for some
// allocations, in which case the search may miss a valid earlier age; enable
// LinearScanVerify to double-check the answer by linear scan. Callers
// needing final confidence re-run the returned age at full batch size.
func (e *Engine) FindOptimalAge(ctx context.Context) (int, error) {
	probeSims := searchSimulations
	if e.cfg.NumSimulations < probeSims {
		probeSims = e.cfg.NumSimulations
	}
	target := e.plan.TargetSuccessRate

	left, right := e.plan.CurrentAge+1, domain.MaxRetirementAge
	best := -1
	for left <= right {
		mid := (left + right) / 2
		result, err := e.runBatchN(ctx, mid, probeSims)
		if err != nil {
			return 0, err
		}
		e.log.Debug().Int("age", mid).Float64("successRate", result.SuccessRate).Float64("target", target).Msg("optimal-age probe")
		if result.SuccessRate >= target {
			best = mid
			right = mid - 1
		} else {
			left = mid + 1
		}
	}
	if best < 0 {
		return 0, fmt.Errorf("%w: no retirement age in [%d, %d] reaches %.1f%% success",
			domain.ErrNotAchievable, e.plan.CurrentAge+1, domain.MaxRetirementAge, target*100)
	}

	if e.cfg.LinearScanVerify {
		verified, err := e.linearScanEarlier(ctx, best, probeSims)
		if err != nil {
			return 0, err
		}
		if verified != best {
			e.log.Warn().Int("binarySearch", best).Int("linearScan", verified).Msg("non-monotonic success rate: linear scan found an earlier age")
			best = verified
		}
	}
	return best, nil
}

// linearScanEarlier walks ages downward from the binary-search answer and
// returns the earliest age still meeting the target, catching non-monotonic
// success-rate curves the binary search would skip over.
func (e *Engine) linearScanEarlier(ctx context.Context, fromAge, probeSims int) (int, error) {
	best := fromAge
	for age := fromAge - 1; age > e.plan.CurrentAge; age-- {
		result, err := e.runBatchN(ctx, age, probeSims)
		if err != nil {
			return 0, err
		}
		if result.SuccessRate >= e.plan.TargetSuccessRate {
			best = age
		}
	}
	return best, nil
}
