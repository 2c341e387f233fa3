package querytrace

import (
	"context"
	"regexp"
	"strconv"

	"github.com/dgraph-io/ristretto"
)

// costPattern matches planner cost annotations of the form
// "cost=0.00..15.70" and captures the upper bound.
var costPattern = regexp.MustCompile(`cost=\d+\.\d+\.\.(\d+\.\d+)`)

// parseCost extracts the maximum upper-bound cost figure from plan text.
// Text with no recognizable cost yields 0; estimation is best effort, not
// guaranteed accurate.
func parseCost(plan string) float64 {
	var maxCost float64
	for _, m := range costPattern.FindAllStringSubmatch(plan, -1) {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if v > maxCost {
			maxCost = v
		}
	}
	return maxCost
}

// estimateCost runs a plan-only execution of sql through the original
// capability and parses the cost signal out of the plan rows. Any failure
// is returned so the caller can classify and propagate it.
func (t *Tracer) estimateCost(ctx context.Context, sql string, args ...any) (float64, error) {
	if t.planCache != nil {
		if v, ok := t.planCache.Get(sql); ok {
			if cost, ok := v.(float64); ok {
				return cost, nil
			}
		}
	}

	rows, err := t.base.Query(ctx, "EXPLAIN "+sql, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var maxCost float64
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return 0, err
		}
		if c := parseCost(line); c > maxCost {
			maxCost = c
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	if t.planCache != nil {
		t.planCache.Set(sql, maxCost, 1)
	}
	return maxCost, nil
}

func newPlanCache() (*ristretto.Cache, error) {
	return ristretto.NewCache(&ristretto.Config{
		NumCounters: 1 << 12,
		MaxCost:     1 << 10,
		BufferItems: 64,
	})
}
