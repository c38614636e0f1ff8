package metrics

import (
	"fmt"
	"sort"
	"strings"
)

// RenderPrometheus renders the collector's state in Prometheus
// text exposition format. Real Prometheus integration is done
// by the host application; this keeps the core free of a
// client dependency while staying scrapeable.
func (c *Collector) RenderPrometheus() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var b strings.Builder

	b.WriteString(
		"# HELP challenge_runs_total Total sequence and " +
			"single-challenge starts.\n",
	)
	b.WriteString("# TYPE challenge_runs_total counter\n")
	fmt.Fprintf(
		&b, "challenge_runs_total %d\n", c.runTotal,
	)

	b.WriteString(
		"# HELP challenge_active_level Level currently " +
			"executing (0 when idle).\n",
	)
	b.WriteString("# TYPE challenge_active_level gauge\n")
	fmt.Fprintf(
		&b, "challenge_active_level %d\n", c.activeLevel,
	)

	levels := make([]int, 0, len(c.levels))
	for level := range c.levels {
		levels = append(levels, level)
	}
	sort.Ints(levels)

	b.WriteString(
		"# HELP challenge_executions_total Challenge runs " +
			"by level and status.\n",
	)
	b.WriteString(
		"# TYPE challenge_executions_total counter\n",
	)
	for _, level := range levels {
		ls := c.levels[level]
		statuses := make([]string, 0, len(ls.byStatus))
		for s := range ls.byStatus {
			statuses = append(statuses, s)
		}
		sort.Strings(statuses)
		for _, s := range statuses {
			fmt.Fprintf(
				&b,
				"challenge_executions_total"+
					"{level=%q,status=%q} %d\n",
				fmt.Sprint(level), s, ls.byStatus[s],
			)
		}
	}

	b.WriteString(
		"# HELP challenge_duration_seconds_total Cumulative " +
			"run duration by level.\n",
	)
	b.WriteString(
		"# TYPE challenge_duration_seconds_total counter\n",
	)
	for _, level := range levels {
		fmt.Fprintf(
			&b,
			"challenge_duration_seconds_total{level=%q} %g\n",
			fmt.Sprint(level),
			c.levels[level].totalDuration.Seconds(),
		)
	}

	return b.String()
}
