package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/vnykmshr/pipex/pkg/scheduling/pipeline"
)

type benchCase struct {
	label       string
	concurrency int
	stages      []pipeline.Stage
}

type benchResult struct {
	benchCase
	output   int
	failures int
	duration time.Duration
}

func (r benchResult) throughput(items int) float64 {
	if r.duration <= 0 {
		return 0
	}
	return float64(items) / r.duration.Seconds()
}

// runCases runs every case over the same input and prints a table.
func (e *env) runCases(ctx context.Context, workload string, cases []benchCase) error {
	input := make([]int, e.items)
	for i := range input {
		input[i] = i + 1
	}

	results := make([]benchResult, 0, len(cases))
	for _, c := range cases {
		result, err := e.exec.Run(ctx, c.stages, pipeline.Items(input))
		if err != nil {
			return fmt.Errorf("%s %s/%d: %w", workload, c.label, c.concurrency, err)
		}

		r := benchResult{benchCase: c, output: len(result.Output), duration: result.Duration}
		for _, sr := range result.StageResults {
			r.failures += sr.Failures
		}
		results = append(results, r)

		e.logger.Debug().
			Str("workload", workload).
			Str("mode", c.label).
			Int("concurrency", c.concurrency).
			Dur("duration", r.duration).
			Msg("case finished")
	}

	return e.report(workload, results)
}

func (e *env) report(workload string, results []benchResult) error {
	fmt.Fprintf(e.out, "%s workload, %d items\n", workload, e.items)

	tw := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODE\tCONCURRENCY\tOUTPUT\tFAILURES\tDURATION\tITEMS/S")
	for _, r := range results {
		concurrency := "-"
		if r.concurrency > 0 {
			concurrency = fmt.Sprint(r.concurrency)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%.1f\n",
			r.label, concurrency, r.output, r.failures,
			r.duration.Round(time.Microsecond), r.throughput(e.items))
	}
	return tw.Flush()
}
