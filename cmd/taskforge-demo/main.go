// taskforge-demo is a small CLI that boots the engine, submits a
// batch of demo jobs through the smart-mode façade, and prints a
// summary report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/riftlabs/taskforge/internal/engine"
	"github.com/riftlabs/taskforge/internal/models"
	"github.com/riftlabs/taskforge/pkg/taskexecutor"
)

// DemoReport summarizes one run of the demo workload.
type DemoReport struct {
	JobsSubmitted int           `json:"jobs_submitted"`
	JobsSucceeded int           `json:"jobs_succeeded"`
	JobsFailed    int           `json:"jobs_failed"`
	Duration      time.Duration `json:"duration_ns"`
	Stats         engine.Stats  `json:"stats"`
}

func main() {
	var (
		threads    int
		processes  int
		cachePath  string
		jobs       int
		jsonOutput bool
	)

	flag.IntVar(&threads, "threads", 4, "thread pool size")
	flag.IntVar(&processes, "processes", 2, "process pool size")
	flag.StringVar(&cachePath, "cache-path", "taskforge-demo-cache.db", "result cache path")
	flag.IntVar(&jobs, "jobs", 20, "number of demo jobs to submit")
	flag.BoolVar(&jsonOutput, "json", false, "output as JSON")
	flag.Parse()

	logger := logrus.StandardLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := engine.ConfigFromEnv()
	cfg.ThreadPoolSize = threads
	cfg.ProcessPoolSize = processes
	cfg.CachePath = cachePath

	master, err := engine.Start(cfg, logger, nil)
	if err != nil {
		logger.WithError(err).Fatal("taskforge-demo: failed to start engine")
	}

	executor := taskexecutor.NewSmart(master, logger)

	report := runDemo(ctx, executor, jobs)
	report.Stats = master.GetStats()

	if err := executor.Cleanup(true, 5*time.Second); err != nil {
		logger.WithError(err).Warn("taskforge-demo: cleanup did not complete cleanly")
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(data))
	} else {
		fmt.Printf("submitted=%d succeeded=%d failed=%d duration=%s\n",
			report.JobsSubmitted, report.JobsSucceeded, report.JobsFailed, report.Duration)
	}

	if report.JobsFailed > 0 {
		os.Exit(1)
	}
}

// runDemo submits n jobs (every 7th deliberately fails, to exercise
// AwaitResults' partial-failure path) and waits for all of them.
func runDemo(ctx context.Context, executor *taskexecutor.Executor, n int) DemoReport {
	start := time.Now()

	jobsList := make([]models.Job, n)
	for i := 0; i < n; i++ {
		i := i
		jobsList[i] = models.NewJob(func(ctx context.Context) (any, error) {
			if i%7 == 0 {
				return nil, fmt.Errorf("demo job %d: simulated failure", i)
			}
			time.Sleep(10 * time.Millisecond)
			return i * i, nil
		})
	}

	batch, err := executor.Multithread(jobsList, false)
	if err != nil {
		return DemoReport{JobsSubmitted: n, JobsFailed: n, Duration: time.Since(start)}
	}

	results, err := batch.AwaitResults(ctx, models.AwaitResultsOptions{})
	if err != nil {
		return DemoReport{JobsSubmitted: n, JobsFailed: n, Duration: time.Since(start)}
	}

	report := DemoReport{JobsSubmitted: n}
	for _, r := range results {
		if _, failed := r.(*models.TaskException); failed {
			report.JobsFailed++
		} else {
			report.JobsSucceeded++
		}
	}
	report.Duration = time.Since(start)
	return report
}
