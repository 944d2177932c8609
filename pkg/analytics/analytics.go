// Package analytics derives workflow and step statistics from sealed execution traces.
// Results are recomputed on demand and never stored as the source of truth.
package analytics

import (
	"time"

	"github.com/iverton053/ivertonai.com-sub010/pkg/models"
)

// Summary aggregates the sealed runs of one workflow.
type Summary struct {
	ExecutionCount        int           `json:"execution_count"`
	Completed             int           `json:"completed"`
	Failed                int           `json:"failed"`
	Cancelled             int           `json:"cancelled"`
	SuccessRate           float64       `json:"success_rate"` // percent
	AverageDuration       time.Duration `json:"average_duration"`
	AverageActiveDuration time.Duration `json:"average_active_duration"`
	TimeSavedHours        float64       `json:"time_saved_hours"`
	LastExecutedAt        *time.Time    `json:"last_executed_at,omitempty"`
}

// StepSummary aggregates the records of one step across runs.
type StepSummary struct {
	StepID          string        `json:"step_id"`
	ExecutionCount  int           `json:"execution_count"`
	Completed       int           `json:"completed"`
	Failed          int           `json:"failed"`
	Skipped         int           `json:"skipped"`
	SuccessRate     float64       `json:"success_rate"` // percent of finished attempts
	AverageDuration time.Duration `json:"average_duration"`
}

// Summarize aggregates traces. Running traces are ignored. timeSavedPerRunHours
// is the caller's estimate of manual work saved by one run.
func Summarize(traces []*models.ExecutionTrace, timeSavedPerRunHours float64) Summary {
	var (
		summary Summary
		total   time.Duration
		active  time.Duration
	)

	for _, trace := range traces {
		if trace == nil || !trace.Status.Sealed() {
			continue
		}

		summary.ExecutionCount++
		total += trace.Duration()
		active += trace.ActiveDuration

		switch trace.Status {
		case models.ExecutionStatusCompleted:
			summary.Completed++
		case models.ExecutionStatusFailed:
			summary.Failed++
		case models.ExecutionStatusCancelled:
			summary.Cancelled++
		}

		if summary.LastExecutedAt == nil || trace.StartedAt.After(*summary.LastExecutedAt) {
			started := trace.StartedAt
			summary.LastExecutedAt = &started
		}
	}

	if summary.ExecutionCount == 0 {
		return summary
	}

	n := summary.ExecutionCount
	summary.SuccessRate = percent(summary.Completed, n)
	summary.AverageDuration = total / time.Duration(n)
	summary.AverageActiveDuration = active / time.Duration(n)
	summary.TimeSavedHours = timeSavedPerRunHours * float64(n)

	return summary
}

// StepSummaries aggregates step records of sealed traces, ordered by first appearance.
func StepSummaries(traces []*models.ExecutionTrace) []StepSummary {
	index := map[string]int{}
	summaries := make([]StepSummary, 0)
	durations := make([]time.Duration, 0)

	for _, trace := range traces {
		if trace == nil || !trace.Status.Sealed() {
			continue
		}

		for _, record := range trace.StepExecutions {
			i, ok := index[record.StepID]
			if !ok {
				i = len(summaries)
				index[record.StepID] = i
				summaries = append(summaries, StepSummary{StepID: record.StepID})
				durations = append(durations, 0)
			}

			s := &summaries[i]

			switch record.Status {
			case models.StepStatusCompleted:
				s.Completed++
			case models.StepStatusFailed:
				s.Failed++
			case models.StepStatusSkipped:
				s.Skipped++
				continue
			default:
				continue
			}

			s.ExecutionCount++
			durations[i] += record.Duration()
		}
	}

	for i := range summaries {
		s := &summaries[i]
		if s.ExecutionCount == 0 {
			continue
		}

		s.SuccessRate = percent(s.Completed, s.ExecutionCount)
		s.AverageDuration = durations[i] / time.Duration(s.ExecutionCount)
	}

	return summaries
}

// ApplyStepStats returns a copy of wf with the derived stats of every step
// recomputed from traces. Steps without records get zero stats.
func ApplyStepStats(wf *models.Workflow, traces []*models.ExecutionTrace) *models.Workflow {
	out := wf.Clone()

	byStep := map[string]StepSummary{}
	for _, s := range StepSummaries(traces) {
		byStep[s.StepID] = s
	}

	for _, step := range out.Steps {
		s := byStep[step.ID]
		step.Stats = models.StepStats{
			ExecutionCount:  s.ExecutionCount,
			SuccessRate:     s.SuccessRate,
			AverageDuration: s.AverageDuration,
		}
	}

	return out
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}

	return float64(part) / float64(total) * 100
}
