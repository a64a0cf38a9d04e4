package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/timmy/tubebench/internal/domain"
)

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func writeJob(w io.Writer, job *domain.EnrichmentJob) {
	fmt.Fprintf(w, "Job %s: %s (%d/%d completed, %d failed)\n",
		job.ID, job.Status, job.CompletedTasks, job.TotalTasks, job.FailedTasks)
	fmt.Fprintf(w, "Started %s, finished %s\n", formatTime(job.StartedAt), formatTime(job.CompletedAt))
}

// stepCell shows a step's status, with its error appended for failed and skipped steps.
func stepCell(st domain.StepState) string {
	status := string(st.Status)
	if status == "" {
		status = string(domain.StepStatusPending)
	}
	if st.Error != "" && st.Status != domain.StepStatusCompleted {
		msg := st.Error
		if len(msg) > 40 {
			msg = msg[:40] + "..."
		}
		return status + ": " + msg
	}
	return status
}

func writeTasks(w io.Writer, tasks []domain.EnrichmentTask) {
	headers := []string{"Task", "Channel", "Overall"}
	for _, s := range domain.StepOrder {
		headers = append(headers, string(s))
	}
	headers = append(headers, "Retries")

	rows := make([][]string, 0, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		row := []string{t.ID, t.ChannelID, string(t.OverallStatus)}
		for _, st := range t.Steps() {
			row = append(row, stepCell(st))
		}
		row = append(row, strconv.Itoa(t.RetryCount))
		rows = append(rows, row)
	}

	aligns := make([]columnAlignment, len(headers))
	aligns[len(aligns)-1] = alignRight
	fmt.Fprintln(w, renderTable(headers, rows, aligns))
}

func writeJobList(w io.Writer, jobs []domain.EnrichmentJob) {
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No enrichment jobs")
		return
	}
	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, []string{
			j.ID,
			string(j.Status),
			strings.Join(j.ChannelIDs, ","),
			fmt.Sprintf("%d/%d", j.CompletedTasks, j.TotalTasks),
			strconv.Itoa(j.FailedTasks),
			j.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Job", "Status", "Channels", "Completed", "Failed", "Created"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	))
}
