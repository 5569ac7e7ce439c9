package airflow

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// WebTarget is the item to show in the Airflow web UI. Empty fields widen
// the target: no RunID means the job page, no JobID the server home.
// Attempt > 0 selects the log of that attempt.
type WebTarget struct {
	JobID   string
	RunID   string
	TaskID  string
	Attempt int
}

// WebURL returns the web UI address of t on the server at endpoint.
// Airflow 2 shows runs and tasks in the grid view; Airflow 3 gives each its
// own page.
func WebURL(endpoint string, v Version, t WebTarget) (string, error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid endpoint %q", endpoint)
	}
	base := strings.TrimRight(u.String(), "/")
	if t.JobID == "" {
		return base + "/", nil
	}

	job := base + "/dags/" + url.PathEscape(t.JobID)
	if v == V2 {
		out := job
		if t.RunID != "" {
			out += "/runs/" + url.PathEscape(t.RunID)
			if t.TaskID != "" {
				out += "/tasks/" + url.PathEscape(t.TaskID)
				if t.Attempt > 0 {
					out += "?try_number=" + strconv.Itoa(t.Attempt)
				}
			}
		}
		return out, nil
	}

	if t.RunID == "" {
		return job + "/grid", nil
	}
	q := url.Values{"dag_run_id": {t.RunID}}
	if t.TaskID != "" {
		q.Set("task_id", t.TaskID)
		if t.Attempt > 0 {
			q.Set("tab", "logs")
			q.Set("try_number", strconv.Itoa(t.Attempt))
		}
	}
	return job + "/grid?" + q.Encode(), nil
}
