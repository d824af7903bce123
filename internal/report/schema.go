package report

import "encoding/json"

// RunStatus is the controller-side summary posted after an experiment run
type RunStatus struct {
	RunID       string  `json:"run_id"`
	Operation   string  `json:"operation"`
	Mode        string  `json:"mode"`
	FileName    string  `json:"file_name"`
	RunTime     float64 `json:"run_time_seconds"`
	StatusTime  int64   `json:"status_time"`
	Success     bool    `json:"success"`
	FailureInfo string  `json:"failure_info,omitempty"`
}

func (s *RunStatus) Json() string {
	js, _ := json.Marshal(s)
	return string(js)
}
