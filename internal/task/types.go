package task

type Status string

const (
	// StatusDownloading covers both the extraction and the segmentation
	// stage; a job only leaves it for a terminal state.
	StatusDownloading Status = "downloading"
	StatusDone        Status = "done"
	StatusFailed      Status = "failed"
)

// Progress only ever takes these two values.
const (
	ProgressStarted  uint8 = 0
	ProgressComplete uint8 = 100
)

// TaskStatus is the polled view of one background job.
type TaskStatus struct {
	TaskID   string   `json:"task_id"`
	Title    string   `json:"title"`
	Status   Status   `json:"status"`
	Progress uint8    `json:"progress"`
	Log      []string `json:"log"`
}

// Terminal reports whether the job has finished, successfully or not.
func (t TaskStatus) Terminal() bool {
	return t.Status == StatusDone || t.Status == StatusFailed
}

func (t *TaskStatus) snapshot() TaskStatus {
	out := *t
	out.Log = make([]string, len(t.Log))
	copy(out.Log, t.Log)
	return out
}
