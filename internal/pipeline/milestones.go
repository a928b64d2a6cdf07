package pipeline

// Step names a progress milestone of a report generation.
type Step string

// Generation milestones in the order they are reached.
const (
	StepAccepted    Step = "accepted"
	StepNavigating  Step = "navigating"
	StepPageReady   Step = "page_ready"
	StepChartsReady Step = "charts_ready"
	StepPDFRendered Step = "pdf_rendered"
	StepUploaded    Step = "uploaded"
	StepComplete    Step = "complete"
)

// MilestoneProgress maps each step to the progress percentage recorded when it is reached.
var MilestoneProgress = map[Step]int{
	StepAccepted:    10,
	StepNavigating:  20,
	StepPageReady:   40,
	StepChartsReady: 70,
	StepPDFRendered: 85,
	StepUploaded:    95,
	StepComplete:    100,
}

// ProgressEvent represents a progress update during report generation
type ProgressEvent struct {
	JobID    string `json:"job_id"`
	Step     Step   `json:"step"`
	Progress int    `json:"progress"`
	Attempt  int    `json:"attempt"`
}

// ProgressCallback is called when a milestone is recorded
type ProgressCallback func(event ProgressEvent)
