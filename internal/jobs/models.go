package jobs

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DocumentVersion is the schema tag written into every new job document.
const DocumentVersion = "1"

// TimestampLayout matches the on-disk format for date_created and date_updated.
const TimestampLayout = "2006-01-02T15:04:05-0700"

// Bucket identifies the lifecycle location of a job.
type Bucket string

const (
	BucketUnassigned Bucket = "unassigned"
	BucketQueued     Bucket = "queued"
	BucketFailed     Bucket = "failed"
	BucketCompleted  Bucket = "completed"
)

var allBuckets = []Bucket{
	BucketUnassigned,
	BucketQueued,
	BucketFailed,
	BucketCompleted,
}

// locateOrder is the priority used when resolving which bucket holds a job.
var locateOrder = []Bucket{
	BucketQueued,
	BucketFailed,
	BucketCompleted,
}

// AllBuckets returns the buckets in enumeration order.
func AllBuckets() []Bucket {
	cp := make([]Bucket, len(allBuckets))
	copy(cp, allBuckets)
	return cp
}

// ParseBucket converts a string into a known Bucket.
func ParseBucket(value string) (Bucket, bool) {
	normalized := Bucket(strings.ToLower(strings.TrimSpace(value)))
	for _, bucket := range allBuckets {
		if bucket == normalized {
			return bucket, true
		}
	}
	return "", false
}

// Dir returns the directory name used by the filesystem backend. Unassigned
// jobs live in the root itself.
func (b Bucket) Dir() string {
	if b == BucketUnassigned {
		return ""
	}
	return string(b)
}

// StepStatus represents the lifecycle of a single step.
type StepStatus string

const (
	StepQueued    StepStatus = "queued"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// ParseStepStatus converts a string into a known StepStatus.
func ParseStepStatus(value string) (StepStatus, bool) {
	switch status := StepStatus(strings.ToLower(strings.TrimSpace(value))); status {
	case StepQueued, StepCompleted, StepFailed:
		return status, true
	default:
		return "", false
	}
}

// CanTransition reports whether a step may move from one status to another
// through SetStepStatus. Completed steps only change through UpdateStep.
func CanTransition(from, to StepStatus) bool {
	if from == StepCompleted {
		return to == StepCompleted
	}
	return true
}

// Action tags the kind of work a step performs.
type Action string

const (
	ActionProcess Action = "process"
	ActionExtract Action = "extract"
	ActionMerge   Action = "merge"
)

// DefaultAction is assigned to every new or replaced step.
const DefaultAction = ActionProcess

// Step is one unit of worker invocation inside a job.
type Step struct {
	Action Action     `json:"action" yaml:"action"`
	Args   []string   `json:"args" yaml:"args"`
	Status StepStatus `json:"status" yaml:"status"`
}

// NewStep returns a queued step with the default action.
func NewStep(args []string) Step {
	cp := make([]string, len(args))
	copy(cp, args)
	return Step{
		Action: DefaultAction,
		Args:   cp,
		Status: StepQueued,
	}
}

// Job is the persisted document for one unit of work. The job id is the
// storage key and is not part of the document.
type Job struct {
	Version     string     `json:"version" yaml:"version"`
	DateCreated Timestamp  `json:"date_created" yaml:"date_created"`
	DateUpdated *Timestamp `json:"date_updated" yaml:"date_updated"`
	Steps       []Step     `json:"steps" yaml:"steps"`
}

// NewJob returns a fresh document with no steps.
func NewJob(now time.Time) *Job {
	return &Job{
		Version:     DocumentVersion,
		DateCreated: Timestamp{Time: now},
		Steps:       []Step{},
	}
}

// CompletedSteps counts steps whose status is completed.
func (j *Job) CompletedSteps() int {
	if j == nil {
		return 0
	}
	count := 0
	for _, step := range j.Steps {
		if step.Status == StepCompleted {
			count++
		}
	}
	return count
}

// Timestamp serializes as an ISO-8601 string with a numeric offset.
type Timestamp struct {
	time.Time
}

// Now returns the current local time truncated to the stored precision.
func Now() Timestamp {
	return Timestamp{Time: time.Now().Truncate(time.Second)}
}

func (t Timestamp) String() string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimestampLayout)
}

// MarshalText implements encoding.TextMarshaler for both JSON and YAML codecs.
func (t Timestamp) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. RFC 3339 values are
// accepted as well so hand-edited documents still load.
func (t *Timestamp) UnmarshalText(text []byte) error {
	value := strings.TrimSpace(string(text))
	if value == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{TimestampLayout, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		parsed, err := time.Parse(layout, value)
		if err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("parse timestamp %q", value)
}

// MarshalJSON keeps the stored layout instead of the RFC 3339 form promoted
// from time.Time.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts the stored layout, RFC 3339, or null.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return fmt.Errorf("parse timestamp: %w", err)
	}
	return t.UnmarshalText([]byte(value))
}
