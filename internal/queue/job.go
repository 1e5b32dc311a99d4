// Package queue carries enrichment jobs from a queue transport to a handler.
// It defines the wire envelope, the Source abstraction with SQLite and Redis
// implementations, producer-side publishers, and the Consumer loop.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobType selects the handler for a job.
type JobType string

const (
	EnrichNews            JobType = "enrich_news"
	EnrichBill            JobType = "enrich_bill"
	DeepAnalysisBill      JobType = "deep_analysis_bill"
	DeepAnalysisStateBill JobType = "deep_analysis_state_bill"
)

// JobTypes lists every type the pipeline handles.
var JobTypes = []JobType{EnrichNews, EnrichBill, DeepAnalysisBill, DeepAnalysisStateBill}

// Valid reports whether t is one of JobTypes.
func (t JobType) Valid() bool {
	for _, k := range JobTypes {
		if t == k {
			return true
		}
	}
	return false
}

// ParseJobType accepts a job type name, case-insensitively.
func ParseJobType(s string) (JobType, error) {
	t := JobType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown job type %q", s)
	}
	return t, nil
}

// Job is one unit of enrichment work. Deliveries of the same job may repeat.
type Job struct {
	Type       JobType
	EntityID   string
	EnqueuedAt time.Time
}

// NewJob stamps a job with the current time.
func NewJob(t JobType, entityID string) Job {
	return Job{Type: t, EntityID: entityID, EnqueuedAt: time.Now().UTC()}
}

// ErrMalformedEnvelope is returned by Decode for bodies that can never be
// processed. Such deliveries are dead-lettered rather than retried.
var ErrMalformedEnvelope = errors.New("malformed job envelope")

type envelope struct {
	Type        string `json:"type"`
	ArticleID   string `json:"article_id,omitempty"`
	BillID      string `json:"bill_id,omitempty"`
	StateBillID string `json:"state_bill_id,omitempty"`
	EntityID    string `json:"entity_id,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
	Attempts    int    `json:"attempts,omitempty"`
}

// Decode parses a wire envelope. The entity id may arrive as article_id,
// bill_id, state_bill_id or entity_id. An unknown type is not an error here;
// routing decides what to do with it.
func Decode(body []byte) (Job, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Job{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	id := firstNonEmpty(env.ArticleID, env.BillID, env.StateBillID, env.EntityID)
	if id == "" {
		return Job{}, fmt.Errorf("%w: no entity id", ErrMalformedEnvelope)
	}

	job := Job{Type: JobType(strings.TrimSpace(env.Type)), EntityID: id}
	if env.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339Nano, env.Timestamp); err == nil {
			job.EnqueuedAt = t
		}
	}
	return job, nil
}

// Encode renders the wire envelope. News jobs carry article_id, bill jobs
// carry bill_id.
func (j Job) Encode() ([]byte, error) {
	env := envelope{Type: string(j.Type)}
	if j.Type == EnrichNews {
		env.ArticleID = j.EntityID
	} else {
		env.BillID = j.EntityID
	}
	ts := j.EnqueuedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	env.Timestamp = ts.UTC().Format(time.RFC3339)
	return json.Marshal(env)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
