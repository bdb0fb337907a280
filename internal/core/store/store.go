// Package store defines how saved rules are persisted. A rule belongs to a
// linking task inside a project; the pair identifies it.
package store

import (
	"context"
	"time"

	"github.com/flowgraph/ruleeditor/pkg/ruletree"
)

// RuleRecord is a saved rule with its owner and bookkeeping.
type RuleRecord struct {
	ProjectID string         `json:"projectId" msgpack:"projectId"`
	TaskID    string         `json:"taskId" msgpack:"taskId"`
	Rule      *ruletree.Rule `json:"rule" msgpack:"rule"`
	Version   int64          `json:"version" msgpack:"version"`
	UpdatedAt time.Time      `json:"updatedAt" msgpack:"updatedAt"`
}

// Validate checks the record's identity and rule.
func (r *RuleRecord) Validate() error {
	if r == nil {
		return ErrNilRecord
	}
	if r.ProjectID == "" {
		return ErrInvalidProjectID
	}
	if r.TaskID == "" {
		return ErrInvalidTaskID
	}
	if r.Rule == nil {
		return ErrNilRule
	}
	if r.Rule.Operator != nil {
		return r.Rule.Operator.Validate()
	}
	return nil
}

// Key identifies the record as "project/task".
func (r *RuleRecord) Key() string {
	return Key(r.ProjectID, r.TaskID)
}

// Key joins a project and task ID.
func Key(projectID, taskID string) string {
	return projectID + "/" + taskID
}

// CheckKey validates a project and task ID pair.
func CheckKey(projectID, taskID string) error {
	if projectID == "" {
		return ErrInvalidProjectID
	}
	if taskID == "" {
		return ErrInvalidTaskID
	}
	return nil
}

// Store persists rule records. Save assigns the next version and the
// update time to the record it is given.
type Store interface {
	Save(ctx context.Context, record *RuleRecord) error
	Load(ctx context.Context, projectID, taskID string) (*RuleRecord, error)
	List(ctx context.Context, filter Filter) ([]*RuleRecord, error)
	Delete(ctx context.Context, projectID, taskID string) error
}

// Filter narrows List results. Records are returned newest first.
type Filter struct {
	ProjectID string     `json:"projectId,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Offset    int        `json:"offset,omitempty"`
	Since     *time.Time `json:"since,omitempty"`
	Before    *time.Time `json:"before,omitempty"`
}

// Validate ensures filter parameters are valid
func (f *Filter) Validate() error {
	if f.Limit < 0 {
		return ErrInvalidLimit
	}
	if f.Offset < 0 {
		return ErrInvalidOffset
	}
	if f.Since != nil && f.Before != nil && f.Since.After(*f.Before) {
		return ErrInvalidTimeRange
	}
	return nil
}

// Matches reports whether a record passes the filter's project and time
// conditions. Paging is not considered.
func (f *Filter) Matches(r *RuleRecord) bool {
	if f.ProjectID != "" && r.ProjectID != f.ProjectID {
		return false
	}
	if f.Since != nil && !r.UpdatedAt.After(*f.Since) {
		return false
	}
	if f.Before != nil && !r.UpdatedAt.Before(*f.Before) {
		return false
	}
	return true
}

// Page applies offset and limit to an ordered result.
func (f *Filter) Page(records []*RuleRecord) []*RuleRecord {
	if f.Offset >= len(records) {
		return []*RuleRecord{}
	}
	records = records[f.Offset:]
	if f.Limit > 0 && f.Limit < len(records) {
		records = records[:f.Limit]
	}
	return records
}
