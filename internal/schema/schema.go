// Package schema defines the Riberry entity graph as decoded from API
// responses. Entities are replaced wholesale on refresh; nothing in this
// package mutates a record after decode.
package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is an entity identifier. The backend emits numeric ids for most
// entities and string ids for a few; both compare by value.
type ID struct {
	value string
}

// NewID builds an ID from its canonical string form.
func NewID(v string) ID { return ID{value: v} }

func (id ID) String() string { return id.value }
func (id ID) IsZero() bool   { return id.value == "" }

func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		id.value = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		id.value = n.String()
		return nil
	}
	return fmt.Errorf("id must be a number or string, got %s", string(data))
}

func (id ID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(id.value, 10, 64); err == nil {
		return json.Marshal(n)
	}
	return json.Marshal(id.value)
}

// ExecutionStatus values reported for job executions.
const (
	StatusReceived = "RECEIVED"
	StatusReady    = "READY"
	StatusQueued   = "QUEUED"
	StatusActive   = "ACTIVE"
	StatusSuccess  = "SUCCESS"
	StatusFailure  = "FAILURE"
)

type UserDetails struct {
	ID         ID     `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"department,omitempty"`
}

type User struct {
	ID         ID              `json:"id"`
	UserName   string          `json:"userName"`
	Details    *UserDetails    `json:"details,omitempty"`
	Groups     []Group         `json:"groups,omitempty"`
	Executions []*JobExecution `json:"executions,omitempty"`
}

type Group struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

type Application struct {
	ID           ID                      `json:"id"`
	Name         string                  `json:"name"`
	InternalName string                  `json:"internalName"`
	Type         string                  `json:"type,omitempty"`
	Description  string                  `json:"description,omitempty"`
	Interfaces   []*ApplicationInterface `json:"interfaces,omitempty"`
}

type ApplicationInterface struct {
	ID           ID                     `json:"id"`
	Name         string                 `json:"name"`
	InternalName string                 `json:"internalName"`
	Version      int                    `json:"version"`
	Description  string                 `json:"description,omitempty"`
	Document     string                 `json:"document,omitempty"`
	InputFiles   []InputFileDefinition  `json:"inputFiles,omitempty"`
	InputValues  []InputValueDefinition `json:"inputValues,omitempty"`
}

type InputFileDefinition struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	InternalName string `json:"internalName"`
	Description  string `json:"description,omitempty"`
	Required     bool   `json:"required"`
}

type InputValueDefinition struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	InternalName string `json:"internalName"`
	Description  string `json:"description,omitempty"`
	Required     bool   `json:"required"`
	Default      any    `json:"default"`
	Enumerations []any  `json:"enumerations,omitempty"`
}

type Heartbeat struct {
	Created string `json:"created"`
	Updated string `json:"updated"`
}

// ApplicationInstance is one deployment of an application. The backend
// reports the instance's interfaces relation as further instance records,
// one per interface it serves.
type ApplicationInstance struct {
	ID           ID                     `json:"id"`
	Name         string                 `json:"name"`
	InternalName string                 `json:"internalName"`
	Heartbeat    *Heartbeat             `json:"heartbeat,omitempty"`
	Interfaces   []*ApplicationInstance `json:"interfaces,omitempty"`
	Application  *Application           `json:"application,omitempty"`
}

type Form struct {
	ID        ID                    `json:"id"`
	Instance  *ApplicationInstance  `json:"instance,omitempty"`
	Interface *ApplicationInterface `json:"interface"`
	Jobs      []*Job                `json:"jobs,omitempty"`
}

type Job struct {
	ID         ID                    `json:"id"`
	Name       string                `json:"name"`
	Created    string                `json:"created"`
	Creator    *User                 `json:"creator,omitempty"`
	Instance   *ApplicationInstance  `json:"instance,omitempty"`
	Interface  *ApplicationInterface `json:"interface,omitempty"`
	Executions []*JobExecution       `json:"executions,omitempty"`
}

type JobExecution struct {
	ID     ID     `json:"id"`
	Status string `json:"status"`
	Job    *Job   `json:"job,omitempty"`
}

// JobSummary carries execution counters per status; absent statuses stay
// at zero.
type JobSummary struct {
	Received int `json:"RECEIVED"`
	Ready    int `json:"READY"`
	Queued   int `json:"QUEUED"`
	Active   int `json:"ACTIVE"`
	Success  int `json:"SUCCESS"`
	Failure  int `json:"FAILURE"`
}
