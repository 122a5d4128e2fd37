package models

import "time"

type ScriptStatus string

const (
	ScriptSuccess ScriptStatus = "success"
	ScriptFailed  ScriptStatus = "failed"
)

// ScriptCheck is a functional probe: one request against a service plus expectations on the answer.
type ScriptCheck struct {
	Name           string
	BaseURL        string
	Method         string
	Path           string
	Body           map[string]interface{}
	RequiredFields []string
	AnyOfFields    []string
	ArrayField     string
	// IDField names the response field substituted for {id} in FollowUpPath.
	IDField      string
	FollowUpPath string
}

type ScriptDetails struct {
	FunctionalityWorking bool      `json:"functionalityWorking"`
	LastRunTime          time.Time `json:"lastRunTime"`
	Errors               []string  `json:"errors"`
}

type ScriptResult struct {
	ScriptName string        `json:"scriptName"`
	Status     ScriptStatus  `json:"status"`
	Details    ScriptDetails `json:"details"`
}

type ScriptReport struct {
	OverallStatus ScriptStatus   `json:"overallStatus"`
	Results       []ScriptResult `json:"results"`
}
