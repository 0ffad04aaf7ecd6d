package model

import "time"

type PhaseStatus string

const (
	PhaseStatusPending   PhaseStatus = "pending"
	PhaseStatusRunning   PhaseStatus = "running"
	PhaseStatusCompleted PhaseStatus = "completed"
	PhaseStatusFailed    PhaseStatus = "failed"
)

type PhaseResult struct {
	Name     string      `json:"name" yaml:"name"`
	Status   PhaseStatus `json:"status" yaml:"status"`
	Duration string      `json:"duration,omitempty" yaml:"duration,omitempty"`
	Message  string      `json:"message,omitempty" yaml:"message,omitempty"`
}

type InstallResult struct {
	Status      string        `json:"status" yaml:"status"`
	StartedAt   time.Time     `json:"started_at" yaml:"started_at"`
	EndedAt     time.Time     `json:"ended_at" yaml:"ended_at"`
	TargetDrive string        `json:"target_drive" yaml:"target_drive"`
	Hostname    string        `json:"hostname" yaml:"hostname"`
	DryRun      bool          `json:"dry_run" yaml:"dry_run"`
	Phases      []PhaseResult `json:"phases" yaml:"phases"`
	FailedPhase int           `json:"failed_phase,omitempty" yaml:"failed_phase,omitempty"`
	Error       string        `json:"error,omitempty" yaml:"error,omitempty"`
}
