package votingsettings

import (
	"fmt"

	"github.com/angelmondragon/poolfund-backend/pkg/enums"
)

const (
	DefaultThresholdPct  = 51
	DefaultDurationHours = 72
	DefaultMinVoters     = 1
	DefaultQuorumPct     = 50

	MinPct           = 1
	MaxPct           = 100
	MinDurationHours = 1
	MaxDurationHours = 720
)

// FieldError describes one invalid settings field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// UpdateInput is a partial settings update; nil fields are left unchanged.
type UpdateInput struct {
	VotingEnabled       *bool             `json:"votingEnabled,omitempty"`
	VotingThresholdPct  *int              `json:"votingThresholdPct,omitempty"`
	VotingDurationHours *int              `json:"votingDurationHours,omitempty"`
	MinVoters           *int              `json:"minVoters,omitempty"`
	VotingType          *enums.VotingType `json:"votingType,omitempty"`
	AutoApprove         *bool             `json:"autoApprove,omitempty"`
	AllowAbstain        *bool             `json:"allowAbstain,omitempty"`
	RequireQuorum       *bool             `json:"requireQuorum,omitempty"`
	QuorumPct           *int              `json:"quorumPct,omitempty"`
}

// Validate checks the ranges of every provided field and returns all
// violations at once. An empty result means the input is acceptable.
func Validate(input UpdateInput) []FieldError {
	var errs []FieldError
	if v := input.VotingThresholdPct; v != nil && (*v < MinPct || *v > MaxPct) {
		errs = append(errs, FieldError{Field: "votingThresholdPct", Message: fmt.Sprintf("must be between %d and %d", MinPct, MaxPct)})
	}
	if v := input.VotingDurationHours; v != nil && (*v < MinDurationHours || *v > MaxDurationHours) {
		errs = append(errs, FieldError{Field: "votingDurationHours", Message: fmt.Sprintf("must be between %d and %d", MinDurationHours, MaxDurationHours)})
	}
	if v := input.MinVoters; v != nil && *v < 1 {
		errs = append(errs, FieldError{Field: "minVoters", Message: "must be at least 1"})
	}
	if v := input.QuorumPct; v != nil && (*v < MinPct || *v > MaxPct) {
		errs = append(errs, FieldError{Field: "quorumPct", Message: fmt.Sprintf("must be between %d and %d", MinPct, MaxPct)})
	}
	if v := input.VotingType; v != nil && !v.IsValid() {
		errs = append(errs, FieldError{Field: "votingType", Message: fmt.Sprintf("unsupported voting type %q", *v)})
	}
	return errs
}

// Defaults returns the settings an unconfigured pool behaves with.
func Defaults() UpdateInput {
	enabled := false
	threshold := DefaultThresholdPct
	duration := DefaultDurationHours
	minVoters := DefaultMinVoters
	votingType := enums.VotingTypeOneMemberOneVote
	autoApprove := false
	allowAbstain := true
	requireQuorum := false
	quorum := DefaultQuorumPct
	return UpdateInput{
		VotingEnabled:       &enabled,
		VotingThresholdPct:  &threshold,
		VotingDurationHours: &duration,
		MinVoters:           &minVoters,
		VotingType:          &votingType,
		AutoApprove:         &autoApprove,
		AllowAbstain:        &allowAbstain,
		RequireQuorum:       &requireQuorum,
		QuorumPct:           &quorum,
	}
}
