package types

// FindingKind identifies what kind of conflict or defect a finding describes
type FindingKind string

const (
	// FindingCatchAllPriority is a fragment that answers for any hostname ahead of the target
	FindingCatchAllPriority FindingKind = "catch_all_priority"
	// FindingPortConflict is an earlier fragment acting as the default server on a target port
	FindingPortConflict FindingKind = "port_conflict"
	// FindingDirectNameConflict is another fragment claiming the target hostname verbatim
	FindingDirectNameConflict FindingKind = "direct_name_conflict"
	// FindingSyntaxError is a failed nginx configuration test
	FindingSyntaxError FindingKind = "syntax_error"
	// FindingMalformedHostsLine is a hosts line with concatenated entries or too few tokens
	FindingMalformedHostsLine FindingKind = "malformed_hosts_line"
	// FindingDuplicateHostsEntry is a hostname mapped to loopback on several lines of one address family
	FindingDuplicateHostsEntry FindingKind = "duplicate_hosts_entry"
	// FindingRiskyHostsDomain is a loopback mapping that shadows a real domain
	FindingRiskyHostsDomain FindingKind = "risky_hosts_domain"
)

// IsValid checks if a finding kind is valid
func (k FindingKind) IsValid() bool {
	for _, valid := range AllFindingKinds() {
		if k == valid {
			return true
		}
	}
	return false
}

// AllFindingKinds returns all valid finding kinds
func AllFindingKinds() []FindingKind {
	return []FindingKind{
		FindingCatchAllPriority, FindingPortConflict, FindingDirectNameConflict,
		FindingSyntaxError, FindingMalformedHostsLine, FindingDuplicateHostsEntry,
		FindingRiskyHostsDomain,
	}
}

// IsHosts reports whether the finding concerns the hosts file rather than nginx
func (k FindingKind) IsHosts() bool {
	switch k {
	case FindingMalformedHostsLine, FindingDuplicateHostsEntry, FindingRiskyHostsDomain:
		return true
	}
	return false
}

// String returns the string representation of the finding kind
func (k FindingKind) String() string {
	return string(k)
}

// RiskLevel is the blast radius of a remediation step
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// IsValid checks if a risk level is valid
func (r RiskLevel) IsValid() bool {
	for _, valid := range AllRiskLevels() {
		if r == valid {
			return true
		}
	}
	return false
}

// AllRiskLevels returns all valid risk levels, highest first
func AllRiskLevels() []RiskLevel {
	return []RiskLevel{RiskHigh, RiskMedium, RiskLow}
}

// String returns the string representation of the risk level
func (r RiskLevel) String() string {
	return string(r)
}

// ActionKind selects the mutation a remediation step performs
type ActionKind string

const (
	// ActionDisableFragment renames an enabled fragment to its .disabled form
	ActionDisableFragment ActionKind = "disable_fragment"
	// ActionCreateFragment writes a new fragment for the target domain
	ActionCreateFragment ActionKind = "create_fragment"
	// ActionCommentHostsLine comments out one or more hosts lines
	ActionCommentHostsLine ActionKind = "comment_hosts_line"
	// ActionRewriteHostsFile replaces a malformed hosts line with its repaired form
	ActionRewriteHostsFile ActionKind = "rewrite_hosts_file"
	// ActionManualIntervention cannot be automated; it only re-checks the condition
	ActionManualIntervention ActionKind = "manual_intervention"
)

// IsValid checks if an action kind is valid
func (a ActionKind) IsValid() bool {
	for _, valid := range AllActionKinds() {
		if a == valid {
			return true
		}
	}
	return false
}

// AllActionKinds returns all valid action kinds
func AllActionKinds() []ActionKind {
	return []ActionKind{
		ActionDisableFragment, ActionCreateFragment, ActionCommentHostsLine,
		ActionRewriteHostsFile, ActionManualIntervention,
	}
}

// TouchesHosts reports whether the action mutates the hosts file
func (a ActionKind) TouchesHosts() bool {
	return a == ActionCommentHostsLine || a == ActionRewriteHostsFile
}

// String returns the string representation of the action kind
func (a ActionKind) String() string {
	return string(a)
}

// HostsEntryKind classifies a line of the hosts file
type HostsEntryKind string

const (
	HostsLoopback  HostsEntryKind = "loopback"
	HostsDomain    HostsEntryKind = "domain"
	HostsExternal  HostsEntryKind = "external"
	HostsMalformed HostsEntryKind = "malformed"
)

// IsValid checks if a hosts entry kind is valid
func (k HostsEntryKind) IsValid() bool {
	for _, valid := range AllHostsEntryKinds() {
		if k == valid {
			return true
		}
	}
	return false
}

// AllHostsEntryKinds returns all valid hosts entry kinds
func AllHostsEntryKinds() []HostsEntryKind {
	return []HostsEntryKind{HostsLoopback, HostsDomain, HostsExternal, HostsMalformed}
}

// String returns the string representation of the hosts entry kind
func (k HostsEntryKind) String() string {
	return string(k)
}

// Status is the outcome of a step or phase
// Shared by the executor and orchestrator so reports read the same everywhere
type Status string

const (
	// StatusCompleted indicates the work ran and was verified
	StatusCompleted Status = "completed"
	// StatusSkipped indicates the work was already recorded, declined, or not needed
	StatusSkipped Status = "skipped"
	// StatusFailed indicates the work ran and did not verify
	StatusFailed Status = "failed"
)

// IsValid checks if a status value is valid
func (s Status) IsValid() bool {
	for _, valid := range AllStatuses() {
		if s == valid {
			return true
		}
	}
	return false
}

// AllStatuses returns all valid status values
func AllStatuses() []Status {
	return []Status{StatusCompleted, StatusSkipped, StatusFailed}
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}
