package orchestrator

import (
	"time"

	"github.com/daydemir/vhostdoctor/internal/certs"
	"github.com/daydemir/vhostdoctor/internal/conflict"
	"github.com/daydemir/vhostdoctor/internal/executor"
	"github.com/daydemir/vhostdoctor/internal/hosts"
	"github.com/daydemir/vhostdoctor/internal/nginx"
	"github.com/daydemir/vhostdoctor/internal/types"
)

// State is a position in the diagnosis pipeline
type State string

const (
	StateConnecting         State = "connecting"
	StateAnalyzing          State = "analyzing"
	StateFixingHosts        State = "fixing_hosts"
	StateFixingVhosts       State = "fixing_vhosts"
	StateVerifyingSSL       State = "verifying_ssl"
	StateRestartingServices State = "restarting_services"
	StateDone               State = "done"
	StateAborted            State = "aborted"
)

// Phase idempotency keys
const (
	KeyConnection     = "ssh_connection"
	KeyAnalysis       = "initial_analysis"
	KeyFixHosts       = "fix_hosts_file_issues"
	KeyFixVhostPrefix = "fix_nginx_domain_"
	KeySSLVerify      = "ssl_final_verification"
	KeyRestart        = "restart_services"
)

// Analysis result kinds saved in the state file
const (
	ResultInventory    = "nginx_inventory"
	ResultHosts        = "hosts_analysis"
	ResultConflicts    = "conflicts"
	ResultPlan         = "remediation_plan"
	ResultCertificates = "ssl_verification"
)

// PhaseResult is the outcome of one pipeline phase
type PhaseResult struct {
	State    State         `json:"state" yaml:"state"`
	Key      string        `json:"key" yaml:"key"`
	Status   types.Status  `json:"status" yaml:"status"`
	Message  string        `json:"message,omitempty" yaml:"message,omitempty"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Analysis is one fresh read of the remote configuration
type Analysis struct {
	NginxTestPassed bool                    `json:"nginx_test_passed" yaml:"nginx_test_passed"`
	NginxTestOutput string                  `json:"nginx_test_output,omitempty" yaml:"nginx_test_output,omitempty"`
	Inventory       *nginx.Inventory        `json:"inventory" yaml:"inventory"`
	Hosts           *hosts.Analysis         `json:"hosts" yaml:"hosts"`
	Conflicts       conflict.Result         `json:"conflicts" yaml:"conflicts"`
	Findings        []types.ConflictFinding `json:"findings" yaml:"findings"`
	Plan            []types.RemediationStep `json:"plan" yaml:"plan"`
}

// Report is everything a run did, including partial results of an aborted run
type Report struct {
	SessionID   string             `json:"session_id" yaml:"session_id"`
	Domain      string             `json:"domain" yaml:"domain"`
	DryRun      bool               `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
	StartedAt   time.Time          `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time          `json:"finished_at" yaml:"finished_at"`
	Final       State              `json:"final_state" yaml:"final_state"`
	AbortedIn   State              `json:"aborted_in,omitempty" yaml:"aborted_in,omitempty"`
	Interrupted bool               `json:"interrupted,omitempty" yaml:"interrupted,omitempty"`
	Declined    []string           `json:"declined,omitempty" yaml:"declined,omitempty"`
	Phases      []PhaseResult      `json:"phases" yaml:"phases"`
	Steps       []executor.Outcome `json:"steps" yaml:"steps"`
	Analysis    *Analysis          `json:"analysis,omitempty" yaml:"analysis,omitempty"`
	Certificate *certs.Check       `json:"certificate,omitempty" yaml:"certificate,omitempty"`
	Errors      []string           `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// PhasesWith returns the keys of phases that ended with status
func (r *Report) PhasesWith(status types.Status) []string {
	keys := []string{}
	for _, p := range r.Phases {
		if p.Status == status {
			keys = append(keys, p.Key)
		}
	}
	return keys
}

// StepsWith returns the keys of steps that ended with status
func (r *Report) StepsWith(status types.Status) []string {
	keys := []string{}
	for _, s := range r.Steps {
		if s.Status == status {
			keys = append(keys, s.Key)
		}
	}
	return keys
}

// Resolved reports a run that reached Done with nothing failed or declined.
// A dry run is never resolved: it changed nothing.
func (r *Report) Resolved() bool {
	return r.Final == StateDone && !r.DryRun && len(r.Declined) == 0 &&
		len(r.PhasesWith(types.StatusFailed)) == 0 &&
		len(r.StepsWith(types.StatusFailed)) == 0
}
