package cli

import (
	"fmt"

	"github.com/daydemir/vhostdoctor/internal/display"
	"github.com/daydemir/vhostdoctor/internal/executor"
	"github.com/daydemir/vhostdoctor/internal/orchestrator"
)

// displayObserver prints pipeline progress as it happens
type displayObserver struct {
	d *display.Display
}

var phaseTitles = map[orchestrator.State]string{
	orchestrator.StateConnecting:         "Connecting",
	orchestrator.StateAnalyzing:          "Analyzing",
	orchestrator.StateFixingHosts:        "Fixing hosts file",
	orchestrator.StateFixingVhosts:       "Fixing nginx vhosts",
	orchestrator.StateVerifyingSSL:       "Verifying SSL",
	orchestrator.StateRestartingServices: "Restarting services",
}

func (o displayObserver) PhaseStarted(s orchestrator.State, key string) {
	title, ok := phaseTitles[s]
	if !ok {
		title = string(s)
	}
	o.d.Phase(title, key)
}

func (o displayObserver) PhaseFinished(p orchestrator.PhaseResult) {
	o.d.PhaseResult(p.Key, p.Status, p.Message, p.Error)
}

func (o displayObserver) Analyzed(a *orchestrator.Analysis) {
	if a.NginxTestPassed {
		o.d.Success("nginx -t passed")
	} else {
		o.d.Error("nginx -t failed")
		o.d.Detail(a.NginxTestOutput)
	}
	if a.Inventory != nil {
		o.d.Info("Vhosts", fmt.Sprintf("%d active, %d disabled, %d catch-all",
			len(a.Inventory.Active), len(a.Inventory.Disabled), len(a.Inventory.CatchAll)))
	}
	o.d.Findings(a.Findings)
	o.d.Plan(a.Plan)
}

func (o displayObserver) StepFinished(out executor.Outcome) {
	o.d.Step(out)
}
