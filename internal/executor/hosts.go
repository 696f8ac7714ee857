package executor

import (
	"bytes"
	"context"
	"fmt"

	"github.com/daydemir/vhostdoctor/internal/hosts"
	"github.com/daydemir/vhostdoctor/internal/types"
	"github.com/daydemir/vhostdoctor/internal/utils"
)

// editHosts computes the new hosts content from the current file, so a line
// that moved or was already fixed by an earlier step is handled correctly.
func (e *Executor) editHosts(ctx context.Context, step types.RemediationStep) (result, error) {
	p := e.config.HostsPath

	orig, err := e.remote.ReadFile(ctx, p)
	if err != nil {
		return result{}, e.remediation(step.Key, false, fmt.Errorf("read %s: %w", p, err))
	}

	updated, changed := rewriteHosts(string(orig), step.Action)
	if changed == 0 {
		return result{message: "hosts file already resolved", noop: true}, nil
	}

	backup := utils.BuildBackupPath(p, e.now())
	if err := e.remote.WriteFile(ctx, backup, orig); err != nil {
		return result{}, e.remediation(step.Key, false, fmt.Errorf("backup %s: %w", p, err))
	}

	if err := e.remote.WriteFile(ctx, p, []byte(updated)); err != nil {
		restored := e.restoreHosts(ctx, p, orig)
		return result{}, e.remediation(step.Key, restored, fmt.Errorf("write %s: %w", p, err))
	}

	got, err := e.remote.ReadFile(ctx, p)
	if err != nil || string(got) != updated {
		restored := e.restoreHosts(ctx, p, orig)
		if err == nil {
			err = fmt.Errorf("content differs after write")
		}
		return result{}, e.remediation(step.Key, restored, fmt.Errorf("verify %s: %w", p, err))
	}

	return result{
		message: fmt.Sprintf("%d hosts line(s) updated", changed),
		backup:  backup,
	}, nil
}

// rewriteHosts applies the action to content and reports how many lines changed
func rewriteHosts(content string, a types.Action) (string, int) {
	switch {
	case a.Kind == types.ActionRewriteHostsFile:
		changed := 0
		for _, line := range a.Lines {
			var ok bool
			content, ok = hosts.RepairMalformed(content, line)
			if ok {
				changed++
			}
		}
		return content, changed
	case a.KeepFirst:
		return hosts.Dedupe(content, a.Hostname)
	default:
		return hosts.CommentLines(content, a.Lines)
	}
}

// restoreHosts writes the original bytes back and confirms them.
// The backup file stays in place either way.
func (e *Executor) restoreHosts(ctx context.Context, p string, orig []byte) bool {
	if err := e.remote.WriteFile(ctx, p, orig); err != nil {
		e.logger.Error().Err(err).Str("path", p).Msg("cannot restore hosts file")
		return false
	}
	got, err := e.remote.ReadFile(ctx, p)
	if err != nil || !bytes.Equal(got, orig) {
		e.logger.Error().Err(err).Str("path", p).Msg("hosts file differs after restore")
		return false
	}
	return true
}
