package health

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
)

// execCommandContext is a variable to allow mocking in tests
var execCommandContext = exec.CommandContext

// DpkgAuditor reports dpkg as broken when an interrupted run left updates
// pending or `dpkg --audit` finds problems.
type DpkgAuditor struct {
	// UpdatesDir defaults to /var/lib/dpkg/updates.
	UpdatesDir string
}

var _ PackageAuditor = (*DpkgAuditor)(nil)

func (d *DpkgAuditor) Broken(ctx context.Context) (bool, error) {
	dir := d.UpdatesDir
	if dir == "" {
		dir = "/var/lib/dpkg/updates"
	}
	entries, err := os.ReadDir(dir)
	if err == nil {
		for _, e := range entries {
			if isDigits(e.Name()) {
				return true, nil
			}
		}
	}

	if _, err := exec.LookPath("dpkg"); err != nil {
		return false, nil
	}
	out, err := execCommandContext(ctx, "dpkg", "--audit").Output()
	if err != nil {
		return false, err
	}
	return len(bytes.TrimSpace(out)) > 0, nil
}

func isDigits(s string) bool {
	if s == "" || s != filepath.Base(s) {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
