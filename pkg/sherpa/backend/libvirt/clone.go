package libvirt

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/sherpa-labs/sherpa/pkg/sherpa/errs"
)

// cloneQcow2 creates destPath as a copy-on-write overlay backed by
// srcPath, shelling out to qemu-img via exec.CommandContext.
func cloneQcow2(ctx context.Context, srcPath, destPath string) error {
	cmd := exec.CommandContext(ctx, "qemu-img", "create", "-f", "qcow2", "-F", "qcow2", "-b", srcPath, destPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return errs.NewBackendError("libvirt", destPath, fmt.Errorf("qemu-img clone %s -> %s: %w: %s", srcPath, destPath, err, out))
	}
	return nil
}
