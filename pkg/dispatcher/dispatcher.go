// Package dispatcher implements C10: locating the correct entrypoint
// script inside an installed tool and transferring execution to it,
// preserving exit status and standard streams exactly.
package dispatcher

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/corepack-go/corepack/pkg/logger"
	"github.com/corepack-go/corepack/pkg/toolspec"
)

// Run locates the script for commandName inside installRoot (the cache
// entry directory for the resolved tool+version) and executes it with
// args, inheriting stdio. It blocks until the child exits and returns its
// exit code, never overwriting a non-zero exit code after a successful
// launch per §4.10's rule 5.
func Run(toolEntry toolspec.Entry, installRoot, commandName string, args []string) (int, error) {
	scriptPath, err := ScriptFor(toolEntry, installRoot, commandName)
	if err != nil {
		return 1, err
	}

	argv, err := nativeInvocation(scriptPath, args)
	if err != nil {
		return 1, err
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), "COREPACK_ROOT="+installRoot)

	// The child is exempt from this process's own cancellation once
	// started: a shim must faithfully mirror the child's exit behavior,
	// including a child that chooses to ignore an inherited signal. So
	// signals received here are forwarded to the child rather than used
	// to cancel a context the child itself was started under.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if err := cmd.Start(); err != nil {
		return 1, fmt.Errorf("failed to launch %s: %w", scriptPath, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	for {
		select {
		case sig := <-sigCh:
			forwardSignal(cmd.Process, sig)
		case waitErr := <-done:
			return exitCodeFor(waitErr)
		}
	}
}

func forwardSignal(proc *os.Process, sig os.Signal) {
	if proc == nil {
		return
	}
	if err := proc.Signal(sig); err != nil {
		logger.Debugw("failed to forward signal to child", "signal", sig, "error", err)
	}
}

// exitCodeFor extracts the child's exit status. A child killed by signal
// reports ExitCode() == -1; that maps to exit code 1 plus a logged
// warning, since there's no richer signal-passthrough channel available
// once the child has already exited.
func exitCodeFor(waitErr error) (int, error) {
	if waitErr == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		code := exitErr.ExitCode()
		if code == -1 {
			logger.Warnw("child process terminated by signal", "error", waitErr)
			return 1, nil
		}
		return code, nil
	}
	return 1, fmt.Errorf("failed waiting for child process: %w", waitErr)
}

// ScriptFor resolves the on-disk script path for commandName using the
// tool's bin entries, honoring aliases (e.g. "yarn" and "yarnpkg" both
// resolving to the same script).
func ScriptFor(toolEntry toolspec.Entry, installRoot, commandName string) (string, error) {
	for _, bin := range toolEntry.BinEntries {
		if bin.Command == commandName {
			return filepath.Join(installRoot, filepath.FromSlash(bin.RelativePath)), nil
		}
	}
	if len(toolEntry.BinEntries) == 0 {
		return "", fmt.Errorf("tool %s defines no entrypoints", toolEntry.Name)
	}
	// commandName didn't match any alias (e.g. a transparent command
	// invoked under the tool's canonical name); fall back to the
	// canonical (index 0) entry per §4.1.
	return filepath.Join(installRoot, filepath.FromSlash(toolEntry.BinEntries[0].RelativePath)), nil
}

// nativeInvocation decides how to execute scriptPath: via the Node
// runtime for a .js/.cjs/.mjs entrypoint, or (for a non-JS entrypoint such
// as a packed custom archive) directly as an executable. Node itself
// resolves ES-module-vs-CommonJS semantics from the file extension and the
// nearest package.json "type" field once invoked; this layer only has to
// decide whether to hand the script to node in the first place.
func nativeInvocation(scriptPath string, args []string) ([]string, error) {
	if filepath.Ext(scriptPath) != ".js" && filepath.Ext(scriptPath) != ".cjs" && filepath.Ext(scriptPath) != ".mjs" {
		return append([]string{scriptPath}, args...), nil
	}

	node, err := exec.LookPath("node")
	if err != nil {
		return nil, fmt.Errorf("node runtime not found on PATH: %w", err)
	}
	return append([]string{node, scriptPath}, args...), nil
}
