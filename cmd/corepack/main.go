// Package main is the entry point for the corepack shim and resolver.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/corepack-go/corepack/cmd/corepack/app"
	"github.com/corepack-go/corepack/pkg/engine"
	"github.com/corepack-go/corepack/pkg/env"
	"github.com/corepack-go/corepack/pkg/logger"
	"github.com/corepack-go/corepack/pkg/resolver"
	"github.com/corepack-go/corepack/pkg/toolspec"
)

// managementBinaryName is the basename under which the cobra management
// surface (install/use/pack/enable/disable) is exposed; every other
// basename is treated as a package-manager shim invocation.
const managementBinaryName = "corepack"

func main() {
	logger.Initialize(false)
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	name, oneShotSpec, args, shim := classifyInvocation(os.Args)
	if !shim {
		if err := app.NewRootCmd().ExecuteContext(ctx); err != nil {
			os.Exit(1)
		}
		return
	}

	os.Exit(runShim(ctx, name, oneShotSpec, args))
}

// classifyInvocation decides whether this process run is a package-manager
// shim dispatch or the corepack management CLI, per §4.11: the basename
// is a known tool name, or matches name@spec as the first argument, or (for
// the management binary itself) the first argument is a bare tool name or
// inline spec rather than a management subcommand.
func classifyInvocation(argv []string) (name toolspec.Name, oneShotSpec string, rest []string, shim bool) {
	base := filepath.Base(argv[0])

	if base != managementBinaryName {
		if n, spec, ok := splitNameAtSpec(base); ok {
			return n, spec, argv[1:], true
		}
		if n, ok := toolspec.NameForCommand(base); ok {
			return n, "", argv[1:], true
		}
		return toolspec.Name(base), "", argv[1:], true
	}

	if len(argv) < 2 {
		return "", "", nil, false
	}
	first := argv[1]
	if n, spec, ok := splitNameAtSpec(first); ok {
		return n, spec, argv[2:], true
	}
	if n, ok := toolspec.NameForCommand(first); ok {
		return n, "", argv[2:], true
	}
	return "", "", nil, false
}

func splitNameAtSpec(s string) (toolspec.Name, string, bool) {
	at := strings.LastIndex(s, "@")
	if at <= 0 {
		return "", "", false
	}
	return toolspec.Name(s[:at]), s[at+1:], true
}

func runShim(ctx context.Context, name toolspec.Name, oneShotSpec string, args []string) int {
	e := env.Load(".")

	eng, err := engine.New(e)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	res, err := resolver.Resolve(e, eng.Cache, name, oneShotSpec, cwd, args)
	if warn, ok := engine.IsWarnMismatch(err); ok {
		fmt.Fprintln(os.Stderr, "! "+warn.Error())
	} else if err != nil {
		return reportError(err)
	}

	// The dispatcher picks the script by the command actually invoked
	// (e.g. "npx", "yarnpkg"), not by the tool name it maps to.
	commandName := filepath.Base(os.Args[0])
	if commandName == managementBinaryName && len(os.Args) > 1 {
		commandName = os.Args[1]
	}
	if n, _, ok := splitNameAtSpec(commandName); ok {
		commandName = string(n)
	}
	code, err := engine.RunShim(ctx, eng, res, commandName, args)
	if err != nil {
		return reportError(err)
	}
	return code
}

func reportError(err error) int {
	fmt.Fprintln(os.Stderr, err)
	return 1
}
