// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-trustanchor.
//
// go-trustanchor is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package regtest runs the trust anchor regression suite against a
// configured backend.
//
// The suite exercises the full contract in three passes: every case once
// with its own context, four workers hammering one shared context, and,
// when the multi-process pass is enabled, four workers opening their own
// contexts while the whole suite additionally runs in a re-executed child
// process. Reference key files turn the derivation cases from
// return-code checks into software HMAC comparisons.
package regtest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-trustanchor/pkg/trustanchor"
	"github.com/jeremyhahn/go-trustanchor/pkg/types"
	"github.com/spf13/afero"
)

// workerCount is the number of concurrent workers in the stress passes.
const workerCount = 4

// childEnv marks a child invocation of the suite so it does not spawn
// another one.
const childEnv = "TRUSTANCHOR_REGTEST_CHILD"

// ErrTestsFailed is returned by Run when at least one case failed.
var ErrTestsFailed = errors.New("regtest: regression tests failed")

// Config holds the regression suite configuration.
type Config struct {
	// Anchor is the backend configuration every context in the suite is
	// built from.
	Anchor *trustanchor.Config

	// KeyFiles holds up to two paths to 32-byte raw reference key files,
	// key slot 0 first. Slots without a file are verified by return code
	// only.
	KeyFiles []string

	// Multiprocess enables the own-context worker pass and the child
	// process re-execution. Hardware backends need the kernel resource
	// manager for this.
	Multiprocess bool

	// Fs is the filesystem the key files are read from. Tests inject a
	// memory filesystem.
	Fs afero.Fs

	// Out receives the suite progress output.
	Out io.Writer
}

// Runner executes the regression suite.
type Runner struct {
	cfg     *Config
	refKeys [types.KeySlotCount][]byte

	// Reference state shared by every pass: the first UUID read becomes
	// the reference all later reads must match, and the version banner
	// is printed only once.
	mu             sync.Mutex
	refUUID        uuid.UUID
	refUUIDSet     bool
	versionPrinted bool

	outMu sync.Mutex
	out   io.Writer
}

// New creates a Runner, loading the reference key files up front.
func New(cfg *Config) (*Runner, error) {
	if cfg == nil || cfg.Anchor == nil {
		return nil, errors.New("regtest: configuration is nil")
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if err := cfg.Anchor.Validate(); err != nil {
		return nil, fmt.Errorf("regtest: invalid backend config: %w", err)
	}

	keys, err := loadReferenceKeys(cfg.Fs, cfg.KeyFiles)
	if err != nil {
		return nil, err
	}
	return &Runner{
		cfg:     cfg,
		refKeys: keys,
		out:     cfg.Out,
	}, nil
}

// Run executes the suite and reports PASS or FAIL. Case failures are
// collected across all passes; infrastructure failures (a context that
// cannot be built, opened or closed) abort immediately.
func (r *Runner) Run() error {
	r.banner()

	pass := true
	var hardErr error

	r.printf("\nRun all the cases once, each under its own open and close\n")
	ok, err := r.sequentialPass()
	pass = pass && ok
	hardErr = err

	// The child is started before the concurrent passes so parent and
	// child stress the module at the same time, as the original
	// fork-based harness did.
	var child *exec.Cmd
	if hardErr == nil && r.cfg.Multiprocess && !isChild() {
		r.printf("\nRe-executing the suite as a child process\n")
		child, hardErr = r.startChild()
	}

	if hardErr == nil {
		r.printf("\nStart %d workers sharing one open context\n", workerCount)
		ok, err = r.sharedContextPass()
		pass = pass && ok
		hardErr = err
	}

	if hardErr == nil && r.cfg.Multiprocess {
		r.printf("\nStart %d workers opening their own contexts\n", workerCount)
		ok = r.runWorkers(r.runCasesOwnContext)
		pass = pass && ok
	}

	if child != nil {
		if err := child.Wait(); err != nil {
			r.printf("child process: %v\n", err)
			pass = false
		}
	}

	if hardErr != nil {
		return hardErr
	}
	if !pass {
		r.printf("\nFAIL\n")
		return ErrTestsFailed
	}
	r.printf("\nPASS\n")
	return nil
}

// banner reports the verification level and pass configuration.
func (r *Runner) banner() {
	switch {
	case r.refKeys[0] == nil:
		r.printf("Running regression tests without reference keys. Only the return codes are verified.\n")
	case r.refKeys[1] == nil:
		r.printf("Running regression tests with the reference key of key slot 0. For key slot 1 only the return codes are verified.\n")
	default:
		r.printf("Running regression tests with reference keys.\n")
	}
	if !r.cfg.Multiprocess {
		r.printf("NOTE: the multi-process pass is disabled. Concurrency is tested with goroutines on a single open context only.\n")
	}
}

// sequentialPass runs every case once, each under a fresh context. A
// failing case does not stop the pass.
func (r *Runner) sequentialPass() (bool, error) {
	ok := true
	for _, tc := range r.cases() {
		ta, err := trustanchor.New(r.cfg.Anchor)
		if err != nil {
			return false, fmt.Errorf("regtest: building context: %w", err)
		}
		if err := ta.Open(); err != nil {
			return false, fmt.Errorf("regtest: opening context: %w", err)
		}

		r.printf("Executing %s\n", tc.name)
		if err := tc.run(ta); err != nil {
			r.printf("%s: %v\n", tc.name, err)
			ok = false
		}

		if err := ta.Close(); err != nil {
			return false, fmt.Errorf("regtest: closing context: %w", err)
		}
	}
	return ok, nil
}

// sharedContextPass opens one context and runs the full case list in
// workerCount goroutines concurrently, validating that the per-context
// lock serializes mixed operations.
func (r *Runner) sharedContextPass() (bool, error) {
	ta, err := trustanchor.New(r.cfg.Anchor)
	if err != nil {
		return false, fmt.Errorf("regtest: building context: %w", err)
	}
	if err := ta.Open(); err != nil {
		return false, fmt.Errorf("regtest: opening context: %w", err)
	}

	ok := r.runWorkers(func() error {
		return r.runCases(ta)
	})

	if err := ta.Close(); err != nil {
		return false, fmt.Errorf("regtest: closing context: %w", err)
	}
	return ok, nil
}

// runWorkers executes worker in workerCount goroutines and reports
// whether all of them succeeded.
func (r *Runner) runWorkers(worker func() error) bool {
	var wg sync.WaitGroup
	results := make([]error, workerCount)
	for w := 0; w < workerCount; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			results[w] = worker()
		}(w)
	}
	wg.Wait()

	ok := true
	for w, err := range results {
		if err != nil {
			r.printf("worker %d: %v\n", w+1, err)
			ok = false
		}
	}
	return ok
}

// runCases runs the full case list on an already open context, stopping
// at the first failure.
func (r *Runner) runCases(ta types.TrustAnchor) error {
	for _, tc := range r.cases() {
		r.printf("Executing %s\n", tc.name)
		if err := tc.run(ta); err != nil {
			return fmt.Errorf("%s: %w", tc.name, err)
		}
	}
	return nil
}

// runCasesOwnContext runs the full case list, building, opening and
// closing a private context around every case.
func (r *Runner) runCasesOwnContext() error {
	for _, tc := range r.cases() {
		ta, err := trustanchor.New(r.cfg.Anchor)
		if err != nil {
			return fmt.Errorf("building context: %w", err)
		}
		if err := ta.Open(); err != nil {
			return fmt.Errorf("opening context: %w", err)
		}

		r.printf("Executing %s\n", tc.name)
		caseErr := tc.run(ta)
		closeErr := ta.Close()

		if caseErr != nil {
			return fmt.Errorf("%s: %w", tc.name, caseErr)
		}
		if closeErr != nil {
			return fmt.Errorf("closing context: %w", closeErr)
		}
	}
	return nil
}

// startChild re-executes the current binary with the same arguments and
// the child marker set.
func (r *Runner) startChild() (*exec.Cmd, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("regtest: locating executable: %w", err)
	}
	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Stdout = r.out
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), childEnv+"=1")
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("regtest: starting child process: %w", err)
	}
	return cmd, nil
}

// isChild reports whether this invocation is the re-executed child.
func isChild() bool {
	return os.Getenv(childEnv) != ""
}

// loadReferenceKeys reads up to two 32-byte raw key files.
func loadReferenceKeys(fs afero.Fs, paths []string) ([types.KeySlotCount][]byte, error) {
	var keys [types.KeySlotCount][]byte
	if len(paths) > types.KeySlotCount {
		return keys, fmt.Errorf("regtest: at most %d reference key files, got %d",
			types.KeySlotCount, len(paths))
	}
	for i, path := range paths {
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return keys, fmt.Errorf("regtest: reading key file %s: %w", path, err)
		}
		if len(data) != types.LenKeyMax {
			return keys, fmt.Errorf("regtest: key file %s holds %d bytes, expected %d raw key bytes",
				path, len(data), types.LenKeyMax)
		}
		keys[i] = data
	}
	return keys, nil
}

// printf writes progress output; safe for concurrent workers.
func (r *Runner) printf(format string, args ...any) {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}
