// Package proc wraps spawned OS processes with captured output streams and
// scoped lifecycle management.
//
// Every launcher builds on this package so that no child process can outlive
// the scope that acquired it: Release always signals termination and then
// always blocks until the exit status has been consumed, on every code path.
package proc

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
)

// Process is a running child with captured stdout and stderr.
//
// The output pipes are created with os.Pipe and the parent's write ends are
// closed right after Start, so readers observe EOF as soon as the child
// exits. A background goroutine reaps the child; Exited and Wait observe it
// without racing the readers.
type Process struct {
	name   string
	cmd    *exec.Cmd
	stdout *os.File
	stderr *os.File
	logger *slog.Logger

	done    chan struct{}
	waitErr error

	releaseOnce sync.Once
}

// SpawnFunc starts a process. Launchers pass closures over their command
// configuration; With uses it for scoped acquisition.
type SpawnFunc func() (*Process, error)

// Spawn starts argv[0] with the given arguments and environment. A nil env
// inherits the parent's environment. The child is placed in its own process
// group so Release can take down anything it forks.
func Spawn(logger *slog.Logger, name string, env []string, argv ...string) (*Process, error) {
	if len(argv) == 0 {
		return nil, errors.New("proc: empty argv")
	}

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("proc: stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("proc: stderr pipe: %w", err)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = env
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	err = cmd.Start()
	// The parent must not hold the write ends: the child's copy is the only
	// writer, so its exit is what delivers EOF to the readers.
	stdoutW.Close()
	stderrW.Close()
	if err != nil {
		stdoutR.Close()
		stderrR.Close()
		return nil, fmt.Errorf("proc: start %s: %w", name, err)
	}

	p := &Process{
		name:   name,
		cmd:    cmd,
		stdout: stdoutR,
		stderr: stderrR,
		logger: logger,
		done:   make(chan struct{}),
	}

	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()

	logger.Debug("process_started", "name", name, "pid", cmd.Process.Pid)
	return p, nil
}

// Pid returns the child's process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Stdout returns the captured standard output stream.
func (p *Process) Stdout() *os.File { return p.stdout }

// Stderr returns the captured standard error stream.
func (p *Process) Stderr() *os.File { return p.stderr }

// Exited reports, without blocking, whether the child has exited and been
// reaped by the background wait.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the child exits and returns its exit code.
func (p *Process) Wait() int {
	<-p.done
	return exitCode(p.waitErr)
}

// Release terminates and reaps the child. The termination signal is always
// attempted and its failure never skips the reap; the call blocks until the
// exit status has been consumed. Idempotent.
func (p *Process) Release() {
	p.releaseOnce.Do(func() {
		p.kill()
		<-p.done
		p.stdout.Close()
		p.stderr.Close()
		p.logger.Debug("process_reaped",
			"name", p.name,
			"pid", p.cmd.Process.Pid,
			"exit_code", exitCode(p.waitErr),
		)
	})
}

// kill signals the child's process group, falling back to the process
// itself. Errors are ignored: the child may already be gone, and the reap in
// Release is what matters.
func (p *Process) kill() {
	pid := p.cmd.Process.Pid
	if pgid, err := syscall.Getpgid(pid); err == nil {
		syscall.Kill(-pgid, syscall.SIGKILL)
	} else {
		p.cmd.Process.Kill()
	}
}

// With runs fn with a freshly spawned process and guarantees Release on
// every exit path, including panics raised inside fn.
func With(spawn SpawnFunc, fn func(*Process) error) error {
	p, err := spawn()
	if err != nil {
		return err
	}
	defer p.Release()
	return fn(p)
}

// exitCode extracts an exit code from a Wait error, mapping signaled exits
// to 128+signal.
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				return 128 + int(status.Signal())
			}
			return status.ExitStatus()
		}
	}

	return 1
}
