// Package gitcli stores yak snapshots in a Git repository by driving the
// git binary's plumbing commands. Only objects and refs are touched; the
// working tree and index are never read or written.
package gitcli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// GitError is a failed git invocation.
type GitError struct {
	Args   []string
	Stderr string
	Stdout string
	Err    error
}

func (e *GitError) Error() string {
	msg := e.Stderr
	if msg == "" {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("git %s: %s", strings.Join(e.Args, " "), msg)
}

func (e *GitError) Unwrap() error { return e.Err }

type invocation struct {
	stdin []byte
	env   []string
}

func runGitCapture(ctx context.Context, dir string, inv invocation, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if inv.stdin != nil {
		cmd.Stdin = bytes.NewReader(inv.stdin)
	}
	if len(inv.env) > 0 {
		cmd.Env = append(os.Environ(), inv.env...)
	}
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &GitError{
			Args:   args,
			Stderr: strings.TrimSpace(stderr.String()),
			Stdout: strings.TrimSpace(stdout.String()),
			Err:    err,
		}
	}
	return stdout.Bytes(), nil
}

// outputOf returns everything a failed git command printed, lowercased.
func outputOf(err error) string {
	var gitErr *GitError
	if errors.As(err, &gitErr) {
		return strings.ToLower(strings.TrimSpace(gitErr.Stderr + "\n" + gitErr.Stdout))
	}
	return ""
}

func outputContains(err error, needles ...string) bool {
	msg := outputOf(err)
	for _, n := range needles {
		if strings.Contains(msg, n) {
			return true
		}
	}
	return false
}

// Network failures git reports for unreachable or flaky remotes.
var transientMarkers = []string{
	"could not resolve host",
	"could not read from remote repository",
	"connection refused",
	"connection reset",
	"connection timed out",
	"operation timed out",
	"unable to access",
	"early eof",
	"the remote end hung up",
	"temporary failure",
}
