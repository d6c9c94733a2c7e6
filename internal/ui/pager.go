package ui

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/term"
)

// PagerOptions controls how a report preview is shown.
type PagerOptions struct {
	// NoPager disables the pager (--no-pager flag).
	NoPager bool

	// Out receives the content when no pager runs. Nil means stdout.
	// A pager only runs when Out is stdout.
	Out io.Writer
}

func (o PagerOptions) out() io.Writer {
	if o.Out == nil {
		return os.Stdout
	}
	return o.Out
}

// usePager reports whether content should be piped to a pager: never with
// NoPager, IRS_NO_PAGER, a non-stdout writer or a non-TTY stdout, and only
// when content does not fit the terminal.
func usePager(content string, opts PagerOptions) bool {
	if opts.NoPager || os.Getenv("IRS_NO_PAGER") != "" {
		return false
	}
	if opts.Out != nil && opts.Out != os.Stdout {
		return false
	}
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return false
	}
	_, height, err := term.GetSize(fd)
	if err != nil || height <= 0 {
		return true
	}
	return strings.Count(content, "\n")+1 > height-1
}

// pagerCommand splits IRS_PAGER, then PAGER, defaulting to "less".
func pagerCommand() []string {
	for _, env := range []string{"IRS_PAGER", "PAGER"} {
		if fields := strings.Fields(os.Getenv(env)); len(fields) > 0 {
			return fields
		}
	}
	return []string{"less"}
}

// ToPager shows content through a pager when appropriate and writes it
// directly otherwise.
func ToPager(content string, opts PagerOptions) error {
	if !usePager(content, opts) {
		_, err := fmt.Fprint(opts.out(), content)
		return err
	}

	parts := pagerCommand()
	cmd := exec.Command(parts[0], parts[1:]...) // #nosec G204 - pager command comes from the user's environment
	cmd.Stdin = strings.NewReader(content)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	// -R keeps ANSI colors, -F quits when content fits, -X keeps the screen.
	cmd.Env = os.Environ()
	if os.Getenv("LESS") == "" {
		cmd.Env = append(cmd.Env, "LESS=-RFX")
	}
	return cmd.Run()
}
