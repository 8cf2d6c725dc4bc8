// Package console binds the wifi-cmd console commands to a wificmd.Manager.
//
// Each call to Exec parses and runs one command line. Results are printed as
// status lines through the Manager so they interleave safely with event
// output. Argument errors are logged and returned; they never change state.
package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"

	"github.com/soypat/wificmd"
)

var (
	errMalformed = errors.New("console: malformed line")
	errArgs      = errors.New("console: invalid arguments")
)

// Console executes wifi-cmd command lines.
type Console struct {
	m      *wificmd.Manager
	logger *slog.Logger
}

// New returns a console running commands against m. logger may be nil.
func New(m *wificmd.Manager, logger *slog.Logger) *Console {
	return &Console{m: m, logger: logger}
}

// Exec runs a single command line. Empty lines are ignored.
func (c *Console) Exec(line string) error {
	args, err := splitLine(line)
	if err != nil {
		c.logerr("console:parse", slog.String("line", line), slog.String("err", err.Error()))
		return err
	}
	if len(args) == 0 {
		return nil
	}
	root := c.root()
	root.SetArgs(args)
	err = root.Execute()
	if err != nil {
		c.logerr("console:exec", slog.String("cmd", args[0]), slog.String("err", err.Error()))
	}
	return err
}

// Commands returns the names of the registered commands.
func (c *Console) Commands() []string {
	var names []string
	for _, cmd := range c.root().Commands() {
		if !cmd.Hidden && cmd.Deprecated == "" {
			names = append(names, cmd.Name())
		}
	}
	return names
}

// root builds a fresh command tree. Flags bind to per-call variables so no
// option leaks from one line to the next.
func (c *Console) root() *cobra.Command {
	root := &cobra.Command{
		Use:           "wificmd",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	w := statusWriter{c.m}
	root.SetOut(w)
	root.SetErr(w)
	root.AddCommand(
		c.wifiCmd(),
		c.wifiCountCmd(),
		c.wifiModeCmd(),
		c.wifiCountryCmd(),
		c.wifiProtocolCmd(),
		c.staConnectCmd("sta_connect", ""),
		c.staDisconnectCmd("sta_disconnect", ""),
		c.staScanCmd("sta_scan", ""),
		c.staConnectCmd("sta", "please use 'sta_connect'."),
		c.staDisconnectCmd("disconnect", "please use 'sta_disconnect'."),
		c.staScanCmd("scan", "please use 'sta_scan'."),
		c.staScanCmd("wifi_scan", "please use 'sta_scan'."),
	)
	return root
}

// statusWriter routes cobra output through the Manager's status lines.
type statusWriter struct{ m *wificmd.Manager }

func (w statusWriter) Write(p []byte) (int, error) {
	s := strings.TrimRight(string(p), "\n")
	if s != "" {
		w.m.Printf("%s", s)
	}
	return len(p), nil
}

// splitLine splits a console line into arguments with shell quoting rules.
// Redirections and command separators are not part of the console grammar.
func splitLine(line string) ([]string, error) {
	p := shellwords.NewParser()
	args, err := p.Parse(line)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if p.Position >= 0 {
		return nil, fmt.Errorf("%w: separator at %d", errMalformed, p.Position)
	}
	return args, nil
}

func (c *Console) logattrs(level slog.Level, msg string, attrs ...slog.Attr) {
	if c.logger != nil {
		c.logger.LogAttrs(context.Background(), level, msg, attrs...)
	}
}

func (c *Console) logerr(msg string, attrs ...slog.Attr) {
	c.logattrs(slog.LevelError, msg, attrs...)
}

func (c *Console) info(msg string, attrs ...slog.Attr) {
	c.logattrs(slog.LevelInfo, msg, attrs...)
}
