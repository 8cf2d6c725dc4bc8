package wificmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/soypat/wificmd/wlan"
)

const levelTrace slog.Level = slog.LevelDebug - 1

func (m *Manager) logenabled(level slog.Level) bool {
	return m.logger != nil && m.logger.Handler().Enabled(context.Background(), level)
}

func (m *Manager) logattrs(level slog.Level, msg string, attrs ...slog.Attr) {
	if m.logenabled(level) {
		m.logger.LogAttrs(context.Background(), level, msg, attrs...)
	}
}

func (m *Manager) logerr(msg string, attrs ...slog.Attr) {
	m.logattrs(slog.LevelError, msg, attrs...)
}

func (m *Manager) warn(msg string, attrs ...slog.Attr) {
	m.logattrs(slog.LevelWarn, msg, attrs...)
}

func (m *Manager) info(msg string, attrs ...slog.Attr) {
	m.logattrs(slog.LevelInfo, msg, attrs...)
}

func (m *Manager) debug(msg string, attrs ...slog.Attr) {
	m.logattrs(slog.LevelDebug, msg, attrs...)
}

func (m *Manager) trace(msg string, attrs ...slog.Attr) {
	m.logattrs(levelTrace, msg, attrs...)
}

// printf writes one status line to the configured output. Status lines are
// consumed by external test tooling and their format must not change.
func (m *Manager) printf(format string, args ...any) {
	m.outmu.Lock()
	defer m.outmu.Unlock()
	fmt.Fprintf(m.out, format+"\n", args...)
}

// Printf writes one status line, serialized with the lines printed by event
// handlers. A trailing newline is added.
func (m *Manager) Printf(format string, args ...any) { m.printf(format, args...) }

// ewarn prints the warning line for a failed teardown step. nil errors are ignored.
func (m *Manager) ewarn(desc string, err error) {
	if err == nil {
		return
	}
	code := ErrorCode(err)
	m.printf("@EW:failed:%s,%d,%s", desc, int32(code), code.Name())
	m.warn(desc, slog.String("err", err.Error()))
}

// ErrorCode extracts the vendor error code carried by err. Errors without a
// code map to wlan.ErrFail and a nil error maps to zero.
func ErrorCode(err error) wlan.Error {
	if err == nil {
		return 0
	}
	var code wlan.Error
	if errors.As(err, &code) {
		return code
	}
	return wlan.ErrFail
}

// DoneLine formats the result line printed after a console action.
func DoneLine(desc string, err error) string {
	if err == nil {
		return "DONE." + desc + ",OK."
	}
	code := ErrorCode(err)
	return fmt.Sprintf("DONE.%s,FAIL.%d,%s", desc, int32(code), code.Name())
}

func errattr(err error) slog.Attr {
	if err == nil {
		return slog.String("err", "<nil>")
	}
	return slog.String("err", err.Error())
}
