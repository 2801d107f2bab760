package logger

import (
	"fmt"
	"io"
	"sync/atomic"

	echolog "github.com/labstack/gommon/log"
)

// EchoAdapter routes the echo framework's own log calls into a module
// logger. Output, prefix and header settings are ignored; the level set by
// echo only filters what is forwarded.
type EchoAdapter struct {
	log   Logger
	level atomic.Uint32
}

// NewEchoAdapter wraps log for use as echo.Echo.Logger.
func NewEchoAdapter(log Logger) *EchoAdapter {
	a := &EchoAdapter{log: log}
	a.level.Store(uint32(echolog.INFO))
	return a
}

func (a *EchoAdapter) Output() io.Writer   { return io.Discard }
func (a *EchoAdapter) SetOutput(io.Writer) {}
func (a *EchoAdapter) Prefix() string      { return "" }
func (a *EchoAdapter) SetPrefix(string)    {}
func (a *EchoAdapter) SetHeader(string)    {}

func (a *EchoAdapter) Level() echolog.Lvl         { return echolog.Lvl(a.level.Load()) }
func (a *EchoAdapter) SetLevel(level echolog.Lvl) { a.level.Store(uint32(level)) }

func (a *EchoAdapter) enabled(level echolog.Lvl) bool {
	return level >= a.Level()
}

func (a *EchoAdapter) forward(level echolog.Lvl, msg string, fields ...Field) {
	if !a.enabled(level) {
		return
	}
	switch level {
	case echolog.DEBUG:
		a.log.Debug(msg, fields...)
	case echolog.WARN:
		a.log.Warn(msg, fields...)
	case echolog.ERROR:
		a.log.Error(msg, fields...)
	default:
		a.log.Info(msg, fields...)
	}
}

func (a *EchoAdapter) Print(i ...any)                 { a.forward(echolog.INFO, fmt.Sprint(i...)) }
func (a *EchoAdapter) Printf(format string, v ...any) { a.forward(echolog.INFO, fmt.Sprintf(format, v...)) }
func (a *EchoAdapter) Printj(j echolog.JSON)          { a.forward(echolog.INFO, "echo", Any("data", j)) }

func (a *EchoAdapter) Debug(i ...any)                 { a.forward(echolog.DEBUG, fmt.Sprint(i...)) }
func (a *EchoAdapter) Debugf(format string, v ...any) { a.forward(echolog.DEBUG, fmt.Sprintf(format, v...)) }
func (a *EchoAdapter) Debugj(j echolog.JSON)          { a.forward(echolog.DEBUG, "echo", Any("data", j)) }

func (a *EchoAdapter) Info(i ...any)                 { a.forward(echolog.INFO, fmt.Sprint(i...)) }
func (a *EchoAdapter) Infof(format string, v ...any) { a.forward(echolog.INFO, fmt.Sprintf(format, v...)) }
func (a *EchoAdapter) Infoj(j echolog.JSON)          { a.forward(echolog.INFO, "echo", Any("data", j)) }

func (a *EchoAdapter) Warn(i ...any)                 { a.forward(echolog.WARN, fmt.Sprint(i...)) }
func (a *EchoAdapter) Warnf(format string, v ...any) { a.forward(echolog.WARN, fmt.Sprintf(format, v...)) }
func (a *EchoAdapter) Warnj(j echolog.JSON)          { a.forward(echolog.WARN, "echo", Any("data", j)) }

func (a *EchoAdapter) Error(i ...any)                 { a.forward(echolog.ERROR, fmt.Sprint(i...)) }
func (a *EchoAdapter) Errorf(format string, v ...any) { a.forward(echolog.ERROR, fmt.Sprintf(format, v...)) }
func (a *EchoAdapter) Errorj(j echolog.JSON)          { a.forward(echolog.ERROR, "echo", Any("data", j)) }

// Fatal and Panic log at error level, then panic.
func (a *EchoAdapter) Fatal(i ...any) { a.panicf("%s", fmt.Sprint(i...)) }
func (a *EchoAdapter) Fatalf(format string, v ...any) {
	a.panicf(format, v...)
}
func (a *EchoAdapter) Fatalj(j echolog.JSON) { a.panicf("%v", j) }
func (a *EchoAdapter) Panic(i ...any)        { a.panicf("%s", fmt.Sprint(i...)) }
func (a *EchoAdapter) Panicf(format string, v ...any) {
	a.panicf(format, v...)
}
func (a *EchoAdapter) Panicj(j echolog.JSON) { a.panicf("%v", j) }

func (a *EchoAdapter) panicf(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	a.log.Error(msg)
	panic(msg)
}
