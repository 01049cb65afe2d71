package logflags

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

var monitor = false
var pmap = false
var symbols = false
var memory = false

var logOut io.WriteCloser

func makeLogger(level logrus.Level, fields Fields) Logger {
	if lf := loggerFactory; lf != nil {
		return lf(level, fields, logOut)
	}
	logger := logrus.New().WithFields(logrus.Fields(fields))
	logger.Logger.Formatter = textFormatterInstance
	if logOut != nil {
		logger.Logger.Out = logOut
	}
	logger.Logger.Level = level
	return &logrusLogger{logger}
}

func makeFlaggableLogger(flag bool, fields Fields) Logger {
	if !flag {
		return makeLogger(logrus.ErrorLevel, fields)
	}
	return makeLogger(logrus.DebugLevel, fields)
}

// Monitor returns true if the terminal should log command dispatch.
func Monitor() bool {
	return monitor
}

// MonitorLogger returns a logger for the terminal package.
func MonitorLogger() Logger {
	return makeFlaggableLogger(monitor, Fields{"layer": "monitor"})
}

// Pmap returns true if page table walks should be logged.
func Pmap() bool {
	return pmap
}

// PmapLogger returns a logger for page table walks.
func PmapLogger() Logger {
	return makeFlaggableLogger(pmap, Fields{"layer": "pmap"})
}

// Symbols returns true if symbol table loading and lookups should be logged.
func Symbols() bool {
	return symbols
}

// SymbolsLogger returns a logger for the symbols package.
func SymbolsLogger() Logger {
	return makeFlaggableLogger(symbols, Fields{"layer": "symbols"})
}

// Memory returns true if physical memory loading should be logged.
func Memory() bool {
	return memory
}

// MemoryLogger returns a logger for physical memory loading.
func MemoryLogger() Logger {
	return makeFlaggableLogger(memory, Fields{"layer": "memory"})
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")
var errLogDestWithoutLog = errors.New("--log-dest specified without --log")

// Setup sets monitor flags based on the contents of logstr.
// If logDest is not empty logs will be redirected to the file descriptor or
// file path specified by logDest.
func Setup(logFlag bool, logstr, logDest string) error {
	if logDest != "" {
		if !logFlag {
			return errLogDestWithoutLog
		}
		n, err := strconv.Atoi(logDest)
		if err == nil {
			logOut = os.NewFile(uintptr(n), "kmon-logs")
		} else {
			fh, err := os.Create(logDest)
			if err != nil {
				return fmt.Errorf("could not create log file: %v", err)
			}
			logOut = fh
		}
	}
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if !logFlag {
		log.SetOutput(io.Discard)
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logOut != nil {
		log.SetOutput(logOut)
	}
	if logstr == "" {
		logstr = "monitor"
	}
	v := strings.Split(logstr, ",")
	for _, logcmd := range v {
		// If adding another value, do make sure to
		// update "Help about logging flags" in cmd/kmon/cmds/commands.go
		switch logcmd {
		case "monitor":
			monitor = true
		case "pmap":
			pmap = true
		case "symbols":
			symbols = true
		case "memory":
			memory = true
		default:
			fmt.Fprintf(os.Stderr, "Warning: unknown log output value %q, run 'kmon help log' for usage.\n", logcmd)
		}
	}
	return nil
}

// Close closes the logger output.
func Close() {
	if logOut != nil {
		logOut.Close()
	}
}

// textFormatterInstance is the default logrus.Formatter used by makeLogger.
var textFormatterInstance = &textFormatter{}

type textFormatter struct{}

func (f *textFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	fmt.Fprintf(b, "%s %s ", entry.Time.Format("2006-01-02T15:04:05Z07:00"), strings.ToLower(entry.Level.String()))

	if layer, ok := entry.Data["layer"]; ok {
		fmt.Fprintf(b, "layer=%v ", layer)
	}
	for k, v := range entry.Data {
		if k == "layer" {
			continue
		}
		fmt.Fprintf(b, "%s=%v ", k, v)
	}

	b.WriteString(entry.Message)
	b.WriteByte('\n')
	return b.Bytes(), nil
}
