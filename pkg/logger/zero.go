package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

const (
	permission = 0664
)

// LogBuild configures a zerolog-backed Logger writing to a file or an
// arbitrary buffer. It exists for destinations slog handlers don't cover
// out of the box, such as the CLI's --log-file.
type LogBuild struct {
	writer io.Writer
	path   string
}

// LogData is the built logger. It satisfies Logger and also exposes the
// underlying zerolog.Logger for callers that want level sampling or
// sub-loggers.
type LogData struct {
	writer  io.Writer
	LogFile *os.File
	Logger  zerolog.Logger
}

var _ Logger = (*LogData)(nil)

func NewBuild() *LogBuild {
	return &LogBuild{}
}

func (build *LogBuild) FromPath(path string) *LogBuild {
	build.path = path
	return build
}

func (build *LogBuild) FromBuffer(w io.Writer) *LogBuild {
	build.writer = w
	return build
}

func (build *LogBuild) Make() (logData *LogData, err error) {
	logData = new(LogData)
	logData.writer = build.writer
	if logData.writer == nil {
		logData.writer = os.Stdout
	}
	if build.path != "" {
		logData.LogFile, err = os.OpenFile(build.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, err
		}
		logData.writer = zerolog.SyncWriter(logData.LogFile)
	}
	logData.Logger = zerolog.New(logData.writer).With().Timestamp().Logger()
	return
}

func (data *LogData) Error(msg string, args ...any) {
	withFields(data.Logger.Error(), args).Msg(msg)
}

func (data *LogData) Warn(msg string, args ...any) {
	withFields(data.Logger.Warn(), args).Msg(msg)
}

func (data *LogData) Info(msg string, args ...any) {
	withFields(data.Logger.Info(), args).Msg(msg)
}

func (data *LogData) Debug(msg string, args ...any) {
	withFields(data.Logger.Debug(), args).Msg(msg)
}

// withFields maps slog-style key/value pairs onto a zerolog event.
// A trailing key with no value is recorded under the "arg" field.
func withFields(ev *zerolog.Event, args []any) *zerolog.Event {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", args[i])
		}
		ev = ev.Interface(key, args[i+1])
	}
	if len(args)%2 == 1 {
		ev = ev.Interface("arg", args[len(args)-1])
	}
	return ev
}
