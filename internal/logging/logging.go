package logging

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide CLI logger. It is a no-op until Init is called.
var Logger = zap.NewNop().Sugar()

// Options selects the log level and destination
type Options struct {
	Debug   bool
	Verbose bool
	Output  io.Writer // defaults to stderr
}

// New builds a console logger. Debug enables the development config
// (debug level, caller, stack traces on warn); Verbose lowers the level to
// info; otherwise only warnings and errors are written. Levels are coloured
// when the output is a terminal.
func New(opts Options) *zap.Logger {
	var cfg zap.Config
	if opts.Debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		if opts.Verbose {
			cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		}
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	encCfg := cfg.EncoderConfig
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if isTerminal(out) {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if !opts.Debug {
		encCfg.TimeKey = ""
		encCfg.CallerKey = ""
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(out), cfg.Level)

	zopts := []zap.Option{}
	if opts.Debug {
		zopts = append(zopts, zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
	}
	return zap.New(core, zopts...)
}

// Init replaces Logger and returns the underlying structured logger for
// packages that take a *zap.Logger
func Init(opts Options) *zap.Logger {
	l := New(opts)
	Logger = l.Sugar()
	return l
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
