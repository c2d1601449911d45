package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"slices"
)

// levelFatal sits above slog.LevelError so handlers render it distinctly.
const levelFatal = slog.LevelError + 4

// DefaultLogger writes through a log/slog handler.
// Debug/Info/Warn/Error map onto the matching slog levels; Fatal logs at a
// level above Error and exits the process.
type DefaultLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
	fields Fields
	exit   func(int)
}

// NewDefaultLogger creates a text logger on stderr at InfoLevel.
func NewDefaultLogger() *DefaultLogger {
	return NewTextLogger(os.Stderr)
}

// NewTextLogger creates a logfmt-style logger writing to w.
func NewTextLogger(w io.Writer) *DefaultLogger {
	lv := new(slog.LevelVar)
	return newDefaultLogger(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lv, ReplaceAttr: replaceLevel}), lv)
}

// NewJSONLogger creates a logger that writes one JSON object per line to w.
func NewJSONLogger(w io.Writer) *DefaultLogger {
	lv := new(slog.LevelVar)
	return newDefaultLogger(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lv, ReplaceAttr: replaceLevel}), lv)
}

func newDefaultLogger(h slog.Handler, lv *slog.LevelVar) *DefaultLogger {
	return &DefaultLogger{
		logger: slog.New(h),
		level:  lv,
		fields: make(Fields),
		exit:   os.Exit,
	}
}

// replaceLevel renders the fatal level as FATAL instead of ERROR+4.
func replaceLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if l, ok := a.Value.Any().(slog.Level); ok && l == levelFatal {
			a.Value = slog.StringValue(FatalLevel.String())
		}
	}
	return a
}

func toSlogLevel(l Level) slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	case FatalLevel:
		return levelFatal
	default:
		return slog.LevelInfo
	}
}

func (d *DefaultLogger) log(level Level, err error, msg string, fields ...Fields) {
	sl := toSlogLevel(level)
	ctx := context.Background()
	if !d.logger.Enabled(ctx, sl) {
		return
	}

	all := mergeFields(d.fields, fields)
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	attrs := make([]slog.Attr, 0, len(all)+1)
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, all[k]))
	}
	d.logger.LogAttrs(ctx, sl, msg, attrs...)

	if level == FatalLevel {
		d.exit(1)
	}
}

func (d *DefaultLogger) Debug(msg string, fields ...Fields) {
	d.log(DebugLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Info(msg string, fields ...Fields) {
	d.log(InfoLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Warn(msg string, fields ...Fields) {
	d.log(WarnLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Error(err error, msg string, fields ...Fields) {
	d.log(ErrorLevel, err, msg, fields...)
}

func (d *DefaultLogger) Fatal(err error, msg string, fields ...Fields) {
	d.log(FatalLevel, err, msg, fields...)
}

// WithFields returns a child logger. Children share the parent's level.
func (d *DefaultLogger) WithFields(fields Fields) Logger {
	return &DefaultLogger{
		logger: d.logger,
		level:  d.level,
		fields: mergeFields(d.fields, []Fields{fields}),
		exit:   d.exit,
	}
}

func (d *DefaultLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := FieldsFromContext(ctx); ok {
		return d.WithFields(fields)
	}
	return d
}

func (d *DefaultLogger) SetLevel(level Level) {
	d.level.Set(toSlogLevel(level))
}
