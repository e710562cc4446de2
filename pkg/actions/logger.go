package actions

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// core renders log entries as workflow commands so the runner annotates
// warnings and errors and hides debug output unless step debugging is on.
type core struct {
	zapcore.LevelEnabler
	enc zapcore.Encoder
	out zapcore.WriteSyncer
}

// NewLogger returns a zap logger writing workflow commands to out.
func NewLogger(out zapcore.WriteSyncer, level zapcore.LevelEnabler) *zap.Logger {
	return zap.New(NewCore(out, level))
}

func NewCore(out zapcore.WriteSyncer, level zapcore.LevelEnabler) zapcore.Core {
	return &core{
		LevelEnabler: level,
		enc: zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
			MessageKey:       "msg",
			NameKey:          "logger",
			EncodeDuration:   zapcore.StringDurationEncoder,
			EncodeName:       zapcore.FullNameEncoder,
			ConsoleSeparator: " ",
		}),
		out: out,
	}
}

func (c *core) With(fields []zapcore.Field) zapcore.Core {
	enc := c.enc.Clone()
	for _, f := range fields {
		f.AddTo(enc)
	}
	return &core{LevelEnabler: c.LevelEnabler, enc: enc, out: c.out}
}

func (c *core) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *core) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	buf, err := c.enc.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}
	defer buf.Free()

	line := strings.TrimSuffix(buf.String(), "\n")
	switch {
	case ent.Level >= zapcore.ErrorLevel:
		line = "::error::" + escapeData(line)
	case ent.Level == zapcore.WarnLevel:
		line = "::warning::" + escapeData(line)
	case ent.Level == zapcore.DebugLevel:
		line = "::debug::" + escapeData(line)
	}

	if _, err := c.out.Write([]byte(line + "\n")); err != nil {
		return err
	}
	if ent.Level > zapcore.ErrorLevel {
		return c.out.Sync()
	}
	return nil
}

func (c *core) Sync() error {
	return c.out.Sync()
}
