package log

import (
	"log/slog"

	domainerrors "github.com/reglet-dev/lv2host/domain/errors"
)

// Unit log levels, as passed by units through the log host function.
const (
	UnitLevelTrace int32 = iota
	UnitLevelNote
	UnitLevelWarning
	UnitLevelError
)

// UnitLevel maps a unit log level onto slog. Unknown values are reported as
// errors so they are not lost.
func UnitLevel(level int32) slog.Level {
	switch level {
	case UnitLevelTrace:
		return slog.LevelDebug
	case UnitLevelNote:
		return slog.LevelInfo
	case UnitLevelWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// ErrorAttr converts err into an "error" group carrying its structured
// detail.
func ErrorAttr(err error) slog.Attr {
	detail := domainerrors.ToErrorDetail(err)
	if detail == nil {
		return slog.Attr{}
	}
	return slog.Any("error", detail)
}
