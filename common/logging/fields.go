package logging

import "log/slog"

// Field names shared by every console component.
const (
	FieldComponent = "component"
	FieldAlarmID   = "alarm_id"
	FieldStage     = "stage"
	FieldStore     = "store"
	FieldSeq       = "seq"
	FieldCount     = "count"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
)

func AlarmID(id string) slog.Attr {
	return slog.String(FieldAlarmID, id)
}

func Stage(stage int) slog.Attr {
	return slog.Int(FieldStage, stage)
}

// Store returns the store label (host and optional user, never the password).
func Store(label string) slog.Attr {
	return slog.String(FieldStore, label)
}

func Seq(seq uint64) slog.Attr {
	return slog.Uint64(FieldSeq, seq)
}

func Count(n int) slog.Attr {
	return slog.Int(FieldCount, n)
}

func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns an error attribute; a nil error is rendered as an empty string.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}
