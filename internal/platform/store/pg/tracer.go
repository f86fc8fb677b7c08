package pg

import (
	"context"
	"fmt"
	"reflect"

	"qmtrends/internal/platform/logger"

	"github.com/rs/zerolog"
)

// maxLoggedElems bounds how much of an array parameter reaches the log
// the resolved_talks insert binds one array per column with a whole chunk in each
const maxLoggedElems = 8

// QueryEvent is one traced statement
type QueryEvent struct {
	SQL       string
	Args      []any
	ElapsedUS int64
	Err       error
	Slow      bool
}

// QueryTracer receives every traced statement
type QueryTracer interface {
	OnQuery(ctx context.Context, ev QueryEvent)
}

// Tracer logs every statement regardless of the root level when LogSQL is on;
// slow statements log at warn and carry the run id from ctx
func Tracer(root logger.Logger) QueryTracer {
	ll := root.Level(zerolog.DebugLevel).With().Str("component", "pg").Logger()
	return &zlTracer{log: ll}
}

type zlTracer struct{ log logger.Logger }

func (z *zlTracer) OnQuery(ctx context.Context, ev QueryEvent) {
	evt := z.log.Info()
	if ev.Slow {
		evt = z.log.Warn()
	}
	if id := logger.RunID(ctx); id != "" {
		evt = evt.Str("run_id", id)
	}
	evt.Float64("elapsed_ms", float64(ev.ElapsedUS)/1000.0).
		Bool("slow", ev.Slow).
		Str("sql", compact(ev.SQL)).
		Interface("args", summarizeArgs(ev.Args)).
		Err(ev.Err).
		Msg("pg query")
}

// summarizeArgs replaces long slice arguments with their element type and length
func summarizeArgs(args []any) []any {
	if len(args) == 0 {
		return nil
	}
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = a
		rv := reflect.ValueOf(a)
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 && rv.Len() > maxLoggedElems {
			out[i] = fmt.Sprintf("%s(len=%d)", rv.Type(), rv.Len())
		}
	}
	return out
}

// compact folds runs of whitespace into one space
func compact(s string) string {
	out := make([]rune, 0, len(s))
	space := false
	for _, r := range s {
		if r == '\n' || r == '\t' || r == '\r' || r == ' ' {
			if !space {
				out = append(out, ' ')
				space = true
			}
			continue
		}
		space = false
		out = append(out, r)
	}
	return string(out)
}
