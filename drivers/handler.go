package drivers

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// Options are passed untouched to every Handle call of a poll.
type Options map[string]interface{}

func (o Options) stringOr(key, fallback string) string {
	if v, found := o[key]; found {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}

// Handler receives every completed batch of a poll. A returned error stops
// the poll and is returned to the caller.
type Handler interface {
	Handle(batch Batch, opts Options) error
}

type HandlerFunc func(batch Batch, opts Options) error

func (f HandlerFunc) Handle(batch Batch, opts Options) error {
	return f(batch, opts)
}

// PrintHandler writes one line per batch to w. A single value is written as
// is, more values are joined with a tab. Options "sep" and "end" override the
// separator and the line terminator.
func PrintHandler(w io.Writer) Handler {
	return HandlerFunc(func(batch Batch, opts Options) error {
		sep := opts.stringOr("sep", "\t")
		end := opts.stringOr("end", "\n")

		values := make([]string, len(batch))
		for i, r := range batch {
			values[i] = r.String()
		}
		_, err := fmt.Fprint(w, strings.Join(values, sep), end)
		return err
	})
}

// LogHandler logs every batch at info level. Option "driver" names the source.
func LogHandler(log zerolog.Logger) Handler {
	return HandlerFunc(func(batch Batch, opts Options) error {
		values := make([]string, len(batch))
		for i, r := range batch {
			values[i] = r.String()
		}
		log.Info().
			Str("driver", opts.stringOr("driver", "unknown")).
			Strs("values", values).
			Msg("batch")
		return nil
	})
}
