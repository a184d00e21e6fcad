package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/hokaccha/go-prettyjson"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

var red = color.New(color.FgRed).SprintFunc()

func fatal(msg interface{}) {
	var s string
	switch msg := msg.(type) {
	case string:
		s = msg
	case error:
		s = msg.Error()
	default:
		s = fmt.Sprintf("%v", msg)
	}
	fmt.Fprintf(os.Stderr, "%s\n", red(s))
	os.Exit(1)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// newLogger returns a console logger writing to w.
func newLogger(w io.Writer, level zerolog.Level, noColor bool) zerolog.Logger {
	out := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    noColor || !isTerminal(w),
		TimeFormat: time.TimeOnly,
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// getOutputJSON renders v for w: colorized on a terminal, plain indented
// JSON otherwise.
func getOutputJSON(v *viper.Viper, w io.Writer, result any) ([]byte, error) {
	if v.GetBool("no-color") || !isTerminal(w) {
		return json.MarshalIndent(result, "", "  ")
	}
	return prettyjson.Marshal(result)
}

func writeJSON(v *viper.Viper, w io.Writer, result any) error {
	out, err := getOutputJSON(v, w, result)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
