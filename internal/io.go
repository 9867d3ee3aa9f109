package internal

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/davidmdm/ansi"
)

type (
	stdoutKey struct{}
	stderrKey struct{}
	colorKey  struct{}
)

func WithStdout(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, stdoutKey{}, w)
}

func Stdout(ctx context.Context) io.Writer {
	w, ok := ctx.Value(stdoutKey{}).(io.Writer)
	if !ok {
		return os.Stdout
	}
	return w
}

func WithStderr(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, stderrKey{}, w)
}

func Stderr(ctx context.Context) io.Writer {
	w, ok := ctx.Value(stderrKey{}).(io.Writer)
	if !ok {
		return os.Stderr
	}
	return w
}

// WithColor toggles ansi styling for messages written through the context writers.
func WithColor(ctx context.Context, color bool) context.Context {
	return context.WithValue(ctx, colorKey{}, color)
}

func Color(ctx context.Context) bool {
	color, _ := ctx.Value(colorKey{}).(bool)
	return color
}

var warning = ansi.MakeStyle(ansi.FgYellow)

// Warnf writes a non-fatal diagnostic to Stderr(ctx).
func Warnf(ctx context.Context, format string, args ...any) {
	msg := "warning: " + fmt.Sprintf(format, args...)
	if Color(ctx) {
		msg = warning.Sprint(msg)
	}
	fmt.Fprintln(Stderr(ctx), msg)
}
