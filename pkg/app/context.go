package app

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Context holds application-wide configuration and state
type Context struct {
	context.Context

	// Output preferences
	OutputFormat string
	Verbose      bool
	Quiet        bool

	// Logger receives progress, debug and error output. Results go to Stdout.
	Logger *logrus.Logger
	Stdout io.Writer

	// Progress reporting. Without a callback progress goes to Logger at
	// debug level.
	ProgressCallback func(message string, percent int)
}

// NewContext creates a new application context
func NewContext() *Context {
	return &Context{
		Context: context.Background(),
		Logger:  logrus.StandardLogger(),
		Stdout:  os.Stdout,
	}
}

// SetupLogging sets the logger level from the verbosity flags: errors only
// when quiet, debug when verbose, info otherwise.
func (c *Context) SetupLogging() error {
	if c.Quiet && c.Verbose {
		return errors.New("can't set quiet and verbose flag at the same time")
	}

	c.Logger.SetFormatter(new(infoFormatter))
	switch {
	case c.Quiet:
		c.Logger.SetLevel(logrus.ErrorLevel)
	case c.Verbose:
		c.Logger.SetFormatter(defaultLogFormatter)
		c.Logger.SetLevel(logrus.DebugLevel)
	default:
		c.Logger.SetLevel(logrus.InfoLevel)
	}
	return nil
}

// SetProgress sets the progress callback function
func (c *Context) SetProgress(callback func(string, int)) {
	c.ProgressCallback = callback
}

// Progress reports progress to the callback, or to the logger if none is set
func (c *Context) Progress(message string, percent int) {
	if c.ProgressCallback != nil {
		c.ProgressCallback(message, percent)
		return
	}
	c.Logger.WithField("percent", percent).Debug(message)
}

// Log outputs a message based on verbosity settings
func (c *Context) Log(message string) {
	if !c.Quiet && c.Verbose {
		c.Logger.Debug(message)
	}
}

var defaultLogFormatter = &logrus.TextFormatter{}

// infoFormatter prints Info events as the bare message and everything else
// with the default text formatter.
type infoFormatter struct{}

func (f *infoFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	if entry.Level == logrus.InfoLevel {
		return append([]byte(entry.Message), '\n'), nil
	}
	return defaultLogFormatter.Format(entry)
}
