// ===========================================================================
//
// File Name:  logger.go
//
// ===========================================================================

package interactome

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/gedex/inflector"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the console logger injected into the pipeline
func NewLogger(level string, noColor bool) (*zap.Logger, error) {

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("%w: log level '%s'", ErrInvalidConfig, level)
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if noColor || color.NoColor {
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	return cfg.Build()
}

var (
	errorBanner   = color.New(color.FgRed, color.Bold, color.ReverseVideo)
	errorText     = color.New(color.FgRed, color.Bold)
	warningBanner = color.New(color.FgBlue, color.Bold, color.ReverseVideo)
	warningText   = color.New(color.FgBlue, color.Bold)
)

// DisplayError prints a highlighted error message to stderr
func DisplayError(format string, params ...any) {

	displayBanner(os.Stderr, errorBanner, errorText, "ERROR:", format, params...)
}

// DisplayWarning prints a highlighted warning message to stderr
func DisplayWarning(format string, params ...any) {

	displayBanner(os.Stderr, warningBanner, warningText, "WARNING:", format, params...)
}

func displayBanner(w io.Writer, banner, text *color.Color, label, format string, params ...any) {

	str := fmt.Sprintf(format, params...)
	fmt.Fprint(w, "\n")
	banner.Fprint(w, " "+label+" ")
	text.Fprintf(w, " %s\n", str)
}

// countOf renders "1 node" or "12 nodes" for log messages
func countOf(n int, noun string) string {

	if n == 1 {
		return "1 " + inflector.Singularize(noun)
	}
	return fmt.Sprintf("%d %s", n, inflector.Pluralize(noun))
}

// stageLogger scopes a logger to an organism and pipeline stage
func stageLogger(log *zap.Logger, org Organism, stage string) *zap.Logger {

	if log == nil {
		log = zap.NewNop()
	}
	return log.With(zap.String("organism", org.Name), zap.String("stage", strings.ToLower(stage)))
}
