// Package printer provides the CLI's colored terminal output helpers.
package printer

import (
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
)

func init() {
	// Color output is kept on even without a TTY; NO_COLOR disables it.
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

// Success prints a green checkmarked message.
func Success(format string, a ...any) {
	green.Printf("✓ %s", fmt.Sprintf(format, a...))
}

// Info prints an informational message in the default color.
func Info(format string, a ...any) {
	fmt.Printf(format, a...)
}

// Warning prints a yellow warning message.
func Warning(format string, a ...any) {
	yellow.Printf("⚠️  %s", fmt.Sprintf(format, a...))
}

// Step prints a cyan step marker for multi-step operations.
func Step(format string, a ...any) {
	cyan.Printf("→ %s", fmt.Sprintf(format, a...))
}

// Println prints a plain message.
func Println(a ...any) {
	fmt.Println(a...)
}

// Printf prints a plain formatted message.
func Printf(format string, a ...any) {
	fmt.Printf(format, a...)
}

// Error prints a formatted error to stderr and returns an error carrying
// only the title, for Cobra to propagate without duplicate output.
func Error(title, explanation string, suggestions []string) error {
	return ErrorWithContext(title, explanation, nil, suggestions)
}

// ErrorWithContext is Error with key/value context lines between the
// explanation and the suggestions.
func ErrorWithContext(title, explanation string, context map[string]string, suggestions []string) error {
	red.Fprintf(os.Stderr, "%s\n\n", title)

	if explanation != "" {
		fmt.Fprintf(os.Stderr, "%s\n", explanation)
	}

	if len(context) > 0 {
		keys := make([]string, 0, len(context))
		for k := range context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprintf(os.Stderr, "\n")
		for _, k := range keys {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", k, context[k])
		}
	}

	switch len(suggestions) {
	case 0:
	case 1:
		fmt.Fprintf(os.Stderr, "\n%s\n", suggestions[0])
	default:
		fmt.Fprintf(os.Stderr, "\nEither:\n")
		for i, s := range suggestions {
			fmt.Fprintf(os.Stderr, "  %d. %s\n", i+1, s)
		}
	}

	return fmt.Errorf("%s", title)
}
