package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/tidwall/gjson"

	"github.com/quiverhq/quiver/packages/store"
)

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

// FormatResponse writes the captured response. A non-empty filter is
// applied to JSON bodies as a gjson path and only the projection is
// printed.
func (f *ConsoleFormatter) FormatResponse(resp *store.Response, filter string) {
	bold := color.New(color.Bold).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	statusColor := color.New(color.FgGreen).SprintFunc()
	switch {
	case resp.StatusCode >= 500:
		statusColor = color.New(color.FgRed).SprintFunc()
	case resp.StatusCode >= 400:
		statusColor = color.New(color.FgYellow).SprintFunc()
	case resp.StatusCode >= 300:
		statusColor = color.New(color.FgCyan).SprintFunc()
	}

	fmt.Fprintf(f.writer, "%s %s %s\n",
		statusColor(fmt.Sprintf("%d %s", resp.StatusCode, resp.StatusMessage)),
		bold(resp.URL),
		cyan(fmt.Sprintf("(%dms, %d bytes)", resp.ElapsedTime.Milliseconds(), resp.BytesRead)))

	if resp.Error != "" {
		red := color.New(color.FgRed).SprintFunc()
		fmt.Fprintf(f.writer, "%s %s\n", red("Error:"), resp.Error)
	}

	if f.verbose {
		for _, h := range resp.Headers {
			fmt.Fprintf(f.writer, "  %s: %s\n", cyan(h.Name), h.Value)
		}
	}

	body := f.renderBody(resp, filter)
	if body != "" {
		fmt.Fprintf(f.writer, "\n%s\n", body)
	}
}

func (f *ConsoleFormatter) renderBody(resp *store.Response, filter string) string {
	if len(resp.Body) == 0 {
		return ""
	}
	if filter != "" {
		result := gjson.GetBytes(resp.Body, filter)
		if !result.Exists() {
			return fmt.Sprintf("(no match for %q)", filter)
		}
		return result.String()
	}
	if strings.Contains(resp.ContentType, "json") {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, resp.Body, "", "  "); err == nil {
			return pretty.String()
		}
	}
	return string(resp.Body)
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

// FormatRequestList writes one line per stored request.
func (f *ConsoleFormatter) FormatRequestList(requests []*store.Request) {
	bold := color.New(color.Bold).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	for _, req := range requests {
		name := req.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(f.writer, "%s  %s %s %s\n", cyan(req.ID), bold(req.Method), req.URL, name)
	}
}
