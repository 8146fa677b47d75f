package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/jadenj13/clipper/internals/tools"
)

const (
	ansiBold   = "\x1b[1m"
	ansiCyan   = "\x1b[36m"
	ansiGreen  = "\x1b[32m"
	ansiRed    = "\x1b[31m"
	ansiReset  = "\x1b[0m"
	previewLen = 200
)

// progressPrinter reports tool activity on stdout while a request runs.
type progressPrinter struct {
	out      io.Writer
	colorize bool
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{out: out, colorize: shouldColorize(out)}
}

func (p *progressPrinter) paint(color, s string) string {
	if !p.colorize {
		return s
	}
	return color + s + ansiReset
}

func (p *progressPrinter) ToolCalled(name string, input json.RawMessage) {
	fmt.Fprintf(p.out, "%s %s\n", p.paint(ansiCyan, "tool"), p.paint(ansiBold, name))
	if len(input) > 0 {
		var buf bytes.Buffer
		if err := json.Indent(&buf, input, "     ", "  "); err == nil {
			fmt.Fprintf(p.out, "     input: %s\n", buf.String())
		}
	}
}

func (p *progressPrinter) ToolReturned(name string, result tools.Result) {
	if result.Failed() {
		fmt.Fprintf(p.out, "     %s %s\n", p.paint(ansiRed, "error:"), truncate(result.Err, previewLen))
		return
	}
	fmt.Fprintf(p.out, "     %s %s\n", p.paint(ansiGreen, "result:"), truncate(result.JSON(), previewLen))
}

func (p *progressPrinter) Replied(string) {
	fmt.Fprintln(p.out, p.paint(ansiGreen, "agent finished"))
}

func printRequest(out io.Writer, request string) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(out, "%s\nrequest: %s\n%s\n", rule, request, rule)
}

func printReply(out io.Writer, reply string) {
	if strings.TrimSpace(reply) == "" {
		reply = "(no reply)"
	}
	fmt.Fprintf(out, "\n%s\n", reply)
}

func truncate(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
