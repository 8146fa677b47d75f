// Package srt reads and writes SubRip subtitle files: numbered cues with a
// "HH:MM:SS,mmm --> HH:MM:SS,mmm" timing line followed by the cue text.
package srt

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jadenj13/clipper/internals/fault"
)

const arrow = " --> "

type Cue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

// FromSeconds converts a fractional-second offset as emitted by speech models
// into a millisecond-precise duration.
func FromSeconds(seconds float64) time.Duration {
	if seconds <= 0 || math.IsNaN(seconds) {
		return 0
	}
	return time.Duration(math.Round(seconds*1000)) * time.Millisecond
}

// FormatTimestamp renders d as HH:MM:SS,mmm.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	hours := ms / 3_600_000
	ms -= hours * 3_600_000
	minutes := ms / 60_000
	ms -= minutes * 60_000
	seconds := ms / 1000
	ms -= seconds * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, ms)
}

// ParseTimestamp accepts HH:MM:SS,mmm and the HH:MM:SS.mmm variant some tools emit.
func ParseTimestamp(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	value = strings.ReplaceAll(value, ".", ",")
	clock, millisText, ok := strings.Cut(value, ",")
	if !ok {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(clock, ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(millisText)
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	if minutes > 59 || seconds > 59 || millis > 999 || hours < 0 || minutes < 0 || seconds < 0 || millis < 0 {
		return 0, fmt.Errorf("timestamp out of range %q", value)
	}
	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond, nil
}

// Format renders cues as an SRT document. Cues are numbered from 1 in slice
// order regardless of their Index field.
func Format(cues []Cue) string {
	var sb strings.Builder
	for i, c := range cues {
		sb.WriteString(strconv.Itoa(i + 1))
		sb.WriteByte('\n')
		sb.WriteString(FormatTimestamp(c.Start))
		sb.WriteString(arrow)
		sb.WriteString(FormatTimestamp(c.End))
		sb.WriteByte('\n')
		sb.WriteString(strings.TrimSpace(c.Text))
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// Parse reads an SRT document. Blank lines separate cues; a cue whose index or
// timing line cannot be read makes the whole document malformed.
func Parse(content string) ([]Cue, error) {
	content = strings.TrimPrefix(content, "\ufeff")
	content = strings.ReplaceAll(content, "\r\n", "\n")

	var cues []Cue
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	next := func() (string, bool) {
		if !scanner.Scan() {
			return "", false
		}
		lineNo++
		return scanner.Text(), true
	}

	for {
		line, ok := next()
		if !ok {
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		index, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil {
			return nil, fault.Wrap(fault.ErrMalformed, "srt parse", fmt.Sprintf("line %d: expected cue index, got %q", lineNo, line), nil)
		}

		timing, ok := next()
		if !ok {
			return nil, fault.Wrap(fault.ErrMalformed, "srt parse", fmt.Sprintf("cue %d: missing timing line", index), nil)
		}
		startText, endText, found := strings.Cut(timing, "-->")
		if !found {
			return nil, fault.Wrap(fault.ErrMalformed, "srt parse", fmt.Sprintf("line %d: expected timing, got %q", lineNo, timing), nil)
		}
		start, err := ParseTimestamp(startText)
		if err != nil {
			return nil, fault.Wrap(fault.ErrMalformed, "srt parse", fmt.Sprintf("line %d", lineNo), err)
		}
		end, err := ParseTimestamp(endText)
		if err != nil {
			return nil, fault.Wrap(fault.ErrMalformed, "srt parse", fmt.Sprintf("line %d", lineNo), err)
		}

		var text []string
		for {
			l, ok := next()
			if !ok || strings.TrimSpace(l) == "" {
				break
			}
			text = append(text, l)
		}

		cues = append(cues, Cue{Index: index, Start: start, End: end, Text: strings.Join(text, "\n")})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}
	return cues, nil
}

func ReadFile(path string) ([]Cue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}
	return Parse(string(data))
}

func WriteFile(path string, cues []Cue) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create srt directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(Format(cues)), 0o644); err != nil {
		return fmt.Errorf("write srt: %w", err)
	}
	return nil
}
