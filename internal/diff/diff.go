// Package diff renders line-oriented differences between two file versions,
// used to preview what restoring a backup would change.
package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const (
	LineContext = "context"
	LineAdded   = "added"
	LineRemoved = "removed"
)

// MaxDiffLines bounds the combined size of inputs that will be diffed.
const MaxDiffLines = 5000

// DefaultContext is the number of unchanged lines kept around each change.
const DefaultContext = 3

type Line struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	OldLine int    `json:"old_line,omitempty"`
	NewLine int    `json:"new_line,omitempty"`
}

// Hunk is a contiguous run of changes with surrounding context.
type Hunk struct {
	OldStart int    `json:"old_start"`
	NewStart int    `json:"new_start"`
	Lines    []Line `json:"lines"`
}

// Lines returns every line of before and after, annotated as context,
// added or removed.
func Lines(before, after string) []Line {
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var lines []Line
	oldLine, newLine := 1, 1
	for _, d := range diffs {
		chunk := strings.Split(d.Text, "\n")
		if len(chunk) > 0 && chunk[len(chunk)-1] == "" {
			chunk = chunk[:len(chunk)-1]
		}
		for _, text := range chunk {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				lines = append(lines, Line{Type: LineContext, Text: text, OldLine: oldLine, NewLine: newLine})
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				lines = append(lines, Line{Type: LineRemoved, Text: text, OldLine: oldLine})
				oldLine++
			case diffmatchpatch.DiffInsert:
				lines = append(lines, Line{Type: LineAdded, Text: text, NewLine: newLine})
				newLine++
			}
		}
	}
	return lines
}

// Hunks groups the changes between before and after, keeping context
// unchanged lines on either side. Changes separated by at most 2*context
// unchanged lines share a hunk. Identical inputs produce no hunks.
func Hunks(before, after string, context int) []Hunk {
	if context < 0 {
		context = 0
	}
	lines := Lines(before, after)

	var changed []int
	for i, l := range lines {
		if l.Type != LineContext {
			changed = append(changed, i)
		}
	}

	var hunks []Hunk
	for i := 0; i < len(changed); {
		first, last := changed[i], changed[i]
		i++
		for i < len(changed) && changed[i]-last-1 <= 2*context {
			last = changed[i]
			i++
		}
		from := max(first-context, 0)
		to := min(last+context+1, len(lines))
		h := Hunk{Lines: append([]Line(nil), lines[from:to]...)}
		h.OldStart, h.NewStart = starts(h.Lines)
		hunks = append(hunks, h)
	}
	return hunks
}

// WithLimit is Hunks with DefaultContext, refusing inputs whose combined line
// count exceeds maxLines. The boolean reports truncation.
func WithLimit(before, after string, maxLines int) ([]Hunk, bool) {
	if maxLines <= 0 {
		maxLines = MaxDiffLines
	}
	if lineCount(before)+lineCount(after) > maxLines {
		return nil, true
	}
	return Hunks(before, after, DefaultContext), false
}

// Unified renders hunks in unified diff notation.
func Unified(oldName, newName string, hunks []Hunk) string {
	if len(hunks) == 0 {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s\n+++ %s\n", oldName, newName)
	for _, h := range hunks {
		var oldCount, newCount int
		for _, l := range h.Lines {
			if l.Type != LineAdded {
				oldCount++
			}
			if l.Type != LineRemoved {
				newCount++
			}
		}
		fmt.Fprintf(&sb, "@@ -%d,%d +%d,%d @@\n", h.OldStart, oldCount, h.NewStart, newCount)
		for _, l := range h.Lines {
			switch l.Type {
			case LineAdded:
				sb.WriteByte('+')
			case LineRemoved:
				sb.WriteByte('-')
			default:
				sb.WriteByte(' ')
			}
			sb.WriteString(l.Text)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// starts reports the first old and new line numbers a hunk touches.
func starts(lines []Line) (int, int) {
	oldStart, newStart := 0, 0
	for _, l := range lines {
		if oldStart == 0 && l.OldLine > 0 {
			oldStart = l.OldLine
		}
		if newStart == 0 && l.NewLine > 0 {
			newStart = l.NewLine
		}
	}
	return oldStart, newStart
}

func lineCount(value string) int {
	if value == "" {
		return 0
	}
	return strings.Count(value, "\n") + 1
}
