package docparse

import (
	"log/slog"
	"regexp"
	"strings"
)

// Sections holds the five labeled parts of an inquiry plan.
type Sections struct {
	Problem    string
	Hypothesis string
	Theory     string
	Apparatus  string
	Process    string
}

// Identity is the student number and name read from the plan's front table.
type Identity struct {
	StudentNumber string
	Name          string
}

// titleMarker activates the splitter; everything before the heading that
// carries it is boilerplate and is dropped.
const titleMarker = "탐구 계획서"

var sectionLabels = []string{"탐구 문제", "가설", "배경이론", "준비물", "탐구 과정"}

var identityPattern = regexp.MustCompile(`학번\s(\d+)\s성명\s(\S+)`)

// splitState tracks where in the document the splitter is.
type splitState int

const (
	stateSkipping splitState = iota // before the title marker
	stateTitle                      // marker seen, next element is the plan title
	stateIdentity                   // title consumed, expecting the identity table
	stateSection                    // inside a labeled section
)

// Split walks the parsed elements and buckets their text into the five
// sections. Stray text that appears before the first section label lands in
// the last bucket; that placement is load-bearing for plans whose label
// headings the parser mangled, so evaluators still see the text.
func Split(elements []Element) (Sections, Identity) {
	var id Identity
	buckets := make([]strings.Builder, len(sectionLabels))

	state := stateSkipping
	section := -1

	for _, el := range elements {
		category := strings.TrimSpace(el.Category)
		text := strings.TrimSpace(el.Content.Text)

		if strings.Contains(category, "heading") && strings.Contains(text, titleMarker) {
			// A repeated marker later in the document is just skipped.
			if state == stateSkipping {
				state = stateTitle
			}
			continue
		}

		switch state {
		case stateSkipping:
			continue

		case stateTitle:
			// The plan title line, whatever its category.
			state = stateIdentity
			continue

		case stateIdentity:
			if strings.Contains(category, "heading") && matchesLabel(text) {
				state = stateSection
				section = 0
				continue
			}
			if strings.Contains(category, "table") {
				if m := identityPattern.FindStringSubmatch(text); m != nil {
					id.StudentNumber = m[1]
					id.Name = m[2]
				} else {
					slog.Warn("identity table without student number and name", "text", text)
				}
				continue
			}
			appendText(&buckets[len(buckets)-1], text)

		case stateSection:
			if strings.Contains(category, "heading") && matchesLabel(text) {
				if section < len(buckets)-1 {
					section++
				}
				continue
			}
			appendText(&buckets[section], text)
		}
	}

	return Sections{
		Problem:    strings.TrimSpace(buckets[0].String()),
		Hypothesis: strings.TrimSpace(buckets[1].String()),
		Theory:     strings.TrimSpace(buckets[2].String()),
		Apparatus:  strings.TrimSpace(buckets[3].String()),
		Process:    strings.TrimSpace(buckets[4].String()),
	}, id
}

func matchesLabel(text string) bool {
	for _, label := range sectionLabels {
		if strings.Contains(text, label) {
			return true
		}
	}
	return false
}

func appendText(b *strings.Builder, text string) {
	b.WriteString("\n")
	b.WriteString(text)
}
