// Package naturaltime resolves caller-supplied natural-language deadlines
// ("tomorrow at 9am") into concrete times, for TIMER gate metadata (spec
// §4.6) that arrives without a pre-computed waitUntil timestamp. Grounded on
// the teacher's go.mod inclusion of github.com/olebedev/when, which the
// teacher never wired into any caller; this package supplies that wiring.
package naturaltime

import (
	"fmt"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var parser = newParser()

func newParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// ParseDeadline resolves text against ref ("now") and returns the deadline
// it names. An input that matches nothing is reported as an error rather
// than silently defaulting, since a TIMER gate with no resolvable deadline
// can never be satisfied.
func ParseDeadline(text string, ref time.Time) (time.Time, error) {
	result, err := parser.Parse(text, ref)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse deadline %q: %w", text, err)
	}
	if result == nil {
		return time.Time{}, fmt.Errorf("parse deadline %q: no match", text)
	}
	return result.Time, nil
}
