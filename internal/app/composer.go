package app

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"substitute_sms_notifier/internal/domain/assignment"
)

// TemplateValues are the resolved placeholder values for one message.
type TemplateValues struct {
	Substitute      string
	Class           string
	Period          int
	Date            string
	Day             string
	OriginalTeacher string
}

// Render fills the six placeholders of tmpl. Replacement is literal and runs
// in a fixed order, so a value that itself contains a later placeholder
// token is substituted again.
func Render(tmpl string, v TemplateValues) string {
	out := tmpl
	out = strings.ReplaceAll(out, "{substitute}", v.Substitute)
	out = strings.ReplaceAll(out, "{class}", v.Class)
	out = strings.ReplaceAll(out, "{period}", strconv.Itoa(v.Period))
	out = strings.ReplaceAll(out, "{date}", v.Date)
	out = strings.ReplaceAll(out, "{day}", v.Day)
	out = strings.ReplaceAll(out, "{original_teacher}", v.OriginalTeacher)
	return out
}

// DefaultTemplate returns the initial template for the given day.
func DefaultTemplate(now time.Time) string {
	return fmt.Sprintf("Dear {substitute}, you have been assigned to cover {class} Period {period} on {date} (%s). Please confirm your availability.", now.Weekday())
}

// Composer turns worklist entries into message bodies.
type Composer struct {
	now      func() time.Time
	template string
}

// NewComposer creates a composer whose clock is now. A nil clock means time.Now.
func NewComposer(now func() time.Time) *Composer {
	if now == nil {
		now = time.Now
	}
	return &Composer{now: now, template: DefaultTemplate(now())}
}

func (c *Composer) Template() string { return c.template }

func (c *Composer) SetTemplate(tmpl string) { c.template = tmpl }

// Preview renders the template for one assignment using today's date and day.
func (c *Composer) Preview(name string, rec assignment.Record) string {
	now := c.now()
	return Render(c.template, TemplateValues{
		Substitute:      name,
		Class:           rec.ClassName,
		Period:          rec.Period,
		Date:            now.Format(assignment.DateLayout),
		Day:             now.Weekday().String(),
		OriginalTeacher: rec.OriginalTeacher,
	})
}

// ComposeForTeacher builds the body actually sent to the entry's teacher.
// A single assignment goes through the template with its stored date; several
// assignments produce a bullet list ordered by period.
func (c *Composer) ComposeForTeacher(entry WorklistEntry) string {
	if len(entry.Assignments) == 0 {
		return ""
	}
	day := c.now().Weekday().String()
	sorted := sortByPeriod(entry.Assignments)

	if len(sorted) == 1 {
		rec := sorted[0]
		return Render(c.template, TemplateValues{
			Substitute:      entry.Name,
			Class:           rec.ClassName,
			Period:          rec.Period,
			Date:            rec.Date,
			Day:             day,
			OriginalTeacher: rec.OriginalTeacher,
		})
	}

	lines := make([]string, len(sorted))
	for i, rec := range sorted {
		lines[i] = fmt.Sprintf("• Period %d: %s (for %s)", rec.Period, rec.ClassName, rec.OriginalTeacher)
	}
	greeting := fmt.Sprintf("Dear %s, you have been assigned to the following classes on %s (%s):", entry.Name, sorted[0].Date, day)
	return greeting + "\n\n" + strings.Join(lines, "\n") + "\n\nPlease confirm your availability."
}

// Summarize gives a one-line description of a teacher's assignments.
func Summarize(records []assignment.Record) string {
	switch len(records) {
	case 0:
		return "No assignments"
	case 1:
		rec := records[0]
		return fmt.Sprintf("Period %d: %s (for %s)", rec.Period, rec.ClassName, rec.OriginalTeacher)
	}
	sorted := sortByPeriod(records)
	periods := make([]string, len(sorted))
	for i, rec := range sorted {
		periods[i] = "P" + strconv.Itoa(rec.Period)
	}
	return fmt.Sprintf("%d assignments: %s", len(sorted), strings.Join(periods, ", "))
}

func sortByPeriod(records []assignment.Record) []assignment.Record {
	out := make([]assignment.Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out
}
