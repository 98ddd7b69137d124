package summary

import (
	"strings"
	"text/template"
	"time"
)

var promptTemplate = template.Must(template.New("consultation").Parse(`You're a medical assistant. From this description, extract a consultation summary in this format:

Patient Consultation Summary

Date: {{.Date}}
Patient Name: [Optional / Anonymous]
Patient ID: [Optional]

Reported Symptoms:
...

Duration of Symptoms:
...

Severity:
...

Medical History:
...

Current Medications:
...

Additional Notes:
...

Suggested Next Steps:
...

Location (Optional):
Language Detected:

Here is the patient input:
"""{{.Input}}"""
`))

// BuildPrompt substitutes the raw patient input and today's date into the
// fixed consultation template. The input is not trimmed or escaped.
func BuildPrompt(input string, now time.Time) string {
	var b strings.Builder
	// Execute only fails on writer errors; strings.Builder never returns one.
	_ = promptTemplate.Execute(&b, struct {
		Date  string
		Input string
	}{
		Date:  now.Format("2006-01-02"),
		Input: input,
	})
	return b.String()
}
