package model

import "strings"

// Completion is one model response: final text, or calls to execute, or both.
type Completion struct {
	Texts []string
	Calls []*CallRequest
}

// Text joins the response texts
func (c *Completion) Text() string {
	return strings.TrimSpace(strings.Join(c.Texts, "\n"))
}

// HasCalls reports whether the model requested any capability
func (c *Completion) HasCalls() bool {
	return len(c.Calls) > 0
}
