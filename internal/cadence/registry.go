package cadence

import (
	"fmt"

	"github.com/LeventeLantos/cadence-engine/internal/model"
)

// Step is one entry of a cadence definition: send on the step's channel
// DayOffset days after the previous action.
type Step struct {
	DayOffset int
	Channel   model.Channel
}

const (
	NeverAnswered = "never_answered"
	Retargeting   = "retargeting"
)

// definitions is the code-defined, versioned cadence table. Editing a
// sequence means shipping a new build; running states keep their step
// index, so steps may only be appended, never reordered.
var definitions = map[string][]Step{
	NeverAnswered: {
		{DayOffset: 2, Channel: model.ChannelSMS},
		{DayOffset: 5, Channel: model.ChannelSMS},
		{DayOffset: 9, Channel: model.ChannelEmail},
		{DayOffset: 14, Channel: model.ChannelSMS},
		{DayOffset: 21, Channel: model.ChannelEmail},
		{DayOffset: 30, Channel: model.ChannelSMS},
	},
	Retargeting: {
		{DayOffset: 1, Channel: model.ChannelSMS},
		{DayOffset: 3, Channel: model.ChannelEmail},
		{DayOffset: 7, Channel: model.ChannelSMS},
	},
}

// Definition returns the ordered steps for a cadence id. Unknown ids
// return nil, not an error.
func Definition(cadenceID string) []Step {
	return definitions[cadenceID]
}

// TemplateID names the message template for a given cadence step.
func TemplateID(cadenceID string, stepIndex int) string {
	return fmt.Sprintf("%s_step_%d", cadenceID, stepIndex)
}
