package mqtt

import "fmt"

// Topic roots for rig output. The agent only publishes; it never subscribes.
const (
	TopicRoot = "daylight"
)

// PWMTopic constructs the drive-level topic for one pin of a rig
// Pattern: daylight/{rig}/pwm/{pin}
func PWMTopic(rig string, pin int) string {
	return fmt.Sprintf("%s/%s/pwm/%d", TopicRoot, rig, pin)
}

// StateTopic constructs the retained availability topic of a rig
// Pattern: daylight/{rig}/state
func StateTopic(rig string) string {
	return fmt.Sprintf("%s/%s/state", TopicRoot, rig)
}
