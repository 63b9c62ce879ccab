package mqtt

import "testing"

func TestTopics(t *testing.T) {
	tests := []struct {
		got      string
		expected string
	}{
		{PWMTopic("reef", 18), "daylight/reef/pwm/18"},
		{StateTopic("reef"), "daylight/reef/state"},
	}

	for _, tt := range tests {
		if tt.got != tt.expected {
			t.Errorf("got %s, want %s", tt.got, tt.expected)
		}
	}
}
