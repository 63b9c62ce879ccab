package redis

import "fmt"

// StatusKey returns the key for a rig's current status (hash)
// Pattern: daylight:status:{rig}
func StatusKey(rig string) string {
	return fmt.Sprintf("daylight:status:%s", rig)
}
