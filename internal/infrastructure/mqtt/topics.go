package mqtt

import "strings"

// DefaultTopicPrefix roots topics when no prefix is configured.
const DefaultTopicPrefix = "tankwatch"

// Topics builds the service's MQTT topics under a prefix.
//
//	topics := mqtt.NewTopics("tankwatch/barranco")
//	topics.Level("bco-lt-101")  // tankwatch/barranco/level/bco-lt-101
type Topics struct {
	prefix string
}

// NewTopics returns builders rooted at prefix. Surrounding slashes are
// dropped; an empty prefix uses DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the root of every topic.
func (t Topics) Prefix() string {
	return t.prefix
}

// Level is the retained latest level of one point.
//
// Example: tankwatch/barranco/level/bco-lt-101
func (t Topics) Level(slug string) string {
	return t.prefix + "/level/" + slug
}

// CaptureStatus is the retained outcome of the last capture cycle.
//
// Example: tankwatch/barranco/capture/status
func (t Topics) CaptureStatus() string {
	return t.prefix + "/capture/status"
}

// CaptureCommand receives requests to run a capture cycle now.
//
// Example: tankwatch/barranco/command/capture
func (t Topics) CaptureCommand() string {
	return t.prefix + "/command/capture"
}

// SystemStatus carries the service's online/offline state and the LWT.
//
// Example: tankwatch/barranco/system/status
func (t Topics) SystemStatus() string {
	return t.prefix + "/system/status"
}

// AllLevels matches every level topic.
//
// Pattern: tankwatch/barranco/level/+
func (t Topics) AllLevels() string {
	return t.prefix + "/level/+"
}
