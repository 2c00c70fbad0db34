package events

import "strings"

const DefaultTopicPrefix = "doorgate"

type Topics struct {
	prefix string
}

func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Event returns the topic for an event kind such as "scan" or "action".
func (t Topics) Event(kind string) string { return t.prefix + "/events/" + kind }

func (t Topics) OpenerStatus() string { return t.prefix + "/opener/status" }

func (t Topics) SystemStatus() string { return t.prefix + "/system/status" }
