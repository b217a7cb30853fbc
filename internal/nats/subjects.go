package nats

import "strings"

// SubjectPrefix namespaces every channel subject.
const SubjectPrefix = "nectar"

// DefaultBucket is the KeyValue bucket holding point-query values.
const DefaultBucket = "nectar"

// Subject maps a store channel name such as "camera0:markers" to the NATS
// subject "nectar.camera0.markers".
func Subject(channel string) string {
	return SubjectPrefix + "." + strings.ReplaceAll(channel, ":", ".")
}

// Key maps a store key to a KeyValue key ("camera0:depth:raw" becomes
// "camera0.depth.raw").
func Key(key string) string {
	return strings.ReplaceAll(key, ":", ".")
}
