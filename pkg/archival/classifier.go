// Copyright 2025 TierKit Authors
// SPDX-License-Identifier: Apache-2.0

package archival

import "strings"

// Classifier maps an object key to the topic that owns it. It reports false
// when the key belongs to no topic. Classifiers must be pure functions; they
// are called once per listed key.
type Classifier func(key string) (topic string, ok bool)

// TopicFromSegmentKey is the default Classifier. It understands the archival
// tier key layout:
//
//	<prefix>/<namespace>/<topic>/<partition>_<revision>/<segment>   data
//	<prefix>/meta/<namespace>/<topic>/...                           manifests
func TopicFromSegmentKey(key string) (string, bool) {
	parts := strings.Split(key, "/")
	if len(parts) < 4 {
		return "", false
	}

	topic := parts[2]
	if parts[1] == "meta" {
		topic = parts[3]
	}
	if topic == "" {
		return "", false
	}
	return topic, true
}
