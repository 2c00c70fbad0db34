// Package events publishes gateway activity to an MQTT broker.
//
// Topics (prefix defaults to "doorgate"):
//
//	<prefix>/events/scan      scan outcomes, not retained
//	<prefix>/events/action    confirmation outcomes, not retained
//	<prefix>/opener/status    opener health, retained
//	<prefix>/system/status    gateway online/offline, retained, also the LWT
//
// Payloads are JSON. User ids appear in scan and action events; badge ids
// never do.
package events
