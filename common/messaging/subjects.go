package messaging

// Subjects published by the console when an operator changes an alarm.
// Pattern: {service}.{resource}.{event}
const (
	SubjectAlarmStatusUpdated = "console.alarms.status_updated"
	SubjectAlarmTagUpdated    = "console.alarms.tag_updated"
	SubjectAlarmDeleted       = "console.alarms.deleted"

	// SubjectAlarmsAll matches every alarm change subject.
	SubjectAlarmsAll = "console.alarms.>"
)

// QueueConsoleWatchers load-balances alarm change consumers.
const QueueConsoleWatchers = "console-watchers"
