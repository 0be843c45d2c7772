// Package feedback persists feedback decisions outside the process.
//
// NATSSink publishes each record to a JetStream stream so other services
// can replay a persona's decision history. Subjects have the form
//
//	{subject}.{persona_id}
//
// LogSink writes records to the structured log and is used when no broker
// is configured.
package feedback
