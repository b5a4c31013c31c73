// Package scheduler runs the periodic jobs of the service on cron schedules.
//
// Schedules use six fields with seconds first:
//
//	0 0,15,30,45 * * * *   every quarter hour
//	0 5 4,12,18 * * *      at 04:05, 12:05 and 18:05
//
// and are evaluated in the site timezone.
//
// Each job runs at most once at a time. A trigger that fires while the job
// is still running (from the cron or from Trigger) is dropped and counted,
// never queued. Jobs receive the context given to Run, so cancelling it
// reaches a running job.
package scheduler
