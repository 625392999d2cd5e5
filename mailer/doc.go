// Package mailer enqueues notification jobs on RabbitMQ. The backend is
// fire-and-forget: contact-form submissions publish a job and move on;
// an external worker owns SMTP delivery and retries.
//
// # What this package must NOT do
//
//   - Send mail directly or block a request on broker unavailability
//     (callers publish with a short timeout and log failures).
//   - Consume from the queue.
package mailer
