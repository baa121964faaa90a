// Admission control for new content: posting-frequency throttling with whitelist bypass rules.
//
// A Gate is configured per scope (content type and container). Check evaluates, in order: document edits, anonymous authors, email domain whitelist, reputation points, group whitelist, and finally the scope's throttle cache. The first matching bypass wins.
//
// Rejection is an ordinary return value (Decision); callers that want an error use Decision.Err.
package governor
