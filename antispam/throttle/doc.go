// Per-scope record of which users posted recently, used for admission throttling.
//
// Includes an interface and implementations using redis and in-process memory, plus a Registry which maps scopes to caches.
//
// The only operation on the hot path is Cache.RecordSeen, which is a single atomic insert-if-absent: two concurrent submissions by the same user can never both observe "not seen".
package throttle
