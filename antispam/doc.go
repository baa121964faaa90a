// Anti-abuse policy layer for a community content platform.
//
// Three pieces decide whether user content may exist unmoderated:
//
//   - admission control (governor): throttles how often a user may post in a container, with whitelist bypass rules
//   - first post moderation (firstpost): holds a user's very first item for moderator approval
//   - the spam workflow (spam): mass-reports everything a spammer wrote and disables the account, or clears a falsely accused user
//
// Engine wires these together over a single platform backend (see the platform package) and per-scope throttle caches (see throttle).
package antispam
