// Mass reporting and mass resolution of a user's content, and related queries.
//
// Manager fans out over every kind of content a user can author (documents, forum messages, personal blog posts, bookmarked external URLs) and drives the approval pipeline through a moderation.Bridge.
//
// Forum threads are never reported directly, only their messages. On resolution, each distinct thread behind the spammer's hidden messages is resolved once, and only if the spammer started it.
package spam
