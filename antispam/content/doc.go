// User-generated content as seen by the anti-spam policy layer.
//
// Content kinds form a closed set (documents, forum messages, forum threads, blog posts, and bookmarked external URLs). Every kind implements Item, which exposes identity, author (nil when the kind has no attributable owner), and lifecycle status. The authoritative content store is external; this package only describes what the policy layer reads, plus the Enumerator interface through which the store is queried.
package content
