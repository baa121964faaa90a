// Access to the content platform: an HTTP client for its admin API, and an in-memory MockPlatform.
//
// Both implement community.UserDirectory, community.GroupDirectory, community.StatusLevels, content.Enumerator, and moderation.Bridge.
package platform
