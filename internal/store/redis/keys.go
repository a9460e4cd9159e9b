package redis

import "strconv"

const (
	// KeyPrefixServer is the prefix for per-guild server bookmark documents
	KeyPrefixServer = "madeline:server:"
	// KeyAllServers is the key for the set of guild IDs holding a bookmark
	KeyAllServers = "madeline:servers:all"
)

// ServerKey returns the Redis key for a guild's bookmark document
func ServerKey(guildID int64) string {
	return KeyPrefixServer + strconv.FormatInt(guildID, 10)
}

// AllServersKey returns the key for the set of all bookmarked guild IDs
func AllServersKey() string {
	return KeyAllServers
}
