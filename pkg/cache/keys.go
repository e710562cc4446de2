package cache

import (
	"path"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// IsExactKeyMatch compares a matched key with the primary key ignoring case
// but not accents. An empty matched key never matches.
func IsExactKeyMatch(matchedKey, key string) bool {
	if matchedKey == "" {
		return false
	}
	// collators are not safe for concurrent use
	return collate.New(language.Und, collate.IgnoreCase).CompareString(matchedKey, key) == 0
}

// JoinKey places a key below the bucket sub folder. A trailing slash on key
// is kept so prefixes stay directory prefixes.
func JoinKey(subFolder, key string) string {
	ret := path.Join(subFolder, key)
	if strings.HasSuffix(key, "/") && !strings.HasSuffix(ret, "/") {
		ret += "/"
	}
	return ret
}
