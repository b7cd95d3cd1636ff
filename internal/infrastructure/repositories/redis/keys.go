package redis

import "reelgate/internal/core/domain"

const keyPrefix = "reelgate:"

func docKey(collection domain.Collection, id string) string {
	return keyPrefix + string(collection) + ":" + id
}

func videoIndexKey() string {
	return keyPrefix + "videos:index"
}

func videoStatusKey(status domain.VideoStatus) string {
	return keyPrefix + "videos:status:" + string(status)
}

func videoUploaderKey(id domain.UserID) string {
	return keyPrefix + "videos:uploader:" + string(id)
}

func userIndexKey() string {
	return keyPrefix + "users:index"
}

func usernamesKey() string {
	return keyPrefix + "users:usernames"
}

func pageIndexKey() string {
	return keyPrefix + "pages:index"
}
