package redis

import "fmt"

const keyPrefix = "scenerelay"

// maxTxRetries bounds WATCH retries when another writer touches the key.
const maxTxRetries = 3

// Hash fields of a character.
const (
	fieldNickname = "nickname"
	fieldPosX     = "position_x"
	fieldPosY     = "position_y"
	fieldPosZ     = "position_z"
	fieldRotY     = "rotation_y"
	fieldScene    = "current_scene_name"
	fieldLevel    = "level"
	fieldGold     = "gold"
	fieldHP       = "current_hp"
	fieldMaxHP    = "max_hp"
	fieldExp      = "experience"
)

// characterKey returns the Redis key of a character hash
func characterKey(identity string) string {
	return fmt.Sprintf("%s:character:%s", keyPrefix, identity)
}
