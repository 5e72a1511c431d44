package discord

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

// DiscordEpoch is the first millisecond of 2015, the zero point of Discord ids.
const DiscordEpoch int64 = 1420070400000

// SnowflakeTime returns the creation time encoded in a Discord id.
// Discord uses the same 22-bit worker/sequence layout as bwmarrin/snowflake,
// only with its own epoch.
func SnowflakeTime(id string) (time.Time, error) {
	sf, err := snowflake.ParseString(id)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse snowflake %q: %w", id, err)
	}
	ms := sf.Int64()>>(snowflake.NodeBits+snowflake.StepBits) + DiscordEpoch
	return time.UnixMilli(ms).UTC(), nil
}
