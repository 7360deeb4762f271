package realtime

import (
	"fmt"
	"strconv"
)

// RoomKey derives the room for a conversation. Order chats share one room per
// order; peer chats sort the two ids numerically so both sides compute the same key.
func RoomKey(userID, otherID uint, orderID *uint) string {
	if orderID != nil && *orderID != 0 {
		return fmt.Sprintf("order_%d", *orderID)
	}
	lo, hi := userID, otherID
	if lo > hi {
		lo, hi = hi, lo
	}
	return strconv.FormatUint(uint64(lo), 10) + "_" + strconv.FormatUint(uint64(hi), 10)
}
