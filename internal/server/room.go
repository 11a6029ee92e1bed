package server

import (
	"fmt"
	"strconv"
	"strings"
)

const roomIdSeparator = ":"

// RoomId derives the conversation topic for two participants. The id is
// order independent: RoomId(a, b) == RoomId(b, a).
func RoomId(a, b int) string {
	if a > b {
		a, b = b, a
	}

	return strconv.Itoa(a) + roomIdSeparator + strconv.Itoa(b)
}

// ParseRoomId recovers the two participant ids from a room id.
func ParseRoomId(roomId string) (int, int, error) {
	parts := strings.Split(roomId, roomIdSeparator)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed room id %q", roomId)
	}

	a, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed room id %q", roomId)
	}

	b, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed room id %q", roomId)
	}

	if a <= 0 || b <= 0 || a >= b {
		return 0, 0, fmt.Errorf("malformed room id %q", roomId)
	}

	return a, b, nil
}

// Counterpart returns the other participant in the room. It fails when
// userId is not one of the room's participants.
func Counterpart(roomId string, userId int) (int, error) {
	a, b, err := ParseRoomId(roomId)
	if err != nil {
		return 0, err
	}

	switch userId {
	case a:
		return b, nil
	case b:
		return a, nil
	default:
		return 0, fmt.Errorf("user %d is not a participant of room %q", userId, roomId)
	}
}
