package types

import (
	"fmt"
	"strconv"
	"strings"
)

// RoomSummary is one row of the room list, also served as JSON over HTTP.
type RoomSummary struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Players int    `json:"players"`
	Started bool   `json:"started"`
}

// SeatSummary is one row of ROOM_UPDATE.
type SeatSummary struct {
	Name string
	Host bool
}

type UserStatus string

const (
	StatusOnline UserStatus = "online"
	StatusInRoom UserStatus = "in_room"
	StatusInGame UserStatus = "in_game"
	StatusBanned UserStatus = "banned"
)

type UserSummary struct {
	Name   string
	Status UserStatus
}

// PlaceRequest is the decoded PLACE payload.
type PlaceRequest struct {
	PieceID  string
	X        int
	Y        int
	Rotation int
}

// ParsePlace decodes pieceId:x:y:rotation.
func ParsePlace(payload string) (PlaceRequest, error) {
	parts, ok := Fields(payload, 4)
	if !ok {
		return PlaceRequest{}, fmt.Errorf("%w: want pieceId:x:y:rotation", ErrBadCommand)
	}
	var req PlaceRequest
	req.PieceID = strings.TrimSpace(parts[0])
	nums := []*int{&req.X, &req.Y, &req.Rotation}
	for i, dst := range nums {
		v, err := strconv.Atoi(strings.TrimSpace(parts[i+1]))
		if err != nil {
			return PlaceRequest{}, fmt.Errorf("%w: %q is not a number", ErrBadCommand, parts[i+1])
		}
		*dst = v
	}
	return req, nil
}

// EncodeRoomList renders [id,name,count/4];...
func EncodeRoomList(rooms []RoomSummary) string {
	parts := make([]string, 0, len(rooms))
	for _, r := range rooms {
		parts = append(parts, fmt.Sprintf("[%d,%s,%d/4]", r.ID, r.Name, r.Players))
	}
	return Line(MsgRoomList, strings.Join(parts, ";"))
}

// EncodeRoomUpdate renders [username,host|guest];...
func EncodeRoomUpdate(seats []SeatSummary) string {
	parts := make([]string, 0, len(seats))
	for _, s := range seats {
		role := "guest"
		if s.Host {
			role = "host"
		}
		parts = append(parts, "["+s.Name+","+role+"]")
	}
	return Line(MsgRoomUpdate, strings.Join(parts, ";"))
}

func EncodeUserList(users []UserSummary) string {
	parts := make([]string, 0, len(users))
	for _, u := range users {
		parts = append(parts, u.Name+"|"+string(u.Status))
	}
	return Line(MsgUserList, strings.Join(parts, ";"))
}

func joinInts(vals []int, sep string) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, sep)
}

// EncodeGameStart renders seatCount:color,color,...
func EncodeGameStart(seatCount int, colors []int) string {
	return Line(MsgGameStart, strconv.Itoa(seatCount), joinInts(colors, ","))
}

// EncodeGameState renders the row-major board followed by whose turn it is.
func EncodeGameState(cells []int, currentPlayer string, currentColor int) string {
	return Line(MsgGameState, joinInts(cells, ","), currentPlayer, strconv.Itoa(currentColor))
}

type HandPiece struct {
	ID    string
	Color int
}

// EncodeHand renders pieceId/color,...
func EncodeHand(pieces []HandPiece) string {
	parts := make([]string, len(pieces))
	for i, p := range pieces {
		parts[i] = p.ID + "/" + strconv.Itoa(p.Color)
	}
	return Line(MsgHandUpdate, strings.Join(parts, ","))
}

// EncodeTimes renders the positional form, colors 1..4 in order.
func EncodeTimes(seconds [4]int) string {
	return Line(MsgTimeUpdate, joinInts(seconds[:], ","))
}

var colorKeys = [4]string{"RED", "BLUE", "YELLOW", "GREEN"}

// EncodeTimesKeyed renders RED=n;BLUE=n;YELLOW=n;GREEN=n.
func EncodeTimesKeyed(seconds [4]int) string {
	parts := make([]string, 4)
	for i, k := range colorKeys {
		parts[i] = k + "=" + strconv.Itoa(seconds[i])
	}
	return Line(MsgTimeSync, strings.Join(parts, ";"))
}

func EncodeTurnChanged(color int, username string) string {
	return Line(MsgTurnChanged, strconv.Itoa(color)+"|"+username)
}

func EncodeEliminated(color int, reason string) string {
	return Line(MsgPlayerEliminated, strconv.Itoa(color)+"|"+reason)
}
