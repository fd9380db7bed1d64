// Package types is the line protocol spoken between clients and the server.
//
// Every message is one UTF-8 line shaped COMMAND or COMMAND:payload. Payloads may carry
// their own ':', ',', ';', '/' or '|' separated fields depending on the command.
package types

import (
	"errors"
	"strings"
	"unicode"
)

// Client -> Server
const (
	CmdLogin          = "LOGIN"           // username[:password]
	CmdSignup         = "SIGNUP"          // username:password
	CmdChangePassword = "CHANGE_PASSWORD" // old:new
	CmdGetRoomList    = "GET_ROOM_LIST"
	CmdGetUserList    = "GET_USER_LIST"
	CmdCreateRoom     = "CREATE_ROOM" // roomName
	CmdJoinRoom       = "JOIN_ROOM"   // roomId
	CmdLeaveRoom      = "LEAVE_ROOM"
	CmdStartGame      = "START_GAME"
	CmdPassTurn       = "PASS_TURN"
	CmdKick           = "KICK"  // username
	CmdPlace          = "PLACE" // pieceId:x:y:rotation
	CmdChat           = "CHAT"  // text
	CmdBan            = "BAN"   // username
	CmdUnban          = "UNBAN" // username
)

// Server -> Client
const (
	MsgLoginSuccess     = "LOGIN_SUCCESS"
	MsgLoginFail        = "LOGIN_FAIL"
	MsgSignupSuccess    = "SIGNUP_SUCCESS"
	MsgSignupFail       = "SIGNUP_FAIL"
	MsgPasswordChanged  = "PASSWORD_CHANGED"
	MsgPasswordFail     = "PASSWORD_FAIL"
	MsgRoomList         = "ROOM_LIST"
	MsgUserList         = "USER_LIST"
	MsgJoinSuccess      = "JOIN_SUCCESS"
	MsgJoinFail         = "JOIN_FAIL"
	MsgRoomUpdate       = "ROOM_UPDATE"
	MsgGameStart        = "GAME_START"
	MsgGameState        = "GAME_STATE"
	MsgHandUpdate       = "HAND_UPDATE"
	MsgInvalidMove      = "INVALID_MOVE"
	MsgGameOver         = "GAME_OVER"
	MsgSystem           = "SYSTEM_MSG"
	MsgChat             = "CHAT"
	MsgTimeUpdate       = "TIME_UPDATE"
	MsgTimeSync         = "TIME_SYNC"
	MsgTurnChanged      = "TURN_CHANGED"
	MsgPlayerEliminated = "PLAYER_ELIMINATED"
)

var ErrEmptyMessage = errors.New("empty message")
var ErrBadCommand = errors.New("malformed command")
var ErrLineBreak = errors.New("line break inside message")

type ClientMessage struct {
	Command string
	Payload string
}

// Parse splits a raw line at the first ':'. The command is upper-cased; the payload is
// left as sent. A line carrying a line break anywhere but its end is rejected.
func Parse(line string) (ClientMessage, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return ClientMessage{}, ErrEmptyMessage
	}
	if strings.ContainsAny(line, "\r\n") {
		return ClientMessage{}, ErrLineBreak
	}
	cmd, payload, _ := strings.Cut(line, ":")
	cmd = strings.ToUpper(strings.TrimSpace(cmd))
	if cmd == "" || strings.ContainsAny(cmd, " \t") {
		return ClientMessage{}, ErrBadCommand
	}
	return ClientMessage{Command: cmd, Payload: payload}, nil
}

// Line renders an outbound message without the trailing newline.
func Line(cmd string, payload ...string) string {
	if len(payload) == 0 {
		return cmd
	}
	return cmd + ":" + strings.Join(payload, ":")
}

// Fields splits a payload into exactly n ':' separated fields.
func Fields(payload string, n int) ([]string, bool) {
	parts := strings.SplitN(payload, ":", n)
	if len(parts) != n {
		return nil, false
	}
	return parts, true
}

// StripControl drops control characters, line breaks included, from client text that is
// relayed to other clients.
func StripControl(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
}
