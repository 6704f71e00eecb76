package model

import "time"

// PlayerID identifies a player in the authoritative store.
type PlayerID uint32

// MapID identifies a map in the authoritative store.
type MapID uint32

// Player is a registered in-game player.
type Player struct {
	ID       PlayerID
	Login    string
	Nickname string
	JoinDate time.Time
}

// Map is a playable map. CpsNumber is the number of checkpoints when known.
type Map struct {
	ID        MapID
	UID       string
	Name      string
	PlayerID  PlayerID
	CpsNumber *uint32
	LinkedMap *MapID
}

// Record is one finish of a map by a player. Times are in milliseconds.
type Record struct {
	ID           uint32
	PlayerID     PlayerID
	MapID        MapID
	Time         int32
	RespawnCount int32
	RecordDate   time.Time
	Flags        uint32
}

// CheckpointTime is the split time of one checkpoint within a record.
type CheckpointTime struct {
	CpNum int32
	Time  int32
}

// Event is a competitive event (e.g. a cup or campaign).
type Event struct {
	ID     uint32
	Handle string
}

// EventEdition is one edition of an event.
type EventEdition struct {
	ID      uint32
	EventID uint32
	Name    string
}
