package state

import (
	"encoding/hex"
	"strconv"
)

const (
	protocolKey         = "lottery/state"
	poolKey             = "lottery/pool"
	participantIndexKey = "lottery/participants"
)

func roundKey(roundID uint64) []byte {
	return []byte("lottery/round/" + strconv.FormatUint(roundID, 10))
}

func participantKey(addr [20]byte) []byte {
	return []byte("lottery/participant/" + hex.EncodeToString(addr[:]))
}

func claimTicketKey(roundID uint64, winner [20]byte) []byte {
	return []byte("lottery/claim/" + strconv.FormatUint(roundID, 10) + "/" + hex.EncodeToString(winner[:]))
}

func accountKey(addr [20]byte) []byte {
	return []byte("lottery/account/" + hex.EncodeToString(addr[:]))
}
