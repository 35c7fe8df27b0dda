package lottery

// SnapshotBatch copies the current balance of each candidate into the
// snapshot slot for the round's current epoch. The operation is best-effort
// over a heterogeneous candidate list: addresses without a decodable
// participant record are skipped, and a participant already snapshotted for
// the epoch is left untouched, so repeated calls are no-ops. It returns the
// number of records updated.
func (e *Engine) SnapshotBatch(roundID uint64, candidates [][20]byte) (int, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	round, err := e.loadRound(roundID)
	if err != nil {
		return 0, err
	}
	if round.EpochInRound < 1 || round.EpochInRound > EpochsPerRound {
		return 0, ErrInvalidEpoch
	}
	epochIndex := round.EpochInRound - 1
	maskBit := uint8(1) << epochIndex

	updated := 0
	for _, addr := range candidates {
		participant, ok, err := e.state.ParticipantGet(addr)
		if err != nil || !ok {
			continue
		}
		if participant.SnapshotMask&maskBit != 0 {
			continue
		}
		participant.SnapshotBalances[epochIndex] = participant.Balance
		participant.SnapshotMask |= maskBit
		if err := e.state.ParticipantPut(participant); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}
