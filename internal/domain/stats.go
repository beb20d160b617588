package domain

// Statistics is the per-identity win/loss record. Counters only ever grow,
// exactly one increment per resolved session.
type Statistics struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
}

// Played returns the number of resolved sessions behind the counters.
func (s Statistics) Played() int {
	return s.Wins + s.Losses
}

// WinRate returns wins/played in [0,1], or 0 before any session resolved.
func (s Statistics) WinRate() float64 {
	if s.Played() == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Played())
}

// Record returns a copy of the statistics with the given outcome counted.
func (s Statistics) Record(o Outcome) Statistics {
	if o == OutcomeWin {
		s.Wins++
	} else {
		s.Losses++
	}
	return s
}
