package pipeline

import "math"

// Progress is the weighted completion of a session. Completed stages
// contribute their full weight, the current stage half once it has started;
// the percentage never decreases across successful steps.
type Progress struct {
	PercentageComplete int   `json:"percentageComplete"`
	CurrentStage       Stage `json:"currentStage"`
	Complete           bool  `json:"complete"`
}

// progressLocked computes progress from session state. Caller holds the
// controller mutex.
func (s *Session) progressLocked() Progress {
	if s.complete {
		return Progress{PercentageComplete: 100, CurrentStage: StageComplete, Complete: true}
	}
	sum := 0.0
	currentOrder := s.currentStage.Order()
	for _, stage := range stageOrder {
		if stage.Order() < currentOrder {
			sum += float64(stage.Weight())
		}
	}
	if s.attempted(s.currentStage) {
		sum += float64(s.currentStage.Weight()) / 2
	}
	return Progress{
		PercentageComplete: int(math.Round(sum)),
		CurrentStage:       s.currentStage,
	}
}
