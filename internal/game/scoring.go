package game

// TargetSum is the value a selection must add up to.
const TargetSum = 10

// Points returns the award for clearing n cells in one match.
// Three or more cells double the base; five or more triple it.
func Points(n int) int {
	if n <= 0 {
		return 0
	}
	points := n
	if n >= 5 {
		points += n * 2
	} else if n >= 3 {
		points += n
	}
	return points
}

// TierFor maps a final score to its outcome tier.
func TierFor(score int) Tier {
	switch {
	case score >= 150:
		return TierMaster
	case score >= 100:
		return TierGreat
	case score >= 50:
		return TierGood
	default:
		return TierRetry
	}
}

var tierMessages = map[Tier]string{
	TierMaster: "Amazing! Apple game master!",
	TierGreat:  "Great! Over 100 points!",
	TierGood:   "Nice! Keep practising!",
	TierRetry:  "Give it another try!",
}

// Message is the end-of-round line shown for t.
func (t Tier) Message() string { return tierMessages[t] }

// OutcomeFor builds the end-of-round summary for score.
func OutcomeFor(score int) Outcome {
	t := TierFor(score)
	return Outcome{Score: score, Tier: t, Message: t.Message()}
}

// FeedbackFor classifies a live sum over n selected cells.
func FeedbackFor(sum, n int) Feedback {
	switch {
	case n > 0 && sum == TargetSum:
		return FeedbackExact
	case sum > TargetSum:
		return FeedbackOver
	default:
		return FeedbackUnder
	}
}
