package model

type Verdict string

const (
	VerdictBanana   Verdict = "banana detected"
	VerdictNoBanana Verdict = "no banana detected"
	VerdictError    Verdict = "error"
)

const DefaultThreshold float32 = 0.5

// Classify reads the model output as a "not banana" score: anything below
// threshold is a banana. NaN is never below threshold.
func Classify(score, threshold float32) Verdict {
	if score < threshold {
		return VerdictBanana
	}
	return VerdictNoBanana
}

func (v Verdict) Message() string {
	switch v {
	case VerdictBanana:
		return "🍌 Banana Detected!"
	case VerdictNoBanana:
		return "❌ No Banana Detected."
	default:
		return "Error during prediction."
	}
}
