package app

// Reference point values; config may override them.
const (
	DefaultCorrectAnswerPoints = 100
	DefaultBonusPoints         = 30
)

// CorrectAnswerPointsRule awards a fixed number of points per correct
// answer counted in the period.
type CorrectAnswerPointsRule struct {
	PointsPerAnswer int
}

// Points fails closed: zero correct answers yield zero points no matter
// what else happened in the period.
func (r CorrectAnswerPointsRule) Points(correctAnswers int) int {
	if correctAnswers <= 0 {
		return 0
	}
	return correctAnswers * r.PointsPerAnswer
}

// BonusPointsRule awards a flat bonus per correct answer, skipping answers
// whose test also collected wrong attempts in the period. Each competition
// day opens one test, so wrong answers grouped per day map onto tests: a
// day with wrong answers forfeits that test's bonus.
type BonusPointsRule struct {
	BonusPerAnswer int
}

// Points computes the bonus for a user's period aggregate.
func (r BonusPointsRule) Points(correctAnswers int, wrongAnswersPerDay []int) int {
	if correctAnswers <= 0 {
		return 0
	}
	eligible := correctAnswers
	for _, wrong := range wrongAnswersPerDay {
		if wrong > 0 {
			eligible--
		}
	}
	if eligible <= 0 {
		return 0
	}
	return eligible * r.BonusPerAnswer
}

// AnsweringTimePlaceRule contributes no points. It orders users with equal
// totals by cumulative answering time, faster first.
type AnsweringTimePlaceRule struct{}

// Less reports whether a places ahead of b when their points are tied.
func (AnsweringTimePlaceRule) Less(a, b PeriodScore) bool {
	return a.AnsweringTime < b.AnsweringTime
}
