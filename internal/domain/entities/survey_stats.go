package entities

// QuestionStat aggregates the answers given to one question.
type QuestionStat struct {
	QuestionNo   int      `json:"questionNo"`
	AvgScore     *float64 `json:"avgScore"`
	CountAnswers int64    `json:"countAnswers"`
}

// OverallStats summarises all matching answers.
//
// WeightedAvgScore averages every individual answer, so long responses weigh more.
// MeanOfResponseAverages first averages each response and then averages those means,
// so every response counts once. The two diverge when response length correlates
// with sentiment and both are reported side by side.
type OverallStats struct {
	WeightedAvgScore         *float64 `json:"weightedAvgScore"`
	TotalAnswers             int64    `json:"totalAnswers"`
	TotalResponsesWithLikert int64    `json:"totalResponsesWithLikert"`
	MeanOfResponseAverages   *float64 `json:"meanOfResponseAverages"`

	// AveragedResponses is the number of per-response means that fed
	// MeanOfResponseAverages. It always equals TotalResponsesWithLikert.
	AveragedResponses int64 `json:"-"`
}

// QuestionDistribution counts the answers per score for one question.
type QuestionDistribution struct {
	QuestionNo int                    `json:"questionNo"`
	Total      int64                  `json:"total"`
	ByScore    map[int]int64          `json:"byScore"`
	ByOption   map[LikertOption]int64 `json:"byOption"`
}

// NewQuestionDistribution returns a distribution with all five levels present.
func NewQuestionDistribution(questionNo int) *QuestionDistribution {
	d := &QuestionDistribution{
		QuestionNo: questionNo,
		ByScore:    make(map[int]int64, MaxScore),
		ByOption:   make(map[LikertOption]int64, MaxScore),
	}
	for score := MinScore; score <= MaxScore; score++ {
		d.ByScore[score] = 0
		option, _ := ScoreToOption(score)
		d.ByOption[option] = 0
	}
	return d
}

// Add records count answers with the given score.
func (d *QuestionDistribution) Add(score int, count int64) {
	option, err := ScoreToOption(score)
	if err != nil {
		return
	}
	d.ByScore[score] += count
	d.ByOption[option] += count
	d.Total += count
}

// StatsDashboard bundles both statistics for one filter.
type StatsDashboard struct {
	Questions []QuestionStat `json:"questions"`
	Overall   *OverallStats  `json:"overall"`
}
