package interview

// 各类型的五项专项指标，顺序即提示词中的顺序
var typeMetricKeys = map[InterviewType][]string{
	TypeJob:     {"technicalKnowledge", "problemSolving", "culturalFit", "leadershipPotential", "adaptability"},
	TypeSales:   {"productKnowledge", "objectionHandling", "closingAbility", "relationshipBuilding", "valuePropositionClarity"},
	TypeEnglish: {"grammarAccuracy", "vocabularyRange", "pronunciation", "fluency", "comprehension"},
}

var defaultMetrics = map[InterviewType]map[string]int{
	TypeJob: {
		"technicalKnowledge":  15,
		"problemSolving":      16,
		"culturalFit":         17,
		"leadershipPotential": 14,
		"adaptability":        16,
	},
	TypeSales: {
		"productKnowledge":        16,
		"objectionHandling":       14,
		"closingAbility":          14,
		"relationshipBuilding":    17,
		"valuePropositionClarity": 15,
	},
	TypeEnglish: {
		"grammarAccuracy": 15,
		"vocabularyRange": 16,
		"pronunciation":   14,
		"fluency":         15,
		"comprehension":   18,
	},
}

var defaultStrengths = []string{
	"Good communication skills",
	"Clear and concise answers",
	"Demonstrated relevant experience",
	"Showed enthusiasm for the role",
}

var defaultImprovements = []string{
	"Could provide more specific examples",
	"Consider structuring answers using the STAR method",
	"Prepare more questions to ask the interviewer",
	"Work on conciseness in responses",
}

var defaultTips = map[InterviewType][]string{
	TypeJob: {
		"Practice the STAR method (Situation, Task, Action, Result) for behavioral questions",
		"Research the company more thoroughly before your next interview",
		"Prepare 3-5 concrete examples of past achievements that highlight your skills",
		"Work on explaining technical concepts in simpler terms",
		"Prepare thoughtful questions to ask the interviewer at the end",
	},
	TypeSales: {
		"Practice handling common objections more effectively",
		"Work on your closing techniques to secure next steps",
		"Develop a stronger value proposition that focuses on client benefits",
		"Ask more discovery questions to understand client needs",
		"Prepare case studies and success stories to share with potential clients",
	},
	TypeEnglish: {
		"Practice speaking with native speakers regularly",
		"Focus on improving your pronunciation of specific sounds",
		"Expand your vocabulary by reading and listening to English content",
		"Practice speaking at a natural pace rather than rushing",
		"Record yourself speaking and review for areas of improvement",
	},
}

var defaultSummary = map[InterviewType]string{
	TypeJob: "Overall, you demonstrated good communication skills and relevant experience. " +
		"Your enthusiasm for the role was evident, but you could improve by providing more specific examples " +
		"and structuring your answers more effectively. With some practice on the STAR method and more thorough " +
		"preparation, you should see significant improvement in your interview performance.",
	TypeSales: "Your sales call showed good product knowledge and enthusiasm. You could improve by asking more " +
		"discovery questions to understand client needs better and handling objections more effectively. " +
		"Work on developing a stronger value proposition and closing techniques to increase your success rate.",
	TypeEnglish: "Your English speaking skills show good vocabulary and comprehension. You could improve your " +
		"fluency and pronunciation with regular practice. Focus on speaking at a natural pace and expanding " +
		"your vocabulary through reading and listening to English content.",
}

func MetricKeys(t InterviewType) []string {
	return append([]string(nil), typeMetricKeys[t]...)
}

// FallbackReport 上游不可用时的固定报告，每次返回新对象
func FallbackReport(t InterviewType) *FeedbackReport {
	if !t.Valid() {
		t = TypeJob
	}
	metrics := make(map[string]int, len(defaultMetrics[t]))
	for k, v := range defaultMetrics[t] {
		metrics[k] = v
	}
	return &FeedbackReport{
		Score:              75,
		ConfidenceScore:    70,
		EnthusiasmScore:    15,
		CommunicationScore: 16,
		SelfAwarenessScore: 14,
		SuccessRate:        72,
		Feedback: FeedbackDetail{
			Strengths:    append([]string(nil), defaultStrengths...),
			Improvements: append([]string(nil), defaultImprovements...),
		},
		Metrics: metrics,
		Tips:    append([]string(nil), defaultTips[t]...),
		Summary: defaultSummary[t],
	}
}
