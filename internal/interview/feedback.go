package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("interview")

// TextGenerator 外部文本生成服务，视为不可靠
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type FeedbackOutcome string

const (
	OutcomeDirect    FeedbackOutcome = "ai"
	OutcomeExtracted FeedbackOutcome = "extracted"
	OutcomeFallback  FeedbackOutcome = "fallback"
)

const (
	minListItems = 3
	maxListItems = 7
	minTips      = 5
	maxTips      = 7

	// successRateFactor 上游未给出 successRate 时按 score 推导
	successRateFactor = 0.96
)

var errNoScore = errors.New("feedback json has no score")

type FeedbackObserver func(t InterviewType, outcome FeedbackOutcome, elapsed time.Duration)

type FeedbackNormalizer struct {
	gen     TextGenerator
	log     *zap.Logger
	observe FeedbackObserver
}

type NormalizerOption func(*FeedbackNormalizer)

func WithNormalizerLogger(l *zap.Logger) NormalizerOption {
	return func(n *FeedbackNormalizer) {
		if l != nil {
			n.log = l
		}
	}
}

func WithFeedbackObserver(fn FeedbackObserver) NormalizerOption {
	return func(n *FeedbackNormalizer) { n.observe = fn }
}

func NewFeedbackNormalizer(gen TextGenerator, opts ...NormalizerOption) *FeedbackNormalizer {
	n := &FeedbackNormalizer{gen: gen, log: zap.NewNop()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Generate 总是返回合法报告；只有 type 非法时返回 ConfigurationError
func (n *FeedbackNormalizer) Generate(ctx context.Context, t InterviewType, questions []Question, responses []UserResponse) (*FeedbackReport, error) {
	if !t.Valid() {
		return nil, &ConfigurationError{Field: "type", Reason: fmt.Sprintf("unsupported interview type %q", t)}
	}

	ctx, span := tracer.Start(ctx, "feedback.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("interview.type", string(t)),
		attribute.Int("interview.questions", len(questions)),
		attribute.Int("interview.responses", len(responses)),
	)

	start := time.Now()
	report, outcome := n.generate(ctx, t, questions, responses)
	span.SetAttributes(attribute.String("feedback.outcome", string(outcome)))
	if outcome == OutcomeFallback {
		span.SetStatus(codes.Error, "generation degraded")
	}
	if n.observe != nil {
		n.observe(t, outcome, time.Since(start))
	}
	return report, nil
}

func (n *FeedbackNormalizer) generate(ctx context.Context, t InterviewType, questions []Question, responses []UserResponse) (*FeedbackReport, FeedbackOutcome) {
	if n.gen == nil {
		n.log.Warn("Feedback generation degraded", zap.String("type", string(t)), zap.String("reason", "no text generator configured"))
		return FallbackReport(t), OutcomeFallback
	}

	text, err := n.gen.Complete(ctx, BuildFeedbackPrompt(t, questions, responses))
	if err != nil {
		n.log.Warn("Feedback generation degraded", zap.String("type", string(t)), zap.Error(err))
		return FallbackReport(t), OutcomeFallback
	}

	report, err := decodeFeedback(t, stripCodeFence(text))
	if err == nil {
		return report, OutcomeDirect
	}
	n.log.Debug("Feedback is not plain json, trying extraction", zap.Error(err))

	if block, ok := extractJSONObject(text); ok {
		report, err = decodeFeedback(t, block)
		if err == nil {
			return report, OutcomeExtracted
		}
	}

	n.log.Warn("Feedback generation degraded",
		zap.String("type", string(t)),
		zap.String("reason", "unparsable output"),
		zap.Error(err),
		zap.Int("outputLength", len(text)),
	)
	return FallbackReport(t), OutcomeFallback
}

const feedbackPromptTemplate = `You are an expert interview coach analyzing a %s interview.

Please analyze the following interview questions and responses:
%s

Based on these responses, provide a comprehensive evaluation with the following:

1. An overall score from 0-100
2. A confidence score from 0-100
3. An enthusiasm score from 0-20
4. A communication score from 0-20
5. A self-awareness score from 0-20
6. A success rate (likelihood of passing similar interviews) from 0-100
7. 3-5 key strengths demonstrated in the responses
8. 3-5 areas for improvement
9. A brief summary paragraph of the overall performance

%s

Return your analysis as a JSON object with this structure:
{
  "score": number,
  "confidenceScore": number,
  "enthusiasmScore": number,
  "communicationScore": number,
  "selfAwarenessScore": number,
  "successRate": number,
  "feedback": {
    "strengths": [string, string, ...],
    "improvements": [string, string, ...]
  },
  "metrics": {
%s
  },
  "tips": [string, string, ...],
  "summary": "A paragraph summarizing the performance"
}

Return ONLY the JSON object, no markdown, no explanation.`

var typeFocus = map[InterviewType]struct {
	subject string
	labels  []string
	tipsFor string
}{
	TypeJob: {
		subject: "job interview",
		labels:  []string{"Technical knowledge", "Problem-solving ability", "Cultural fit", "Leadership potential", "Adaptability"},
		tipsFor: "improving job interview performance",
	},
	TypeSales: {
		subject: "sales call",
		labels:  []string{"Product knowledge", "Objection handling", "Closing ability", "Relationship building", "Value proposition clarity"},
		tipsFor: "improving sales call performance",
	},
	TypeEnglish: {
		subject: "English practice",
		labels:  []string{"Grammar accuracy", "Vocabulary range", "Pronunciation", "Fluency", "Comprehension"},
		tipsFor: "improving English speaking skills",
	},
}

type promptPair struct {
	Question string `json:"question"`
	Response string `json:"response"`
}

func BuildFeedbackPrompt(t InterviewType, questions []Question, responses []UserResponse) string {
	byID := make(map[string]string, len(responses))
	for _, r := range responses {
		if _, ok := byID[r.QuestionID]; !ok {
			byID[r.QuestionID] = r.Response
		}
	}
	pairs := make([]promptPair, len(questions))
	for i, q := range questions {
		resp, ok := byID[q.ID]
		if !ok || strings.TrimSpace(resp) == "" {
			resp = "No response provided"
		}
		pairs[i] = promptPair{Question: q.Text, Response: resp}
	}
	pairsJSON, _ := json.MarshalIndent(pairs, "", "  ")

	focus := typeFocus[t]
	var b strings.Builder
	fmt.Fprintf(&b, "For this %s, also evaluate:\n", focus.subject)
	for i, label := range focus.labels {
		fmt.Fprintf(&b, "%d. %s (scale 0-20)\n", i+1, label)
	}
	b.WriteString("\nInclude these metrics in your JSON response under a \"metrics\" object.\n\n")
	fmt.Fprintf(&b, "Also provide 5-7 specific tips for %s.", focus.tipsFor)

	keys := typeMetricKeys[t]
	metricLines := make([]string, len(keys))
	for i, k := range keys {
		sep := ","
		if i == len(keys)-1 {
			sep = ""
		}
		metricLines[i] = fmt.Sprintf("    %q: number%s", k, sep)
	}

	return fmt.Sprintf(feedbackPromptTemplate, t, pairsJSON, b.String(), strings.Join(metricLines, "\n"))
}

type rawFeedback struct {
	Score              *float64 `json:"score"`
	ConfidenceScore    *float64 `json:"confidenceScore"`
	EnthusiasmScore    *float64 `json:"enthusiasmScore"`
	CommunicationScore *float64 `json:"communicationScore"`
	SelfAwarenessScore *float64 `json:"selfAwarenessScore"`
	SuccessRate        *float64 `json:"successRate"`
	Feedback           struct {
		Strengths    []string `json:"strengths"`
		Improvements []string `json:"improvements"`
	} `json:"feedback"`
	Metrics map[string]float64 `json:"metrics"`
	Tips    []string           `json:"tips"`
	Summary string             `json:"summary"`
}

// decodeFeedback 解析并归一化：数值取整并截断到区间，缺失项用默认值补齐
func decodeFeedback(t InterviewType, text string) (*FeedbackReport, error) {
	var raw rawFeedback
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, err
	}
	if raw.Score == nil {
		return nil, errNoScore
	}

	def := FallbackReport(t)
	r := &FeedbackReport{
		Score:              clampScore(raw.Score, 100, def.Score),
		ConfidenceScore:    clampScore(raw.ConfidenceScore, 100, def.ConfidenceScore),
		EnthusiasmScore:    clampScore(raw.EnthusiasmScore, 20, def.EnthusiasmScore),
		CommunicationScore: clampScore(raw.CommunicationScore, 20, def.CommunicationScore),
		SelfAwarenessScore: clampScore(raw.SelfAwarenessScore, 20, def.SelfAwarenessScore),
	}

	derived := float64(r.Score) * successRateFactor
	r.SuccessRate = clampScore(raw.SuccessRate, 100, clampScore(&derived, 100, def.SuccessRate))

	r.Metrics = make(map[string]int, len(typeMetricKeys[t]))
	for _, k := range typeMetricKeys[t] {
		if v, ok := raw.Metrics[k]; ok {
			r.Metrics[k] = clampScore(&v, 20, def.Metrics[k])
		} else {
			r.Metrics[k] = def.Metrics[k]
		}
	}

	r.Feedback.Strengths = fitList(raw.Feedback.Strengths, def.Feedback.Strengths, minListItems, maxListItems)
	r.Feedback.Improvements = fitList(raw.Feedback.Improvements, def.Feedback.Improvements, minListItems, maxListItems)
	r.Tips = fitList(raw.Tips, def.Tips, minTips, maxTips)

	r.Summary = strings.TrimSpace(raw.Summary)
	if r.Summary == "" {
		r.Summary = def.Summary
	}
	return r, nil
}

func clampScore(v *float64, max int, def int) int {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return def
	}
	n := int(math.Round(*v))
	if n < 0 {
		return 0
	}
	if n > max {
		return max
	}
	return n
}

// fitList 去掉空项，不足 min 时用默认文本补齐，超过 max 时截断
func fitList(items, defaults []string, min, max int) []string {
	out := make([]string, 0, max)
	seen := make(map[string]bool)
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if len(out) == max {
			return out
		}
	}
	for _, s := range defaults {
		if len(out) >= min {
			break
		}
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func stripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// extractJSONObject 返回第一个括号配平的 {...} 片段，忽略字符串内的括号
func extractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	for start >= 0 {
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(text); i++ {
			c := text[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return text[start : i+1], true
				}
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}
