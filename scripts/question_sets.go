// 按面试配置输出选出的题目，用于核对题库改动
//
// 用法: go run scripts/question_sets.go -type job -subtype technical -tech react,node -count 12

package main

import (
	"flag"
	"log"
	"mock_interview_backend/internal/interview"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type questionSet struct {
	Config    interview.SessionConfig `yaml:"config"`
	Pool      int                     `yaml:"pool"`
	Questions []interview.Question    `yaml:"questions"`
}

func main() {
	typ := flag.String("type", "job", "面试类型 job|sales|english")
	subType := flag.String("subtype", "", "job 子类型 technical|behavioral|mixed")
	techs := flag.String("tech", "", "技术栈，逗号分隔")
	level := flag.String("level", "", "english 等级 beginner|intermediate|advanced")
	count := flag.Int("count", 10, "题目数量 3-20")
	all := flag.Bool("all", false, "输出所有类型的默认题目")
	flag.Parse()

	var configs []interview.SessionConfig
	if *all {
		for _, t := range []interview.InterviewType{interview.TypeJob, interview.TypeSales, interview.TypeEnglish} {
			configs = append(configs, interview.SessionConfig{Type: t, QuestionCount: interview.MaxQuestionCount, Difficulty: interview.DifficultyMedium})
		}
	} else {
		cfg := interview.SessionConfig{
			Type:          interview.InterviewType(*typ),
			SubType:       interview.SubType(*subType),
			Level:         interview.Level(*level),
			QuestionCount: *count,
			Difficulty:    interview.DifficultyMedium,
		}
		if *techs != "" {
			cfg.Technologies = strings.Split(*techs, ",")
		}
		configs = append(configs, cfg)
	}

	bank := interview.DefaultBank()
	sets := make([]questionSet, 0, len(configs))
	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			log.Fatalf("配置无效: %v", err)
		}
		qs, err := bank.Select(cfg)
		if err != nil {
			log.Fatalf("选题失败: %v", err)
		}
		sets = append(sets, questionSet{Config: cfg, Pool: bank.PoolSize(cfg), Questions: qs})
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	if err := enc.Encode(sets); err != nil {
		log.Fatalf("输出失败: %v", err)
	}
}
