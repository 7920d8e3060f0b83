package interview

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed questions.yaml
var defaultBankYAML []byte

type TechnologyGroup struct {
	Name      string     `yaml:"name"`
	Questions []Question `yaml:"questions"`
}

// QuestionBank 题库，加载后只读
type QuestionBank struct {
	Base         []Question             `yaml:"base"`
	Job          map[SubType][]Question `yaml:"job"`
	Technologies []TechnologyGroup      `yaml:"technologies"`
	Sales        []Question             `yaml:"sales"`
	English      map[Level][]Question   `yaml:"english"`
}

var (
	defaultBank     *QuestionBank
	defaultBankOnce sync.Once
)

// DefaultBank 返回内嵌题库，题库文件非法时直接 panic
func DefaultBank() *QuestionBank {
	defaultBankOnce.Do(func() {
		bank, err := LoadBank(defaultBankYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded question bank: %v", err))
		}
		defaultBank = bank
	})
	return defaultBank
}

func LoadBank(data []byte) (*QuestionBank, error) {
	var bank QuestionBank
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return nil, fmt.Errorf("parse question bank: %w", err)
	}
	if err := bank.validate(); err != nil {
		return nil, err
	}
	return &bank, nil
}

func (b *QuestionBank) validate() error {
	if len(b.Base) == 0 {
		return fmt.Errorf("question bank: base list is empty")
	}
	for _, st := range []SubType{SubTypeTechnical, SubTypeBehavioral, SubTypeMixed} {
		if len(b.Job[st]) == 0 {
			return fmt.Errorf("question bank: job.%s is empty", st)
		}
	}
	if len(b.Sales) == 0 {
		return fmt.Errorf("question bank: sales list is empty")
	}
	for _, lv := range []Level{LevelBeginner, LevelIntermediate, LevelAdvanced} {
		if len(b.English[lv]) == 0 {
			return fmt.Errorf("question bank: english.%s is empty", lv)
		}
	}

	seen := make(map[string]string)
	check := func(block string, qs []Question) error {
		for i, q := range qs {
			if strings.TrimSpace(q.ID) == "" || strings.TrimSpace(q.Text) == "" {
				return fmt.Errorf("question bank: %s[%d] requires id and text", block, i)
			}
			if prev, ok := seen[q.ID]; ok {
				return fmt.Errorf("question bank: duplicate id %q in %s (first seen in %s)", q.ID, block, prev)
			}
			seen[q.ID] = block
		}
		return nil
	}

	if err := check("base", b.Base); err != nil {
		return err
	}
	for st, qs := range b.Job {
		if err := check("job."+string(st), qs); err != nil {
			return err
		}
	}
	for _, g := range b.Technologies {
		if g.Name == "" {
			return fmt.Errorf("question bank: technology group without name")
		}
		if err := check("technologies."+g.Name, g.Questions); err != nil {
			return err
		}
	}
	if err := check("sales", b.Sales); err != nil {
		return err
	}
	for lv, qs := range b.English {
		if err := check("english."+string(lv), qs); err != nil {
			return err
		}
	}
	return nil
}

// Select 按配置生成有序问题列表，结果截取前 questionCount 个
func (b *QuestionBank) Select(cfg SessionConfig) ([]Question, error) {
	var pool []Question

	switch cfg.Type {
	case TypeJob:
		pool = append(pool, b.Base...)
		switch cfg.SubType {
		case SubTypeTechnical:
			pool = append(pool, b.Job[SubTypeTechnical]...)
			if group, ok := b.technologyGroup(cfg); ok {
				pool = append(pool, group.Questions...)
			}
		case SubTypeBehavioral:
			pool = append(pool, b.Job[SubTypeBehavioral]...)
		default:
			pool = append(pool, b.Job[SubTypeMixed]...)
		}
	case TypeSales:
		pool = append(pool, b.Sales...)
	case TypeEnglish:
		pool = append(pool, b.English[cfg.EffectiveLevel()]...)
	default:
		return nil, &ConfigurationError{Field: "type", Reason: fmt.Sprintf("unsupported interview type %q", cfg.Type)}
	}

	n := cfg.QuestionCount
	if n < 0 {
		n = 0
	}
	if n > len(pool) {
		n = len(pool)
	}
	out := make([]Question, n)
	copy(out, pool[:n])
	return out, nil
}

// technologyGroup 按题库中的优先级顺序返回第一个命中的技术组
func (b *QuestionBank) technologyGroup(cfg SessionConfig) (TechnologyGroup, bool) {
	for _, g := range b.Technologies {
		if cfg.HasTechnology(g.Name) {
			return g, true
		}
	}
	return TechnologyGroup{}, false
}

// PoolSize 返回该配置下截断前的候选题数量
func (b *QuestionBank) PoolSize(cfg SessionConfig) int {
	full := cfg
	full.QuestionCount = 1 << 16
	qs, err := b.Select(full)
	if err != nil {
		return 0
	}
	return len(qs)
}

func Select(cfg SessionConfig) ([]Question, error) {
	return DefaultBank().Select(cfg)
}
