package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mock_interview_backend/internal/interview"
	"mock_interview_backend/internal/model"
	"mock_interview_backend/internal/util"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const defaultReportCacheTTL = 24 * time.Hour

type InterviewRepository struct {
	DB       *gorm.DB
	Redis    *redis.Client
	CacheTTL time.Duration
}

func NewInterviewRepository(db *gorm.DB, rdb *redis.Client, cacheTTL time.Duration) *InterviewRepository {
	if cacheTTL <= 0 {
		cacheTTL = defaultReportCacheTTL
	}
	return &InterviewRepository{DB: db, Redis: rdb, CacheTTL: cacheTTL}
}

func reportCacheKey(id string) string {
	return fmt.Sprintf("interview:report:%s", id)
}

func (r *InterviewRepository) Create(ctx context.Context, rec *model.InterviewSession) error {
	return r.DB.WithContext(ctx).Create(rec).Error
}

func (r *InterviewRepository) FindByID(ctx context.Context, id string) (*model.InterviewSession, error) {
	var rec model.InterviewSession
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrInterviewNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListByUser 按创建时间倒序
func (r *InterviewRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]model.InterviewSession, error) {
	var list []model.InterviewSession
	q := r.DB.WithContext(ctx).
		Omit("report", "responses").
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&list).Error
	return list, err
}

func (r *InterviewRepository) MarkInProgress(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Model(&model.InterviewSession{}).
		Where("id = ? AND status = ?", id, model.InterviewScheduled).
		Update("status", model.InterviewInProgress).Error
}

// MarkScheduled 通话出错退回 INACTIVE 后，记录恢复为可重新开始
func (r *InterviewRepository) MarkScheduled(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Model(&model.InterviewSession{}).
		Where("id = ? AND status = ?", id, model.InterviewInProgress).
		Update("status", model.InterviewScheduled).Error
}

// WriteSessionResults 写入报告与回答，成功后刷新报告缓存
func (r *InterviewRepository) WriteSessionResults(ctx context.Context, sessionID string, report *interview.FeedbackReport, responses []interview.UserResponse) error {
	rec := &model.InterviewSession{}
	if err := rec.SetResults(report, responses, time.Now()); err != nil {
		return err
	}

	res := r.DB.WithContext(ctx).Model(&model.InterviewSession{}).
		Where("id = ?", sessionID).
		Updates(map[string]interface{}{
			"score":                rec.Score,
			"confidence_score":     rec.ConfidenceScore,
			"enthusiasm_score":     rec.EnthusiasmScore,
			"communication_score":  rec.CommunicationScore,
			"self_awareness_score": rec.SelfAwarenessScore,
			"success_rate":         rec.SuccessRate,
			"report":               rec.Report,
			"responses":            rec.Responses,
			"status":               rec.Status,
			"completed_at":         rec.CompletedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrInterviewNotFound
	}

	// 缓存失败不影响落库结果
	if r.Redis != nil {
		r.Redis.Set(ctx, reportCacheKey(sessionID), []byte(rec.Report), r.CacheTTL)
	}
	return nil
}

// FindReport 先读缓存，未命中时回落到数据库并回填
func (r *InterviewRepository) FindReport(ctx context.Context, id string) (*interview.FeedbackReport, error) {
	if r.Redis != nil {
		raw, err := r.Redis.Get(ctx, reportCacheKey(id)).Bytes()
		if err == nil {
			var report interview.FeedbackReport
			if json.Unmarshal(raw, &report) == nil {
				return &report, nil
			}
		}
	}

	rec, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	report, err := rec.FeedbackReport()
	if err != nil || report == nil {
		return report, err
	}
	if r.Redis != nil {
		r.Redis.Set(ctx, reportCacheKey(id), []byte(rec.Report), r.CacheTTL)
	}
	return report, nil
}
