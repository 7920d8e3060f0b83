package repository

import (
	"context"
	"errors"
	"mock_interview_backend/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).First(&user, id).Error
	return &user, err
}

func (r *UserRepository) FindBySubject(ctx context.Context, subject string) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).Where("subject = ?", subject).First(&user).Error
	return &user, err
}

// FindOrCreate 按外部身份 subject 查找本地用户，不存在则创建。并发首次访问依赖唯一索引去重
func (r *UserRepository) FindOrCreate(ctx context.Context, subject, name, email string) (*model.User, error) {
	user, err := r.FindBySubject(ctx, subject)
	if err == nil {
		if (name != "" && user.Name != name) || (email != "" && user.Email != email) {
			updates := map[string]interface{}{}
			if name != "" {
				updates["name"] = name
				user.Name = name
			}
			if email != "" {
				updates["email"] = email
				user.Email = email
			}
			r.DB.WithContext(ctx).Model(user).Updates(updates)
		}
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = &model.User{Subject: subject, Name: name, Email: email, LastSeen: time.Now()}
	err = r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return r.FindBySubject(ctx, subject)
	}
	return user, nil
}

func (r *UserRepository) UpdateLastSeen(userID uint) error {
	return r.DB.Model(&model.User{}).
		Where("id = ?", userID).
		Update("last_seen", time.Now()).
		Error
}
