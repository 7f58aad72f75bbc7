package repository

import (
	"chat-widget-go/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ArchiveRepository 定义了对话事件归档的持久化操作。
type ArchiveRepository interface {
	// Create 写入一条归档记录，EventID 重复时忽略（消息可能被重复投递）。
	Create(exchange *model.ArchivedExchange) error
	FindByTranscript(transcriptID string) ([]model.ArchivedExchange, error)
	FindWithPagination(offset, limit int) ([]model.ArchivedExchange, int64, error)
}

type archiveRepository struct {
	db *gorm.DB
}

// NewArchiveRepository 创建一个新的 ArchiveRepository 实例。
func NewArchiveRepository(db *gorm.DB) ArchiveRepository {
	return &archiveRepository{db: db}
}

func (r *archiveRepository) Create(exchange *model.ArchivedExchange) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(exchange).Error
}

// FindByTranscript 按发生时间顺序返回某个对话的全部归档记录。
func (r *archiveRepository) FindByTranscript(transcriptID string) ([]model.ArchivedExchange, error) {
	var exchanges []model.ArchivedExchange
	err := r.db.Where("transcript_id = ?", transcriptID).Order("occurred_at asc, id asc").Find(&exchanges).Error
	return exchanges, err
}

// FindWithPagination 按时间倒序分页检索归档记录，返回记录和总数。
func (r *archiveRepository) FindWithPagination(offset, limit int) ([]model.ArchivedExchange, int64, error) {
	var exchanges []model.ArchivedExchange
	var total int64
	if err := r.db.Model(&model.ArchivedExchange{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := r.db.Order("occurred_at desc, id desc").Offset(offset).Limit(limit).Find(&exchanges).Error
	return exchanges, total, err
}
