package repository

import (
	"context"
	"time"

	"github.com/apk-analysis/apk-inspector-go/internal/domain"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReportRepository APK 解析报告 Repository
type ReportRepository interface {
	Create(ctx context.Context, report *domain.ApkReport) error
	// Upsert 按 sha256 插入或更新，返回后 report.ID 为已存储记录的 ID
	Upsert(ctx context.Context, report *domain.ApkReport) error
	FindByID(ctx context.Context, id string) (*domain.ApkReport, error)
	FindBySHA256(ctx context.Context, sha256 string) (*domain.ApkReport, error)
	// List 分页查询，search 模糊匹配包名和文件名
	List(ctx context.Context, page int, pageSize int, search string) ([]*domain.ApkReport, int64, error)
	Delete(ctx context.Context, id string) error
	// CountByRiskLevel 各风险等级的报告数量
	CountByRiskLevel(ctx context.Context) (map[string]int64, int64, error)
}

type reportRepo struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewReportRepository 创建报告 Repository
func NewReportRepository(db *gorm.DB, logger *logrus.Logger) ReportRepository {
	return &reportRepo{
		db:     db,
		logger: logger,
	}
}

func (r *reportRepo) Create(ctx context.Context, report *domain.ApkReport) error {
	report.CreatedAt = time.Now().UTC()
	numberPermissions(report)
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *reportRepo) Upsert(ctx context.Context, report *domain.ApkReport) error {
	permissions := report.Permissions
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Omit("Permissions").
			Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "sha256"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"file_name", "package_name", "version_name", "version_code",
					"min_sdk", "target_sdk", "main_activity",
					"md5", "sha1", "file_size", "entry_count",
					"permission_count", "dangerous_count", "risk_level",
					"signer_issuer", "signer_subject", "cert_expired",
					"source", "has_icon", "packer_name", "duration_ms", "info_json", "updated_at",
				}),
			}).
			Create(report).Error
		if err != nil {
			return err
		}

		// 冲突时保留原记录的 ID
		var stored domain.ApkReport
		if err := tx.Select("id", "created_at").Where("sha256 = ?", report.SHA256).First(&stored).Error; err != nil {
			return err
		}
		report.ID = stored.ID
		report.CreatedAt = stored.CreatedAt

		if err := tx.Where("report_id = ?", report.ID).Delete(&domain.ReportPermission{}).Error; err != nil {
			return err
		}

		report.Permissions = permissions
		numberPermissions(report)
		if len(report.Permissions) == 0 {
			return nil
		}
		return tx.Create(&report.Permissions).Error
	})

	if err != nil {
		r.logger.WithError(err).WithField("sha256", report.SHA256).Error("Report upsert failed")
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"report_id":    report.ID,
		"package_name": report.PackageName,
	}).Debug("Report upserted")
	return nil
}

// numberPermissions 补齐权限的外键和顺序
func numberPermissions(report *domain.ApkReport) {
	for i := range report.Permissions {
		report.Permissions[i].ID = 0
		report.Permissions[i].ReportID = report.ID
		report.Permissions[i].Position = i
	}
}

func (r *reportRepo) FindByID(ctx context.Context, id string) (*domain.ApkReport, error) {
	var report domain.ApkReport
	err := r.db.WithContext(ctx).
		Preload("Permissions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&report, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *reportRepo) FindBySHA256(ctx context.Context, sha256 string) (*domain.ApkReport, error) {
	var report domain.ApkReport
	err := r.db.WithContext(ctx).Where("sha256 = ?", sha256).First(&report).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *reportRepo) List(ctx context.Context, page int, pageSize int, search string) ([]*domain.ApkReport, int64, error) {
	var reports []*domain.ApkReport
	var total int64

	baseQuery := func() *gorm.DB {
		query := r.db.WithContext(ctx).Model(&domain.ApkReport{})
		if search != "" {
			searchPattern := "%" + search + "%"
			query = query.Where("package_name LIKE ? OR file_name LIKE ?", searchPattern, searchPattern)
		}
		return query
	}

	if err := baseQuery().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 列表不返回完整 JSON
	offset := (page - 1) * pageSize
	err := baseQuery().
		Omit("info_json").
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&reports).Error

	return reports, total, err
}

func (r *reportRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("report_id = ?", id).Delete(&domain.ReportPermission{})
		if result.Error != nil {
			return result.Error
		}
		r.logger.WithFields(logrus.Fields{"report_id": id, "deleted": result.RowsAffected}).Debug("Deleted report permissions")

		result = tx.Where("id = ?", id).Delete(&domain.ApkReport{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		r.logger.WithField("report_id", id).Info("Report deleted")
		return nil
	})
}

func (r *reportRepo) CountByRiskLevel(ctx context.Context) (map[string]int64, int64, error) {
	type RiskCount struct {
		RiskLevel string
		Count     int64
	}

	var results []RiskCount
	err := r.db.WithContext(ctx).
		Model(&domain.ApkReport{}).
		Select("risk_level, COUNT(*) as count").
		Group("risk_level").
		Scan(&results).Error
	if err != nil {
		r.logger.WithError(err).Error("Failed to count reports by risk level")
		return nil, 0, err
	}

	counts := map[string]int64{
		"LOW":    0,
		"MEDIUM": 0,
		"HIGH":   0,
	}

	var total int64
	for _, rc := range results {
		counts[rc.RiskLevel] = rc.Count
		total += rc.Count
	}

	return counts, total, nil
}
