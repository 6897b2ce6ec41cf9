package mysql

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/xiebiao/bookcatalog/internal/infrastructure/config"
)

// NewDB 创建数据库连接
// 设计说明：
// 1. 使用GORM v2作为ORM框架
// 2. 配置连接池参数（MaxOpenConns、MaxIdleConns、ConnMaxLifetime）
// 3. 开发环境开启SQL日志，生产环境关闭
// 4. database.auto_migrate为true时自动迁移表结构
func NewDB(cfg *config.Config, log *slog.Logger) (*gorm.DB, error) {
	dsn := cfg.Database.DSN()

	logLevel := logger.Silent
	if cfg.Server.Mode == "debug" {
		logLevel = logger.Info // 开发环境打印SQL
	}

	db, err := gorm.Open(gormmysql.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true, // 1062 → gorm.ErrDuplicatedKey, 1451/1452 → gorm.ErrForeignKeyViolated
		NowFunc: func() time.Time {
			return time.Now()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取SQL DB失败: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("数据库连接测试失败: %w", err)
	}
	log.Info("数据库连接成功", "host", cfg.Database.Host, "db", cfg.Database.DBName)

	// 注意：生产环境应使用版本化的迁移脚本，不要依赖AutoMigrate
	if cfg.Database.AutoMigrate {
		if err := AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("数据库迁移失败: %w", err)
		}
		log.Info("数据库迁移完成")
	}

	return db, nil
}

// AutoMigrate 自动迁移表结构
// AutoMigrate只会创建表、添加字段，不会删除或修改现有字段
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UserModel{},
		&AuthorModel{},
		&PublisherModel{},
		&DiscountGroupModel{},
		&CategoryModel{},
		&BookModel{},
		&BookCategoryModel{},
		&UserBookRelationModel{},
	)
}

// =========================================
// GORM模型定义
// =========================================
// 金额统一使用decimal列（shopspring/decimal实现了Scanner/Valuer）
// 引用关系在仓储中显式维护，不声明外键约束：图书是软删除，外键会阻止作者等实体的物理删除

// UserModel 用户表
type UserModel struct {
	ID        uint           `gorm:"primaryKey"`
	Email     string         `gorm:"uniqueIndex;size:100;not null"`
	Password  string         `gorm:"size:255;not null"`
	Nickname  string         `gorm:"size:50;not null"`
	IsStaff   bool           `gorm:"not null;default:false;comment:是否管理员"`
	CreatedAt time.Time      `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (UserModel) TableName() string { return "users" }

// AuthorModel 作者表
type AuthorModel struct {
	ID         uint   `gorm:"primaryKey"`
	Name       string `gorm:"size:100;not null"`
	FamilyName string `gorm:"size:100"`
	About      string `gorm:"type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (AuthorModel) TableName() string { return "authors" }

// PublisherModel 出版社表
type PublisherModel struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:200;not null"`
	About     string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (PublisherModel) TableName() string { return "publishers" }

// DiscountGroupModel 折扣组表
type DiscountGroupModel struct {
	ID          uint            `gorm:"primaryKey"`
	Name        string          `gorm:"size:100;not null"`
	Discount    decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0;comment:折扣百分比"`
	Description string          `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (DiscountGroupModel) TableName() string { return "discount_groups" }

// CategoryModel 分类表
// book_count/book_average_price为派生字段
type CategoryModel struct {
	ID               uint                `gorm:"primaryKey"`
	Name             string              `gorm:"uniqueIndex;size:100;not null"`
	Description      string              `gorm:"type:text"`
	BookCount        int                 `gorm:"not null;default:0"`
	BookAveragePrice decimal.NullDecimal `gorm:"type:decimal(10,2)"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (CategoryModel) TableName() string { return "categories" }

// BookModel 图书表
// 索引设计：
// 1. uniqueIndex on ISBN（允许NULL，多本无ISBN的图书互不冲突）
// 2. index on title（用于搜索）
// 3. index on discount_group_id（折扣组变更时反查图书）
type BookModel struct {
	ID            uint    `gorm:"primaryKey"`
	Title         string  `gorm:"size:255;not null;index:idx_title"`
	TitleOriginal string  `gorm:"size:255"`
	YearPublished *int    `gorm:"comment:出版年份"`
	Description   string  `gorm:"type:text"`
	ISBN          *string `gorm:"uniqueIndex;size:20"`
	CoverType     *int    `gorm:"type:tinyint;comment:0精装 1平装"`

	AuthorID        uint  `gorm:"not null;index"`
	PublisherID     *uint `gorm:"index"`
	DiscountGroupID *uint `gorm:"index"`

	PriceOriginal decimal.NullDecimal `gorm:"type:decimal(10,2);comment:原价"`
	Discount      decimal.NullDecimal `gorm:"type:decimal(5,2);comment:自身折扣百分比"`
	DiscountTotal decimal.Decimal     `gorm:"type:decimal(5,2);not null;default:0;comment:派生-总折扣"`
	Price         decimal.NullDecimal `gorm:"type:decimal(10,2);index;comment:派生-售价"`

	CreatedAt time.Time      `gorm:"not null;index"`
	UpdatedAt time.Time      `gorm:"not null"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (BookModel) TableName() string { return "books" }

// BookCategoryModel 图书-分类关联表
type BookCategoryModel struct {
	BookID     uint `gorm:"primaryKey"`
	CategoryID uint `gorm:"primaryKey;index"`
}

func (BookCategoryModel) TableName() string { return "book_categories" }

// UserBookRelationModel 用户-图书关系表（书签、心愿单、评分）
type UserBookRelationModel struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;uniqueIndex:uk_user_book_type,priority:1"`
	BookID    uint   `gorm:"not null;uniqueIndex:uk_user_book_type,priority:2;index"`
	Type      string `gorm:"size:20;not null;uniqueIndex:uk_user_book_type,priority:3"`
	Value     *int
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (UserBookRelationModel) TableName() string { return "user_book_relations" }
