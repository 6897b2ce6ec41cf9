package book

import (
	apperrors "github.com/xiebiao/bookcatalog/pkg/errors"
)

// 图书领域错误定义
var (
	// ErrBookNotFound 图书不存在
	ErrBookNotFound = apperrors.New(apperrors.ErrCodeBookNotFound, "图书不存在")

	// ErrISBNDuplicate ISBN已存在
	ErrISBNDuplicate = apperrors.New(apperrors.ErrCodeISBNDuplicate, "ISBN号已存在")

	// ErrInvalidPrice 原价为0或负数
	ErrInvalidPrice = apperrors.New(apperrors.ErrCodeInvalidParams, "原价必须大于0")

	// ErrInvalidDiscount 折扣超出范围
	ErrInvalidDiscount = apperrors.New(apperrors.ErrCodeInvalidParams, "折扣必须在0-100之间")

	ErrTitleRequired    = apperrors.New(apperrors.ErrCodeInvalidParams, "书名不能为空")
	ErrAuthorRequired   = apperrors.New(apperrors.ErrCodeInvalidParams, "作者不能为空")
	ErrInvalidCoverType = apperrors.New(apperrors.ErrCodeInvalidParams, "封面类型不正确")

	// ErrInvalidISBN ISBN格式不正确
	ErrInvalidISBN = apperrors.New(apperrors.ErrCodeInvalidParams, "ISBN格式不正确")

	// ErrInvalidReference 引用的作者/出版社/折扣组/分类不存在
	ErrInvalidReference = apperrors.New(apperrors.ErrCodeInvalidParams, "关联的作者、出版社、折扣组或分类不存在")
)
