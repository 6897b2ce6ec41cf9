package response

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "github.com/xiebiao/bookcatalog/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var r Response
	if err := json.Unmarshal(w.Body.Bytes(), &r); err != nil {
		t.Fatalf("响应不是合法JSON: %v", err)
	}
	return r
}

func TestError_HidesInternalError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/", nil)

	Error(c, errors.New("dial tcp 10.0.0.1:3306: connection refused"))

	r := decode(t, w)
	if r.Code != apperrors.ErrCodeInternal {
		t.Errorf("期望错误码%d, 实际%d", apperrors.ErrCodeInternal, r.Code)
	}
	if r.Message != "系统内部错误" {
		t.Errorf("内部错误信息不应返回给客户端: %s", r.Message)
	}
}

func TestError_BusinessError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/", nil)

	Error(c, apperrors.ErrForbidden)

	r := decode(t, w)
	if r.Code != apperrors.ErrCodeForbidden || r.Message != "无权限访问" {
		t.Errorf("业务错误响应不正确: %+v", r)
	}
}

func TestNewPageData(t *testing.T) {
	p := NewPageData([]int{1, 2}, 41, 1, 20)
	if p.TotalPages != 3 {
		t.Errorf("期望3页, 实际%d", p.TotalPages)
	}
	if NewPageData(nil, 0, 1, 0).TotalPages != 0 {
		t.Error("pageSize为0时总页数应为0")
	}
}
