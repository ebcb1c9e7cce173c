package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 错误码定义
const (
	CodeSuccess           = 0
	CodeParamError        = 1000
	CodeAcquisitionFailed = 2001
	CodeSamplingFailed    = 2002
	CodeAnalysisFailed    = 2003
	CodeServerError       = 5000
)

// 错误码对应的默认消息
var codeMessages = map[int]string{
	CodeSuccess:           "success",
	CodeParamError:        "参数错误",
	CodeAcquisitionFailed: "影片获取失败",
	CodeSamplingFailed:    "画面抽取失败",
	CodeAnalysisFailed:    "AI 分析失败",
	CodeServerError:       "服务器内部错误",
}

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	if message == "" {
		message = codeMessages[code]
	}
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// ParamError 参数错误
func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

// ServerError 服务器错误
func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}
