package oss

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectKeyFromURL(t *testing.T) {
	// CDN 域名和 bucket 直连两种 URL 形态都要能还原
	assert.Equal(t, "thumbnails/1700000000.jpg",
		ObjectKeyFromURL("https://cdn.example.com/thumbnails/1700000000.jpg"))
	assert.Equal(t, "thumbnails/1700000000.jpg",
		ObjectKeyFromURL("https://my-bucket.oss-cn-hangzhou.aliyuncs.com/thumbnails/1700000000.jpg"))

	// 不是 URL 或者没有路径部分的输入返回空串
	assert.Empty(t, ObjectKeyFromURL(""))
	assert.Empty(t, ObjectKeyFromURL("thumbnails/1.jpg"))
	assert.Empty(t, ObjectKeyFromURL("https://cdn.example.com"))
}

func TestGetContentType(t *testing.T) {
	assert.Equal(t, "image/jpeg", getContentType(".jpg"))
	assert.Equal(t, "image/jpeg", getContentType(".jpeg"))
	assert.Equal(t, "image/png", getContentType(".png"))
	assert.Equal(t, "image/webp", getContentType(".webp"))
	assert.Equal(t, "application/octet-stream", getContentType(".bin"))
}
