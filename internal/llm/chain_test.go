package llm

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipeai/recipe_video_server/config"
	"github.com/recipeai/recipe_video_server/internal/model"
)

// fakeProvider 可编程的提供商替身
type fakeProvider struct {
	name    string
	recipe  *model.Recipe
	err     error
	calls   int
	lastKey string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Complete(_ context.Context, _ []model.Frame, apiKey string) (*model.Recipe, error) {
	f.calls++
	f.lastKey = apiKey
	if f.err != nil {
		return nil, f.err
	}
	return f.recipe, nil
}

func newTestSpec(t *testing.T, p VisionProvider, keys ...string) ProviderSpec {
	t.Helper()
	rotator, err := NewKeyRotator(keys)
	require.NoError(t, err)
	return ProviderSpec{Provider: p, Rotator: rotator}
}

func TestNewChain(t *testing.T) {
	t.Run("builds in config order", func(t *testing.T) {
		chain, err := NewChain([]config.ProviderConfig{
			{Name: "gemini", Model: "gemini-2.0-flash", APIKeys: []string{"g1"}},
			{Name: "grok", Model: "grok-2-vision", APIKeys: []string{"x1"}},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, chain.Size())
	})

	t.Run("keyless provider skipped", func(t *testing.T) {
		chain, err := NewChain([]config.ProviderConfig{
			{Name: "gemini", Model: "gemini-2.0-flash"},
			{Name: "openai", Model: "gpt-4o", APIKeys: []string{"o1"}},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, chain.Size())
	})

	t.Run("empty chain rejected", func(t *testing.T) {
		_, err := NewChain([]config.ProviderConfig{
			{Name: "gemini", Model: "gemini-2.0-flash"},
		})
		assert.Error(t, err)
	})

	t.Run("unknown provider rejected", func(t *testing.T) {
		_, err := NewChain([]config.ProviderConfig{
			{Name: "llava", Model: "llava-13b", APIKeys: []string{"k"}},
		})
		assert.Error(t, err)
	})
}

func TestChain_Invoke_FirstSuccess(t *testing.T) {
	first := &fakeProvider{name: "gemini", recipe: &model.Recipe{Name: "番茄炒蛋"}}
	second := &fakeProvider{name: "grok", recipe: &model.Recipe{Name: "不该到这里"}}

	chain, err := NewChainFromSpecs([]ProviderSpec{
		newTestSpec(t, first, "g1"),
		newTestSpec(t, second, "x1"),
	})
	require.NoError(t, err)

	result, err := chain.Invoke(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, "gemini", result.ProviderUsed)
	assert.Equal(t, 0, result.CredentialIndex)
	assert.Equal(t, 1, result.AttemptCount)
	assert.Equal(t, "番茄炒蛋", result.Recipe.Name)
	// 第一个成功后不再往下走
	assert.Equal(t, 0, second.calls)
}

func TestChain_Invoke_Fallback(t *testing.T) {
	first := &fakeProvider{name: "gemini", err: fmt.Errorf("quota exceeded")}
	second := &fakeProvider{name: "grok", err: fmt.Errorf("timeout")}
	third := &fakeProvider{name: "openai", recipe: &model.Recipe{Name: "紅燒肉"}}

	chain, err := NewChainFromSpecs([]ProviderSpec{
		newTestSpec(t, first, "g1"),
		newTestSpec(t, second, "x1"),
		newTestSpec(t, third, "o1"),
	})
	require.NoError(t, err)

	result, err := chain.Invoke(context.Background(), nil)
	require.NoError(t, err)

	// 前两个失败，第三个成功，尝试次数 = 3
	assert.Equal(t, "openai", result.ProviderUsed)
	assert.Equal(t, 3, result.AttemptCount)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Equal(t, 1, third.calls)
}

func TestChain_Invoke_Exhausted(t *testing.T) {
	first := &fakeProvider{name: "gemini", err: fmt.Errorf("quota exceeded")}
	second := &fakeProvider{name: "grok", err: fmt.Errorf("bad gateway")}

	chain, err := NewChainFromSpecs([]ProviderSpec{
		newTestSpec(t, first, "g1"),
		newTestSpec(t, second, "x1"),
	})
	require.NoError(t, err)

	_, err = chain.Invoke(context.Background(), nil)
	require.Error(t, err)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Len(t, exhausted.Failures, 2)

	// 失败记录按优先级顺序排列
	assert.Equal(t, "gemini", exhausted.Failures[0].Provider)
	assert.Equal(t, "grok", exhausted.Failures[1].Provider)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Contains(t, err.Error(), "bad gateway")
}

func TestChain_Invoke_KeyRotation(t *testing.T) {
	p := &fakeProvider{name: "gemini", recipe: &model.Recipe{Name: "炒飯"}}
	chain, err := NewChainFromSpecs([]ProviderSpec{
		newTestSpec(t, p, "g1", "g2"),
	})
	require.NoError(t, err)

	// 每次调用推进轮换环
	result, err := chain.Invoke(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "g1", p.lastKey)
	assert.Equal(t, 0, result.CredentialIndex)

	result, err = chain.Invoke(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "g2", p.lastKey)
	assert.Equal(t, 1, result.CredentialIndex)
}
