package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecipe_Validate(t *testing.T) {
	t.Run("complete recipe", func(t *testing.T) {
		r := &Recipe{
			Name:        "番茄炒蛋",
			Ingredients: []Ingredient{{Name: "雞蛋", Amount: "2"}},
			Steps:       []Step{{StepNumber: 1, Description: "打蛋"}},
		}
		require.NoError(t, r.Validate())
		assert.Equal(t, "complete", r.Completeness)
	})

	t.Run("missing name", func(t *testing.T) {
		r := &Recipe{
			Ingredients: []Ingredient{},
			Steps:       []Step{},
		}
		assert.Error(t, r.Validate())
	})

	t.Run("missing ingredients field", func(t *testing.T) {
		r := &Recipe{Name: "神秘料理", Steps: []Step{}}
		assert.Error(t, r.Validate())
	})

	t.Run("empty steps marked incomplete", func(t *testing.T) {
		r := &Recipe{
			Name:        "神秘料理",
			Ingredients: []Ingredient{{Name: "雞蛋", Amount: "1"}},
			Steps:       []Step{},
		}
		require.NoError(t, r.Validate())
		assert.Equal(t, "incomplete", r.Completeness)
	})

	t.Run("explicit completeness preserved", func(t *testing.T) {
		r := &Recipe{
			Name:         "神秘料理",
			Ingredients:  []Ingredient{{Name: "雞蛋", Amount: "1"}},
			Steps:        []Step{{StepNumber: 1, Description: "打蛋"}},
			Completeness: "incomplete",
		}
		require.NoError(t, r.Validate())
		assert.Equal(t, "incomplete", r.Completeness)
	})
}

func TestResultJSON_ValueScan(t *testing.T) {
	original := &AnalysisResult{
		Recipe:       &Recipe{Name: "紅燒肉", Ingredients: []Ingredient{}, Steps: []Step{}},
		ProviderUsed: "grok",
		AttemptCount: 2,
		VideoInfo:    VideoInfo{DurationSeconds: 321, FramesAnalyzed: 18},
	}

	value, err := ResultJSON{AnalysisResult: original}.Value()
	require.NoError(t, err)

	var decoded ResultJSON
	require.NoError(t, decoded.Scan(value))
	require.NotNil(t, decoded.AnalysisResult)
	assert.Equal(t, "紅燒肉", decoded.Recipe.Name)
	assert.Equal(t, "grok", decoded.ProviderUsed)
	assert.Equal(t, 18, decoded.VideoInfo.FramesAnalyzed)
}

func TestResultJSON_NilValue(t *testing.T) {
	value, err := ResultJSON{}.Value()
	require.NoError(t, err)
	assert.Nil(t, value)

	var decoded ResultJSON
	require.NoError(t, decoded.Scan(nil))
	assert.Nil(t, decoded.AnalysisResult)

	// JSON 序列化下行为与普通结构一致
	data, err := json.Marshal(AnalysisResult{Recipe: &Recipe{Name: "x"}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name":"x"`)
}
