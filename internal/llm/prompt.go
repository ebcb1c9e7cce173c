package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/recipeai/recipe_video_server/internal/model"
)

// recipePrompt 固定的食谱提取指令，要求模型只回传 JSON
const recipePrompt = `分析這些烹飪影片畫面，提取完整食譜資訊。請用繁體中文輸出 JSON：

{
  "name": "菜名",
  "description": "簡短描述",
  "ingredients": [
    {"name": "食材名稱", "amount": "數量", "unit": "單位"}
  ],
  "steps": [
    {
      "step_number": 1,
      "description": "步驟說明",
      "duration_minutes": 5,
      "temperature": "溫度（如適用）"
    }
  ],
  "servings": 2,
  "prep_time": 10,
  "cook_time": 20,
  "tags": ["料理類型", "烹飪方式", "難度等級"],
  "completeness": "complete"
}

要求：
1. 食譜名稱必須是繁體中文
2. 食材必須包含名稱和份量，如果畫面中沒有明確顯示，請標記為 "適量"
3. 步驟必須按順序排列，包含關鍵的時間和溫度資訊
4. 如果資訊不完整（例如缺少步驟或食材），將 completeness 設為 "incomplete"
5. 標籤請從以下分類選擇：中式、日式、韓式、泰式、西式、快炒、燉煮、炸物、烘焙、甜點、簡易、進階

只回傳 JSON，不要其他說明文字。`

// ParseRecipeResponse 从模型回复中解析食谱 JSON。
// 模型有时会把 JSON 包在 markdown 代码块里，先剥掉围栏再解析。
func ParseRecipeResponse(text string) (*model.Recipe, error) {
	cleaned := strings.TrimSpace(text)

	// 围栏可能出现在说明文字中间，按第一个代码块截取
	if idx := strings.Index(cleaned, "```json"); idx >= 0 {
		cleaned = cleaned[idx+len("```json"):]
		if end := strings.Index(cleaned, "```"); end >= 0 {
			cleaned = cleaned[:end]
		}
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = cleaned[len("```"):]
		if end := strings.Index(cleaned, "```"); end >= 0 {
			cleaned = cleaned[:end]
		}
	}
	cleaned = strings.TrimSpace(cleaned)

	var recipe model.Recipe
	if err := json.Unmarshal([]byte(cleaned), &recipe); err != nil {
		snippet := cleaned
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, fmt.Errorf("invalid JSON response: %w, text: %s", err, snippet)
	}

	if err := recipe.Validate(); err != nil {
		return nil, err
	}

	return &recipe, nil
}
