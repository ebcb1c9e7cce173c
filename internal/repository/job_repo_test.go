package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipeai/recipe_video_server/internal/model"
	"github.com/recipeai/recipe_video_server/internal/testutil"
)

func TestJobRepository_GetByID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	created := testutil.TestJob(t, db, model.JobStatusPending)

	job, err := repo.GetByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.VideoURL, job.VideoURL)

	_, err = repo.GetByID(99999)
	assert.Error(t, err)
}

func TestJobRepository_ListFailed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)

	// 混合状态，只有 failed 会被拉出来
	testutil.TestJob(t, db, model.JobStatusPending)
	testutil.TestJob(t, db, model.JobStatusSucceeded)
	old := testutil.TestJob(t, db, model.JobStatusFailed)
	recent := testutil.TestJob(t, db, model.JobStatusFailed)

	// 拉开 created_at 验证排序
	db.Model(old).Update("created_at", time.Now().Add(-2*time.Hour))
	db.Model(recent).Update("created_at", time.Now().Add(-time.Minute))

	jobs, err := repo.ListFailed(10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, old.ID, jobs[0].ID, "oldest failure comes first")
	assert.Equal(t, recent.ID, jobs[1].ID)

	jobs, err = repo.ListFailed(1)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestJobRepository_MarkProcessing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	job := testutil.TestJob(t, db, model.JobStatusFailed)

	require.NoError(t, repo.MarkProcessing(job.ID))

	updated, err := repo.GetByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusProcessing, updated.Status)
	assert.NotNil(t, updated.StartedAt)
}

func TestJobRepository_SubmitResult(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	job := testutil.TestJob(t, db, model.JobStatusProcessing,
		testutil.WithErrorMessage("analysis_failed", "上次失败的残留"))

	result := &model.AnalysisResult{
		Recipe:         testutil.SampleRecipe("番茄炒蛋"),
		ProviderUsed:   "gemini",
		AttemptCount:   2,
		ElapsedSeconds: 42.5,
	}
	require.NoError(t, repo.SubmitResult(job.ID, result))

	updated, err := repo.GetByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSucceeded, updated.Status)
	assert.NotNil(t, updated.CompletedAt)
	assert.Equal(t, 42, updated.ElapsedSeconds)

	// 旧的失败信息被清掉
	assert.Empty(t, updated.ErrorKind)
	assert.Empty(t, updated.ErrorMessage)

	// 结果 JSON 往返完整
	require.NotNil(t, updated.Result.AnalysisResult)
	assert.Equal(t, "番茄炒蛋", updated.Result.Recipe.Name)
	assert.Equal(t, "gemini", updated.Result.ProviderUsed)
}

func TestJobRepository_SubmitResult_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	job := testutil.TestJob(t, db, model.JobStatusProcessing)

	first := &model.AnalysisResult{Recipe: testutil.SampleRecipe("番茄炒蛋"), ProviderUsed: "gemini"}
	require.NoError(t, repo.SubmitResult(job.ID, first))

	// 重复提交不报错，也不覆盖已有结果
	second := &model.AnalysisResult{Recipe: testutil.SampleRecipe("紅燒肉"), ProviderUsed: "openai"}
	require.NoError(t, repo.SubmitResult(job.ID, second))

	updated, err := repo.GetByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, "番茄炒蛋", updated.Result.Recipe.Name)
}

func TestJobRepository_SubmitFailure(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	job := testutil.TestJob(t, db, model.JobStatusProcessing)

	require.NoError(t, repo.SubmitFailure(job.ID, "acquisition_failed", "影片不存在或已被删除"))

	updated, err := repo.GetByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, updated.Status)
	assert.Equal(t, "acquisition_failed", updated.ErrorKind)
	assert.Equal(t, "影片不存在或已被删除", updated.ErrorMessage)
}

func TestJobRepository_SubmitFailure_DoesNotOverwriteSuccess(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewJobRepository(db)
	job := testutil.TestJob(t, db, model.JobStatusProcessing)

	result := &model.AnalysisResult{Recipe: testutil.SampleRecipe("番茄炒蛋"), ProviderUsed: "gemini"}
	require.NoError(t, repo.SubmitResult(job.ID, result))

	// 迟到的失败回写不能推翻成功终态
	require.NoError(t, repo.SubmitFailure(job.ID, "analysis_failed", "late failure"))

	updated, err := repo.GetByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSucceeded, updated.Status)
	assert.Empty(t, updated.ErrorKind)
}
