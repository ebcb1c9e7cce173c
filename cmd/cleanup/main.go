package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/recipeai/recipe_video_server/config"
	"github.com/recipeai/recipe_video_server/internal/model"
	"github.com/recipeai/recipe_video_server/internal/pkg/oss"
)

var (
	dryRun       = flag.Bool("dry-run", true, "Dry run mode, don't actually delete anything")
	uploadExpire = flag.Int("upload-expire", 24, "Hours to keep uploaded source files")
	jobExpire    = flag.Int("job-expire", 30, "Days to keep finished job records")
	cleanUploads = flag.Bool("clean-uploads", true, "Clean expired upload files")
	cleanScratch = flag.Bool("clean-scratch", true, "Clean leftover scratch directories")
	cleanJobs    = flag.Bool("clean-jobs", false, "Prune old finished job records from the database")
)

func main() {
	flag.Parse()

	log.Println("🧹 Starting cleanup task...")
	log.Printf("Mode: dry-run=%v", *dryRun)

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	deletedSize := int64(0)
	deletedFiles := 0

	// 1. 清理过期的上传文件
	if *cleanUploads {
		log.Printf("\n📦 Cleaning expired upload files (older than %d hours)...", *uploadExpire)
		size, count := cleanExpiredUploads(cfg.Upload.TempDir, *uploadExpire, *dryRun)
		deletedSize += size
		deletedFiles += count
	}

	// 2. 清理残留的 scratch 目录（进程被杀时 defer 清理没跑到的）
	if *cleanScratch {
		log.Println("\n🗂  Cleaning leftover scratch directories...")
		size, count := cleanLeftoverScratch(*dryRun)
		deletedSize += size
		deletedFiles += count
	}

	// 3. 清理数据库里的陈旧任务记录（连同缩略图对象）
	if *cleanJobs {
		log.Printf("\n🗄  Pruning finished jobs older than %d days...", *jobExpire)
		db, err := connectDB(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}

		var ossClient *oss.Client
		if cfg.OSS.Endpoint != "" && cfg.OSS.AccessKeyID != "" {
			client, err := oss.NewClient(&cfg.OSS)
			if err != nil {
				log.Printf("Warning: failed to init OSS client, thumbnails will be kept: %v", err)
			} else {
				ossClient = client
			}
		}
		pruneOldJobs(db, ossClient, *jobExpire, *dryRun)
	}

	// 输出统计
	log.Println("\n" + strings.Repeat("=", 60))
	log.Println("📊 Cleanup Summary")
	log.Println(strings.Repeat("=", 60))
	log.Printf("Deleted files: %d", deletedFiles)
	log.Printf("Freed space: %s", formatSize(deletedSize))
	if *dryRun {
		log.Println("\n⚠️  DRY RUN MODE - Nothing was actually deleted")
		log.Println("   Run with -dry-run=false to actually delete")
	} else {
		log.Println("\n✅ Cleanup completed!")
	}
	log.Println(strings.Repeat("=", 60))
}

// cleanExpiredUploads 清理过期的上传文件。
// 正常情况下上传文件会随任务的 scratch 目录一起删除，
// 这里兜底处理请求没走到流水线的孤儿文件。
func cleanExpiredUploads(uploadDir string, expireHours int, dryRun bool) (int64, int) {
	expireTime := time.Now().Add(-time.Duration(expireHours) * time.Hour)
	var totalSize int64
	var count int

	entries, err := os.ReadDir(uploadDir)
	if err != nil {
		log.Printf("Failed to read upload dir: %v", err)
		return 0, 0
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(expireTime) {
			totalSize += info.Size()
			log.Printf("  - %s (%.2f MB, %s old)",
				entry.Name(),
				float64(info.Size())/1024/1024,
				time.Since(info.ModTime()).Round(time.Hour))

			if !dryRun {
				if err := os.Remove(filepath.Join(uploadDir, entry.Name())); err != nil {
					log.Printf("    ❌ Failed to delete: %v", err)
					continue
				}
			}
			count++
		}
	}

	log.Printf("Found %d expired upload files (total: %s)", count, formatSize(totalSize))
	return totalSize, count
}

// cleanLeftoverScratch 清理系统临时目录下残留的任务工作目录
func cleanLeftoverScratch(dryRun bool) (int64, int) {
	// 超过 2 小时的 scratch 目录不可能还有任务在用（任务超时上限远小于它）
	expireTime := time.Now().Add(-2 * time.Hour)
	var totalSize int64
	var count int

	matches, err := filepath.Glob(filepath.Join(os.TempDir(), "recipe_job_*"))
	if err != nil {
		log.Printf("Failed to glob scratch dirs: %v", err)
		return 0, 0
	}

	for _, dir := range matches {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}

		if info.ModTime().Before(expireTime) {
			size := getDirSize(dir)
			totalSize += size
			log.Printf("  - %s (%.2f MB, %s old)",
				filepath.Base(dir),
				float64(size)/1024/1024,
				time.Since(info.ModTime()).Round(time.Hour))

			if !dryRun {
				if err := os.RemoveAll(dir); err != nil {
					log.Printf("    ❌ Failed to delete: %v", err)
					continue
				}
			}
			count++
		}
	}

	log.Printf("Found %d leftover scratch directories (total: %s)", count, formatSize(totalSize))
	return totalSize, count
}

// pruneOldJobs 删除完结已久的任务记录，失败任务保留（主动模式还要重试）。
// 记录对应的缩略图对象一并删除，删不掉只记日志，记录照删。
func pruneOldJobs(db *gorm.DB, ossClient *oss.Client, keepDays int, dryRun bool) {
	expireTime := time.Now().Add(-time.Duration(keepDays) * 24 * time.Hour)

	var jobs []*model.AnalysisJob
	err := db.Where("status = ?", model.JobStatusSucceeded).
		Where("completed_at < ?", expireTime).
		Find(&jobs).Error
	if err != nil {
		log.Printf("Failed to list old jobs: %v", err)
		return
	}
	if len(jobs) == 0 {
		log.Println("No old job records found")
		return
	}

	if dryRun {
		log.Printf("Would delete %d job record(s)", len(jobs))
		return
	}

	ids := make([]int64, 0, len(jobs))
	for _, job := range jobs {
		ids = append(ids, job.ID)
		deleteThumbnail(ossClient, job)
	}

	result := db.Where("id IN ?", ids).Delete(&model.AnalysisJob{})
	if result.Error != nil {
		log.Printf("Failed to delete old jobs: %v", result.Error)
		return
	}
	log.Printf("Deleted %d job record(s)", result.RowsAffected)
}

// deleteThumbnail 删除任务结果指向的缩略图对象
func deleteThumbnail(ossClient *oss.Client, job *model.AnalysisJob) {
	if ossClient == nil || job.Result.AnalysisResult == nil {
		return
	}
	key := oss.ObjectKeyFromURL(job.Result.ThumbnailURL)
	if key == "" {
		return
	}
	if err := ossClient.Delete(key); err != nil {
		log.Printf("  ❌ Job %d: failed to delete thumbnail %s: %v", job.ID, key, err)
		return
	}
	log.Printf("  - Job %d: deleted thumbnail %s", job.ID, key)
}

// getDirSize 计算目录大小
func getDirSize(path string) int64 {
	var size int64
	filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}

// formatSize 格式化文件大小
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// connectDB 连接数据库
func connectDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	return db, nil
}
