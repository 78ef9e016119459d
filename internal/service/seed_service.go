package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/edu-resource-api/internal/models"
	"github.com/noah-isme/edu-resource-api/internal/repository"
	"github.com/noah-isme/edu-resource-api/pkg/config"
)

type seedApplier interface {
	Apply(ctx context.Context, data models.SeedData) (repository.SeedResult, error)
}

// SeedService writes the default catalog and bootstrap admin. Running it
// again leaves existing rows untouched.
type SeedService struct {
	repo    seedApplier
	cfg     config.SeedConfig
	cache   *CacheService
	logger  *zap.Logger
	hashFor func(password string) (string, error)
}

// NewSeedService constructs the seeder.
func NewSeedService(repo seedApplier, cfg config.SeedConfig, cache *CacheService, logger *zap.Logger) *SeedService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeedService{repo: repo, cfg: cfg, cache: cache, logger: logger, hashFor: bcryptHash}
}

// Run applies the seed data and returns the inserted counts.
func (s *SeedService) Run(ctx context.Context) (repository.SeedResult, error) {
	data := DefaultSeedData()

	email := strings.ToLower(strings.TrimSpace(s.cfg.AdminEmail))
	if email != "" && s.cfg.AdminPassword != "" {
		hash, err := s.hashFor(s.cfg.AdminPassword)
		if err != nil {
			return repository.SeedResult{}, fmt.Errorf("hash admin password: %w", err)
		}
		data.Admin = &models.User{
			Name:         s.cfg.AdminName,
			Email:        email,
			PasswordHash: hash,
			Role:         models.RoleAdmin,
			Organization: "System",
			Designation:  "Administrator",
			Status:       models.UserStatusActive,
		}
	} else {
		s.logger.Warn("seed admin credentials not configured, skipping admin account")
	}

	result, err := s.repo.Apply(ctx, data)
	if err != nil {
		return result, err
	}
	if err := s.cache.Invalidate(ctx, MetaCachePattern); err != nil {
		s.logger.Debug("failed to invalidate meta cache after seed", zap.Error(err))
	}

	s.logger.Info("seed applied",
		zap.Int64("grades", result.Grades),
		zap.Int64("subjects", result.Subjects),
		zap.Int64("resource_types", result.Types),
		zap.Int64("tags", result.Tags),
		zap.Int64("admins", result.Admins),
	)
	return result, nil
}

// DefaultSeedData returns twelve grades and the default subjects, resource
// types and tags.
func DefaultSeedData() models.SeedData {
	grades := make([]models.Grade, 0, 12)
	for i := 1; i <= 12; i++ {
		grades = append(grades, models.Grade{
			GradeLevel:  fmt.Sprintf("Grade %d", i),
			GradeNumber: i,
			Description: fmt.Sprintf("Educational resources for Grade %d students", i),
		})
	}

	subjects := []models.Subject{
		{SubjectName: "Mathematics", Color: "#EF4444", Description: "Mathematical concepts and problem solving"},
		{SubjectName: "Science", Color: "#10B981", Description: "Scientific principles and experiments"},
		{SubjectName: "English", Color: "#3B82F6", Description: "English language and literature"},
		{SubjectName: "History", Color: "#F59E0B", Description: "Historical events and social studies"},
		{SubjectName: "Geography", Color: "#8B5CF6", Description: "Geographical concepts and world studies"},
		{SubjectName: "Computer Science", Color: "#06B6D4", Description: "Programming and technology"},
		{SubjectName: "Art", Color: "#EC4899", Description: "Creative arts and design"},
		{SubjectName: "Physical Education", Color: "#84CC16", Description: "Sports and physical activities"},
	}

	const mb = int64(1 << 20)
	types := []models.ResourceType{
		{TypeName: "Document", AllowedExtensions: "pdf,doc,docx,txt", Icon: "document", MaxFileSize: 100 * mb},
		{TypeName: "Presentation", AllowedExtensions: "ppt,pptx,key", Icon: "presentation", MaxFileSize: 100 * mb},
		{TypeName: "Video", AllowedExtensions: "mp4,avi,mov,wmv,flv,mkv,webm", Icon: "video", MaxFileSize: 500 * mb},
		{TypeName: "Image", AllowedExtensions: "jpg,jpeg,png,gif,bmp", Icon: "image", MaxFileSize: 50 * mb},
		{TypeName: "Archive", AllowedExtensions: "zip,rar,7z,tar,gz", Icon: "archive", MaxFileSize: 100 * mb},
		{TypeName: "Spreadsheet", AllowedExtensions: "xls,xlsx,csv", Icon: "spreadsheet", MaxFileSize: 100 * mb},
		{TypeName: "Audio", AllowedExtensions: "mp3,wav,ogg,aac", Icon: "audio", MaxFileSize: 100 * mb},
	}
	for i := range types {
		types[i].Description = types[i].TypeName + " files"
	}

	tagColors := [][2]string{
		{"JavaScript", "#F7DF1E"}, {"Python", "#3776AB"}, {"HTML", "#E34F26"}, {"CSS", "#1572B6"},
		{"React", "#61DAFB"}, {"Node.js", "#339933"}, {"MySQL", "#4479A1"}, {"Git", "#F05032"},
		{"Docker", "#2496ED"}, {"AWS", "#FF9900"}, {"Machine Learning", "#FF6B6B"}, {"Data Science", "#4ECDC4"},
		{"Web Development", "#45B7D1"}, {"Mobile Development", "#96CEB4"}, {"Cybersecurity", "#FFEAA7"},
		{"Cloud Computing", "#DDA0DD"}, {"DevOps", "#98D8C8"}, {"UI/UX Design", "#F7DC6F"},
		{"Database Design", "#BB8FCE"}, {"API Development", "#85C1E9"},
	}
	tags := make([]models.Tag, 0, len(tagColors))
	for _, tc := range tagColors {
		tags = append(tags, models.Tag{TagName: tc[0], Color: tc[1], Description: tc[0] + " related resources"})
	}

	return models.SeedData{Grades: grades, Subjects: subjects, Types: types, Tags: tags}
}

func bcryptHash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
