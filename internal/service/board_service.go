package service

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-resource-api/internal/dto"
	"github.com/noah-isme/edu-resource-api/internal/models"
	appErrors "github.com/noah-isme/edu-resource-api/pkg/errors"
)

const boardFetchLimit = 1000

type boardResourceSource interface {
	List(ctx context.Context, filter models.ResourceFilter) ([]models.Resource, int, error)
}

type boardGradeSource interface {
	ListGrades(ctx context.Context) ([]models.Grade, error)
}

// BoardService renders the grade-column browsing view over a bounded fetch
// of published resources.
type BoardService struct {
	resources boardResourceSource
	grades    boardGradeSource
	logger    *zap.Logger
}

// NewBoardService constructs the board service.
func NewBoardService(resources boardResourceSource, grades boardGradeSource, logger *zap.Logger) *BoardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BoardService{resources: resources, grades: grades, logger: logger}
}

// Board fetches published resources, applies the search and multi-select
// filters and groups the matches by grade.
func (s *BoardService) Board(ctx context.Context, query dto.BoardQuery) (*models.Board, error) {
	grades, err := s.grades.ListGrades(ctx)
	if err != nil {
		return nil, err
	}
	items, _, err := s.resources.List(ctx, models.ResourceFilter{
		Status: models.ResourceStatusPublished,
		Sort:   models.ResourceSortNewest,
		Limit:  boardFetchLimit,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resources")
	}

	filter := models.BoardFilter{
		Search:     strings.ToLower(strings.TrimSpace(query.Search)),
		SubjectIDs: dto.SplitList(query.Subjects),
		TypeIDs:    dto.SplitList(query.Types),
	}
	board := BuildBoard(grades, items, filter)
	s.logger.Debug("board rendered", zap.Int("shown", board.Shown), zap.Int("total", board.Total))
	return board, nil
}

// BuildBoard groups resources into one column per grade, ordered by grade
// number. Total counts every input resource, Shown only the matches.
func BuildBoard(grades []models.Grade, items []models.Resource, filter models.BoardFilter) *models.Board {
	ordered := make([]models.Grade, len(grades))
	copy(ordered, grades)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].GradeNumber < ordered[j].GradeNumber })

	columns := make([]models.BoardColumn, len(ordered))
	index := make(map[string]int, len(ordered))
	for i, g := range ordered {
		columns[i] = models.BoardColumn{GradeID: g.ID, GradeLevel: g.GradeLevel, GradeNumber: g.GradeNumber, Resources: []models.Resource{}}
		index[g.ID] = i
	}

	subjects := toSet(filter.SubjectIDs)
	types := toSet(filter.TypeIDs)
	board := &models.Board{Total: len(items)}
	for _, res := range items {
		if len(subjects) > 0 {
			if _, ok := subjects[res.SubjectID]; !ok {
				continue
			}
		}
		if len(types) > 0 {
			if _, ok := types[res.TypeID]; !ok {
				continue
			}
		}
		if filter.Search != "" && !matchesSearch(res, filter.Search) {
			continue
		}
		i, ok := index[res.GradeID]
		if !ok {
			continue
		}
		columns[i].Resources = append(columns[i].Resources, res)
		columns[i].Count++
		board.Shown++
	}
	board.Columns = columns
	return board
}

// matchesSearch expects needle already lower-cased.
func matchesSearch(res models.Resource, needle string) bool {
	fields := []string{res.Title, res.Description, res.SubjectName, res.GradeLevel, res.TypeName}
	for _, tag := range res.Tags {
		fields = append(fields, tag.TagName)
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
