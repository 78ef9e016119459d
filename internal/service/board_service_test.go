package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-resource-api/internal/dto"
	"github.com/noah-isme/edu-resource-api/internal/models"
)

type boardResourcesStub struct {
	items  []models.Resource
	filter models.ResourceFilter
	err    error
}

func (b *boardResourcesStub) List(ctx context.Context, filter models.ResourceFilter) ([]models.Resource, int, error) {
	b.filter = filter
	return b.items, len(b.items), b.err
}

type boardGradesStub []models.Grade

func (g boardGradesStub) ListGrades(ctx context.Context) ([]models.Grade, error) {
	return g, nil
}

func boardFixture() (boardGradesStub, []models.Resource) {
	grades := boardGradesStub{
		{ID: "g10", GradeLevel: "Grade 10", GradeNumber: 10},
		{ID: "g2", GradeLevel: "Grade 2", GradeNumber: 2},
		{ID: "g1", GradeLevel: "Grade 1", GradeNumber: 1},
	}
	items := []models.Resource{
		{ID: "r1", Title: "Counting to ten", GradeID: "g1", GradeLevel: "Grade 1", SubjectID: "math", SubjectName: "Mathematics", TypeID: "doc", TypeName: "Document"},
		{ID: "r2", Title: "Phonics song", GradeID: "g1", GradeLevel: "Grade 1", SubjectID: "eng", SubjectName: "English", TypeID: "video", TypeName: "Video"},
		{ID: "r3", Title: "Cells", Description: "Intro to BIOLOGY", GradeID: "g10", GradeLevel: "Grade 10", SubjectID: "sci", SubjectName: "Science", TypeID: "doc", TypeName: "Document",
			Tags: []models.Tag{{ID: "t1", TagName: "Exam Prep"}}},
	}
	return grades, items
}

func TestBoardGroupsByGradeNumber(t *testing.T) {
	grades, items := boardFixture()
	resources := &boardResourcesStub{items: items}
	svc := NewBoardService(resources, grades, nil)

	board, err := svc.Board(context.Background(), dto.BoardQuery{})
	require.NoError(t, err)

	require.Len(t, board.Columns, 3)
	assert.Equal(t, []string{"g1", "g2", "g10"}, []string{board.Columns[0].GradeID, board.Columns[1].GradeID, board.Columns[2].GradeID})
	assert.Equal(t, 2, board.Columns[0].Count)
	assert.Equal(t, 0, board.Columns[1].Count)
	assert.NotNil(t, board.Columns[1].Resources)
	assert.Equal(t, 3, board.Shown)
	assert.Equal(t, 3, board.Total)

	assert.Equal(t, models.ResourceStatusPublished, resources.filter.Status)
	assert.Equal(t, boardFetchLimit, resources.filter.Limit)
}

func TestBoardSearchIsCaseInsensitiveAcrossFields(t *testing.T) {
	grades, items := boardFixture()
	cases := map[string][]string{
		"counting":  {"r1"},
		"biology":   {"r3"},
		"ENGLISH":   {"r2"},
		"grade 10":  {"r3"},
		"video":     {"r2"},
		"exam prep": {"r3"},
		"nothing":   nil,
	}
	for search, want := range cases {
		t.Run(search, func(t *testing.T) {
			board := BuildBoard(grades, items, models.BoardFilter{Search: strings.ToLower(search)})
			var got []string
			for _, col := range board.Columns {
				for _, r := range col.Resources {
					got = append(got, r.ID)
				}
			}
			assert.ElementsMatch(t, want, got)
			assert.Equal(t, len(want), board.Shown)
			assert.Equal(t, 3, board.Total)
		})
	}
}

func TestBoardMultiSelectFilters(t *testing.T) {
	grades, items := boardFixture()
	svc := NewBoardService(&boardResourcesStub{items: items}, grades, nil)

	board, err := svc.Board(context.Background(), dto.BoardQuery{Subjects: []string{"math,sci"}, Types: []string{"doc"}})
	require.NoError(t, err)
	assert.Equal(t, 2, board.Shown)

	board, err = svc.Board(context.Background(), dto.BoardQuery{Subjects: []string{"math", "eng"}, Types: []string{"video"}, Search: "phonics"})
	require.NoError(t, err)
	assert.Equal(t, 1, board.Shown)
	assert.Equal(t, "r2", board.Columns[0].Resources[0].ID)
}

func TestBoardPropagatesLoadFailure(t *testing.T) {
	grades, _ := boardFixture()
	svc := NewBoardService(&boardResourcesStub{err: errors.New("db down")}, grades, nil)

	_, err := svc.Board(context.Background(), dto.BoardQuery{})
	require.Error(t, err)
}
