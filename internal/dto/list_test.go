package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"t1", "t2", "t3"}, SplitList([]string{"t1, t2", " ", "t3,"}))
	assert.Empty(t, SplitList(nil))
}
