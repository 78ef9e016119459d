package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageWindow(t *testing.T) {
	limit, offset := pageWindow(0, -5, 20, 100)
	assert.Equal(t, 20, limit)
	assert.Equal(t, 0, offset)

	limit, offset = pageWindow(500, 40, 20, 100)
	assert.Equal(t, 100, limit)
	assert.Equal(t, 40, offset)
}

func TestConditionsNumbersPlaceholders(t *testing.T) {
	var c conditions
	assert.Equal(t, "", c.where())

	c.add("role = $%d", "school")
	c.add("(name LIKE $%[1]d OR email LIKE $%[1]d)", likePattern("50%_Off"))

	assert.Equal(t, " WHERE role = $1 AND (name LIKE $2 OR email LIKE $2)", c.where())
	assert.Equal(t, []interface{}{"school", `%50\%\_off%`}, c.args)
}
