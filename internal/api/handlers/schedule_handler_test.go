package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePostType(t *testing.T) {
	assert.NoError(t, validatePostType("static", 1))
	assert.NoError(t, validatePostType("video", 1))
	assert.NoError(t, validatePostType("carousel_2", 2))
	assert.NoError(t, validatePostType("carousel_10", 10))
	assert.NoError(t, validatePostType("Static", 1))

	assert.Error(t, validatePostType("static", 2))
	assert.Error(t, validatePostType("video", 0))
	assert.Error(t, validatePostType("carousel_3", 2))
	assert.Error(t, validatePostType("carousel_1", 1))
	assert.Error(t, validatePostType("carousel_11", 11))
	assert.Error(t, validatePostType("carousel_x", 2))
	assert.Error(t, validatePostType("story", 1))
	assert.Error(t, validatePostType("", 0))
}
