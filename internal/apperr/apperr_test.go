package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessages(t *testing.T) {
	assert.Equal(t, "Unauthorized", Unauthorized().Error())
	assert.Equal(t, "Forbidden: Admin access required", AdminRequired().Error())
	assert.Equal(t, "Task not found", NotFound("Task").Error())
}

func TestAs_Wrapped(t *testing.T) {
	err := fmt.Errorf("update task: %w", NotFound("Task"))

	e, ok := As(err)
	assert.True(t, ok)
	assert.Equal(t, KindNotFound, e.Kind)
	assert.True(t, Is(err, KindNotFound))
	assert.False(t, Is(err, KindForbidden))
}

func TestAs_PlainError(t *testing.T) {
	_, ok := As(errors.New("disk on fire"))
	assert.False(t, ok)
}

func TestInvalid(t *testing.T) {
	e := Invalid("title", "must be at most %d characters", 200)
	assert.Equal(t, KindValidation, e.Kind)
	assert.Equal(t, []string{"must be at most 200 characters"}, e.Details["title"])
}
