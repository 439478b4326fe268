package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeleteTask_Due(t *testing.T) {
	now := time.Now()

	past := &DeleteTask{DeleteAt: now.Add(-time.Second)}
	assert.True(t, past.Due(now))

	exact := &DeleteTask{DeleteAt: now}
	assert.True(t, exact.Due(now), "delete_at equal to now is due")

	future := &DeleteTask{DeleteAt: now.Add(time.Second)}
	assert.False(t, future.Due(now))
}

func TestSearchState_Helpers(t *testing.T) {
	state := &SearchState{
		TempData: map[string]interface{}{
			"int64":  int64(123),
			"int":    123,
			"float":  123.45,
			"string": "hello",
		},
	}

	t.Run("NilTempData", func(t *testing.T) {
		nilState := &SearchState{}
		assert.Equal(t, int64(0), nilState.GetInt64("any"))
		assert.Equal(t, "", nilState.GetString("any"))
	})

	t.Run("GetInt64", func(t *testing.T) {
		assert.Equal(t, int64(123), state.GetInt64("int64"))
		assert.Equal(t, int64(123), state.GetInt64("int"))
		assert.Equal(t, int64(123), state.GetInt64("float"))
		assert.Equal(t, int64(0), state.GetInt64("string"))
		assert.Equal(t, int64(0), state.GetInt64("missing"))
	})

	t.Run("GetString", func(t *testing.T) {
		assert.Equal(t, "hello", state.GetString("string"))
		assert.Equal(t, "", state.GetString("int"))
		assert.Equal(t, "", state.GetString("missing"))
	})
}
