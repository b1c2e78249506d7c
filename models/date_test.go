package models

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2013-09-29")
	require.NoError(t, err)
	assert.Equal(t, "2013-09-29", d.String())

	_, err = ParseDate("29/09/2013")
	require.Error(t, err)
}

func TestDateOf(t *testing.T) {
	d := DateOf(time.Date(2013, time.September, 29, 21, 45, 3, 0, time.UTC))
	assert.True(t, d.Equal(NewDate(2013, time.September, 29)))
}

func TestDateJSON(t *testing.T) {
	type payload struct {
		Aired Date  `json:"aired"`
		Ended *Date `json:"ended,omitempty"`
	}

	t.Run("marshal", func(t *testing.T) {
		end := NewDate(2013, time.September, 29)
		b, err := json.Marshal(payload{Aired: NewDate(2008, time.January, 20), Ended: &end})
		require.NoError(t, err)
		assert.JSONEq(t, `{"aired":"2008-01-20","ended":"2013-09-29"}`, string(b))
	})

	t.Run("unmarshal", func(t *testing.T) {
		var p payload
		err := json.Unmarshal([]byte(`{"aired":"2008-01-20","ended":null}`), &p)
		require.NoError(t, err)
		assert.True(t, p.Aired.Equal(NewDate(2008, time.January, 20)))
		assert.Nil(t, p.Ended)
	})

	t.Run("unmarshal rejects garbage", func(t *testing.T) {
		var p payload
		err := json.Unmarshal([]byte(`{"aired":"soon"}`), &p)
		require.Error(t, err)
	})
}
