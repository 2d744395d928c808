package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIDRange(t *testing.T) {
	assert.Equal(t, []uint64{5}, ParseIDRange("5"))
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, ParseIDRange("1-5"))
	assert.Equal(t, []uint64{7}, ParseIDRange("7-7"))
	assert.Nil(t, ParseIDRange("5-1"))
	assert.Nil(t, ParseIDRange("abc"))
	assert.Nil(t, ParseIDRange(""))
	assert.Nil(t, ParseIDRange("-5"))
}
