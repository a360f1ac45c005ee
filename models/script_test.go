package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parts(nums ...int) []Script {
	total := len(nums)
	out := make([]Script, 0, total)
	for _, n := range nums {
		out = append(out, Script{PartNumber: n, TotalParts: total})
	}
	return out
}

func TestValidatePartNumbers(t *testing.T) {
	t.Run("single part", func(t *testing.T) {
		assert.NoError(t, ValidatePartNumbers(parts(1)))
	})

	t.Run("contiguous parts in any order", func(t *testing.T) {
		assert.NoError(t, ValidatePartNumbers(parts(2, 1, 3)))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Error(t, ValidatePartNumbers(nil))
	})

	t.Run("gap in sequence", func(t *testing.T) {
		scripts := []Script{
			{PartNumber: 1, TotalParts: 3},
			{PartNumber: 3, TotalParts: 3},
			{PartNumber: 4, TotalParts: 3},
		}
		assert.Error(t, ValidatePartNumbers(scripts))
	})

	t.Run("duplicate part number", func(t *testing.T) {
		scripts := []Script{
			{PartNumber: 1, TotalParts: 2},
			{PartNumber: 1, TotalParts: 2},
		}
		assert.Error(t, ValidatePartNumbers(scripts))
	})

	t.Run("disagreeing total_parts", func(t *testing.T) {
		scripts := []Script{
			{PartNumber: 1, TotalParts: 2},
			{PartNumber: 2, TotalParts: 3},
		}
		assert.Error(t, ValidatePartNumbers(scripts))
	})

	t.Run("count does not match total_parts", func(t *testing.T) {
		scripts := []Script{
			{PartNumber: 1, TotalParts: 3},
			{PartNumber: 2, TotalParts: 3},
		}
		require.Error(t, ValidatePartNumbers(scripts))
	})
}
