package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBatchStatusFor(t *testing.T) {
	cases := []struct {
		name      string
		completed int
		total     int
		want      string
	}{
		{"all parts uploaded", 3, 3, BatchStatusCompleted},
		{"single part uploaded", 1, 1, BatchStatusCompleted},
		{"some parts uploaded", 2, 3, BatchStatusPartial},
		{"one of many uploaded", 1, 5, BatchStatusPartial},
		{"no parts uploaded", 0, 3, BatchStatusFailed},
		{"single part failed", 0, 1, BatchStatusFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, BatchStatusFor(tc.completed, tc.total))
		})
	}
}
