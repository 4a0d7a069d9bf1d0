package utils

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
)

func TestAge(t *testing.T) {
	now := time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		birthdate string
		want      int
		ok        bool
	}{
		{"2000-06-15", 24, true},
		{"2000-06-16", 23, true},
		{"2000-01-01", 24, true},
		{"2030-01-01", 0, false},
		{"15/06/2000", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.birthdate, func(t *testing.T) {
			got, ok := Age(tc.birthdate, now)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExtractBool(t *testing.T) {
	item := map[string]types.AttributeValue{
		"id":        &types.AttributeValueMemberS{Value: "m1"},
		"is_active": &types.AttributeValueMemberBOOL{Value: true},
	}
	assert.False(t, ExtractBool(item, "id"))
	assert.True(t, ExtractBool(item, "is_active"))
	assert.False(t, ExtractBool(item, "missing"))
}
