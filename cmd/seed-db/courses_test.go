package main

import (
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/academy-commerce/internal/domain/coupon"
)

func TestParseCourses(t *testing.T) {
	courses, err := parseCourses([]byte(`[
		{"id":"go-101","title":"Go 101","price":49.9,"isPublished":true,"tags":["go"]},
		{"id":"draft","title":"Draft","slug":"draft-course","image":"d.png","price":10}
	]`))
	require.NoError(t, err)
	require.Len(t, courses, 2)

	assert.Equal(t, "go-101", courses[0].Slug)
	assert.True(t, decimal.RequireFromString("49.9").Equal(courses[0].Price))
	assert.True(t, courses[0].IsPublished)
	assert.Equal(t, "draft-course", courses[1].Slug)
	assert.False(t, courses[1].IsPublished)
}

func TestParseCourses_Invalid(t *testing.T) {
	for name, input := range map[string]string{
		"NotArray":     `{"id":"x"}`,
		"MissingTitle": `[{"id":"x","price":1}]`,
		"BadPrice":     `[{"id":"x","title":"X","price":"cheap"}]`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parseCourses([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestParseCourses_SeedFile(t *testing.T) {
	data, err := os.ReadFile("../../db/seed/courses.json")
	require.NoError(t, err)

	courses, err := parseCourses(data)
	require.NoError(t, err)
	assert.NotEmpty(t, courses)
}

func TestDemoCoupons(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for _, c := range demoCoupons(now) {
		assert.True(t, c.Type.Valid(), c.Code)
		assert.True(t, c.IsActive, c.Code)
		assert.Equal(t, now, c.ValidFrom, c.Code)
		assert.True(t, c.ValidUntil.After(now), c.Code)
		assert.False(t, c.Exhausted(), c.Code)
	}
	assert.Contains(t, codes(demoCoupons(now)), "SAVE10")
}

func codes(list []coupon.Coupon) []string {
	out := make([]string, len(list))
	for i, c := range list {
		out[i] = c.Code
	}
	return out
}
