package testhelpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExcludeComment(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"no comment", "SELECT 1;", "SELECT 1;"},
		{"trailing comment", "SELECT 1; -- one", "SELECT 1; "},
		{"comment only", "-- heading", ""},
		{"dashes in single quotes", "INSERT 'a--b' -- c", "INSERT 'a--b' "},
		{"dashes in double quotes", `SET "x--y" = 1 -- z`, `SET "x--y" = 1 `},
		{"unterminated quote", "'open -- still text", "'open -- still text"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, excludeComment(tt.line))
		})
	}
}

func TestGetenv(t *testing.T) {
	t.Setenv("MINISITEDB_TEST_VALUE", "set")
	assert.Equal(t, "set", getenv("MINISITEDB_TEST_VALUE", "fallback"))
	assert.Equal(t, "fallback", getenv("MINISITEDB_TEST_UNSET", "fallback"))
}
