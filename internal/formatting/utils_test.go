package formatting

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrettyJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected string
	}{
		{
			name:     "app info",
			input:    map[string]interface{}{"id": "wordpress__2", "version": "5.8~ynh1"},
			expected: "{\n  \"id\": \"wordpress__2\",\n  \"version\": \"5.8~ynh1\"\n}",
		},
		{
			name:     "instance list",
			input:    []string{"lufi", "nextcloud"},
			expected: "[\n  \"lufi\",\n  \"nextcloud\"\n]",
		},
		{
			name:     "setting",
			input:    "example.org",
			expected: "\"example.org\"",
		},
		{
			name:     "nil",
			input:    nil,
			expected: "null",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PrettyJSON(tt.input))
		})
	}
}

func TestPrettyJSONFallsBackOnUnencodable(t *testing.T) {
	ch := make(chan int)
	result := PrettyJSON(ch)
	assert.NotEmpty(t, result)
	assert.Contains(t, result, "0x")
}
