package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeType(t *testing.T) {
	tests := []struct {
		declared string
		want     string
	}{
		{"bigint", "bigint"},
		{"INT8", "bigint"},
		{"character varying(20)", "character varying"},
		{"varchar", "character varying"},
		{"numeric(10,2)", "numeric"},
		{"timestamp(3) without time zone", "timestamp without time zone"},
		{"  Text ", "text"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeType(tt.declared), tt.declared)
	}
}

func TestTypeCompatibility(t *testing.T) {
	assert.Equal(t, 1.0, typeCompatibility("bigint", "int8"))
	assert.Equal(t, 1.0, typeCompatibility("character varying(10)", "character varying(255)"))
	assert.Equal(t, 0.5, typeCompatibility("integer", "numeric(12,2)"))
	assert.Equal(t, 0.5, typeCompatibility("text", "character varying"))
	assert.Equal(t, 0.5, typeCompatibility("date", "timestamp with time zone"))
	assert.Equal(t, 0.5, typeCompatibility("json", "jsonb"))
	assert.Equal(t, 0.0, typeCompatibility("integer", "text"))
	assert.Equal(t, 0.0, typeCompatibility("uuid", "text"))
	assert.Equal(t, 0.0, typeCompatibility("point", "polygon"))
	assert.Equal(t, 1.0, typeCompatibility("point", "point"))
}
