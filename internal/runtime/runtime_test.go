package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckOCIVersion(t *testing.T) {
	tests := []struct {
		version string
		wantErr bool
	}{
		{"1.0.0", false},
		{"1.1.0", false},
		{"1.0.2-rc.1", false},
		{"1.1.0-dev", false},
		{"1.2.0", true},
		{"0.9.0", true},
		{"2.0.0", true},
		{"garbage", true},
		{"1.0", true},
	}
	for _, tt := range tests {
		err := checkOCIVersion(tt.version)
		if tt.wantErr {
			assert.Error(t, err, tt.version)
		} else {
			assert.NoError(t, err, tt.version)
		}
	}
}

func TestSplitDot(t *testing.T) {
	assert.Equal(t, []string{"1", "0", "0"}, splitDot("1.0.0"))
	assert.Equal(t, []string{"1"}, splitDot("1"))
}

func TestIndexRC(t *testing.T) {
	assert.Equal(t, 5, indexRC("1.0.0-rc.1"))
	assert.Equal(t, -1, indexRC("1.0.0"))
}
