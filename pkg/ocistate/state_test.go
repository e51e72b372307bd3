package ocistate

import (
	"testing"

	"github.com/opencontainers/runtime-spec/specs-go"
	"github.com/stretchr/testify/assert"
)

func TestToOCIStateProjectsPersistedFields(t *testing.T) {
	p := &Persisted{
		ID:     "c1",
		Bundle: "/bundles/c1",
		Status: StatusRunning,
		PID:    42,
		Config: specs.Spec{
			Annotations: map[string]string{"org.example.key": "value"},
		},
	}

	doc := p.ToOCIState("1.0.0")
	assert.Equal(t, "1.0.0", doc.OCIVersion)
	assert.Equal(t, "c1", doc.ID)
	assert.Equal(t, StatusRunning, doc.Status)
	assert.Equal(t, 42, doc.PID)
	assert.Equal(t, "/bundles/c1", doc.Bundle)
	assert.Equal(t, map[string]string{"org.example.key": "value"}, doc.Annotations)
}

func TestToOCIStateNilAnnotations(t *testing.T) {
	p := &Persisted{ID: "c2", Status: StatusStopped}
	doc := p.ToOCIState("1.0.0")
	assert.Nil(t, doc.Annotations)
}
