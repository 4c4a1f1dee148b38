package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageTypeOrder(t *testing.T) {
	assert.Equal(t, 1, StageTaskDefinition.Order())
	assert.Equal(t, 5, StageFinalOutput.Order())
	assert.Equal(t, 0, StageType("deployment").Order())
}

func TestStageTypePrev(t *testing.T) {
	assert.Equal(t, StageType(""), StageTaskDefinition.Prev())
	assert.Equal(t, StageTaskDefinition, StageRefinement.Prev())
	assert.Equal(t, StageOptimization, StageFinalOutput.Prev())
	assert.Equal(t, StageType(""), StageType("bogus").Prev())
}

func TestStageTypeForLayer(t *testing.T) {
	assert.Equal(t, StageTaskDefinition, StageTypeForLayer(1))
	assert.Equal(t, StageFinalOutput, StageTypeForLayer(5))
	assert.Equal(t, StageType(""), StageTypeForLayer(0))
	assert.Equal(t, StageType(""), StageTypeForLayer(6))
}
