package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusInProgress.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusFailed.Terminal())
}

func TestWorkflowExecution_Lookups(t *testing.T) {
	exec := &WorkflowExecution{
		TaskExecutions: []TaskExecution{
			{UUID: "t1", Name: "roast", Operator: OperatorIOProcess, Status: StatusCompleted},
			{UUID: "t2", Name: "check", Operator: OperatorQC, Status: StatusPending},
			{UUID: "t3", Name: "check-2", Operator: OperatorQC, Status: StatusCompleted},
		},
	}

	assert.Equal(t, "check", exec.Task("t2").Name)
	assert.Nil(t, exec.Task("missing"))
	assert.Equal(t, "t3", exec.TaskByName("check-2").UUID)

	qcs := exec.TasksByOperator(OperatorQC)
	assert.Len(t, qcs, 2)
	assert.Equal(t, "t2", qcs[0].UUID)

	assert.False(t, exec.AllCompleted())
	exec.TaskExecutions[1].Status = StatusCompleted
	assert.True(t, exec.AllCompleted())
}

func TestWorkflowExecution_AllCompletedEmpty(t *testing.T) {
	exec := &WorkflowExecution{}
	assert.False(t, exec.AllCompleted())
}
